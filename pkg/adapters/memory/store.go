// Package memory provides the in-memory pending store used by single-process
// clients. State is lost on restart, matching the session-scoped lifetime of
// correlation entries.
package memory

import (
	"context"
	"sync"

	"github.com/MuiGoku123432/adoflow/pkg/domain"
)

// Store implements ports.PendingStore in memory.
// Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	data   map[string]*domain.PendingTransition
	byItem map[int]string // work item id -> live correlation id
}

// NewStore creates a new in-memory pending store.
func NewStore() *Store {
	return &Store{
		data:   make(map[string]*domain.PendingTransition),
		byItem: make(map[int]string),
	}
}

// Put stores a pending transition under its correlation id.
func (s *Store) Put(ctx context.Context, p *domain.PendingTransition) error {
	copied := clone(p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[p.CorrelationID] = copied
	s.byItem[p.WorkItemID] = p.CorrelationID
	return nil
}

// Get retrieves a pending transition by correlation id.
func (s *Store) Get(ctx context.Context, correlationID string) (*domain.PendingTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[correlationID]
	if !ok {
		return nil, domain.ErrCorrelationNotFound
	}

	// Copy on read so the caller can't mutate store state through the pointer.
	return clone(p), nil
}

// Delete removes the record for a correlation id. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data[correlationID]
	if !ok {
		return nil
	}
	delete(s.data, correlationID)
	if s.byItem[p.WorkItemID] == correlationID {
		delete(s.byItem, p.WorkItemID)
	}
	return nil
}

// FindByWorkItem returns the live correlation id for a work item, or "".
func (s *Store) FindByWorkItem(ctx context.Context, workItemID int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byItem[workItemID], nil
}

func clone(p *domain.PendingTransition) *domain.PendingTransition {
	copied := *p
	copied.Prompts = make([]domain.FieldPrompt, len(p.Prompts))
	copy(copied.Prompts, p.Prompts)
	return &copied
}
