// Package correlation implements the registry that associates pending
// field-collection requests with the transition attempts that created them.
package correlation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/MuiGoku123432/adoflow/internal/logging"
	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/MuiGoku123432/adoflow/pkg/ports"
	"github.com/google/uuid"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Registry orchestrates pending transition access, ensuring that concurrent
// finish/cancel calls racing for the same correlation id resolve
// deterministically: the first writer wins, the second observes
// domain.ErrCorrelationNotFound. It uses reference counting to garbage
// collect unused locks.
type Registry struct {
	store ports.PendingStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active per-id locks

	locker ports.DistributedLocker // Optional distributed locker
	logger *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithLocker enables distributed locking for multi-instance deployments.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(r *Registry) {
		r.locker = locker
	}
}

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a Registry backed by the given pending store.
func NewRegistry(store ports.PendingStore, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		locks:  make(map[string]*lockEntry),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewID generates a fresh collision-resistant correlation id.
func (r *Registry) NewID() string {
	return uuid.NewString()
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (r *Registry) acquire(id string) *lockEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.locks[id]
	if !exists {
		entry = &lockEntry{}
		r.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry when it
// reaches zero.
func (r *Registry) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.locks[id]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(r.locks, id)
	}
}

// Register stores a pending transition, superseding any prior pending entry
// for the same work item so a UI cannot accumulate orphaned correlations.
func (r *Registry) Register(ctx context.Context, p *domain.PendingTransition) error {
	return r.WithLock(ctx, p.CorrelationID, func(ctx context.Context) error {
		prior, err := r.store.FindByWorkItem(ctx, p.WorkItemID)
		if err != nil {
			return fmt.Errorf("failed to check for prior pending transition: %w", err)
		}
		if prior != "" && prior != p.CorrelationID {
			if err := r.store.Delete(ctx, prior); err != nil {
				return fmt.Errorf("failed to supersede pending transition %s: %w", prior, err)
			}
			r.logger.Debug("superseded pending transition",
				"work_item_id", p.WorkItemID,
				"old_correlation_id", prior,
				"new_correlation_id", p.CorrelationID,
			)
		}
		return r.store.Put(ctx, p)
	})
}

// Get retrieves a pending transition without consuming it.
func (r *Registry) Get(ctx context.Context, correlationID string) (*domain.PendingTransition, error) {
	var pending *domain.PendingTransition
	err := r.WithLock(ctx, correlationID, func(ctx context.Context) error {
		var err error
		pending, err = r.store.Get(ctx, correlationID)
		return err
	})
	return pending, err
}

// Remove deletes a pending transition. Removing an unknown id is a no-op so
// cancel stays idempotent when racing with expiry.
func (r *Registry) Remove(ctx context.Context, correlationID string) error {
	return r.WithLock(ctx, correlationID, func(ctx context.Context) error {
		return r.store.Delete(ctx, correlationID)
	})
}

// WithLock executes fn while holding the lock for the correlation id,
// serializing finish/cancel races on that id.
func (r *Registry) WithLock(ctx context.Context, correlationID string, fn func(context.Context) error) error {
	entry := r.acquire(correlationID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		r.release(correlationID)
	}()

	// Distributed locking
	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, correlationID, 30*time.Second)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				r.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"correlation_id", correlationID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Store returns the underlying pending store.
func (r *Registry) Store() ports.PendingStore {
	return r.store
}
