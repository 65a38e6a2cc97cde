// Package redis provides Redis-backed implementations of the pending store
// and the distributed locker, for deployments where several engine instances
// share one correlation space.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/MuiGoku123432/adoflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.PendingStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets an expiration for pending entries, so abandoned transitions
// age out instead of leaking. Zero (the default) keeps entries until they
// are consumed or cancelled.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for pending entries.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis pending store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis pending store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "adoflow:pending:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(correlationID string) string {
	return s.prefix + correlationID
}

func (s *Store) itemKey(workItemID int) string {
	return s.prefix + "item:" + strconv.Itoa(workItemID)
}

// Put persists the pending transition and the work-item index entry in one
// pipeline so the two keys cannot drift apart.
func (s *Store) Put(ctx context.Context, p *domain.PendingTransition) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pending transition: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(p.CorrelationID), data, s.ttl)
	pipe.Set(ctx, s.itemKey(p.WorkItemID), p.CorrelationID, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Get retrieves a pending transition by correlation id.
func (s *Store) Get(ctx context.Context, correlationID string) (*domain.PendingTransition, error) {
	val, err := s.client.Get(ctx, s.key(correlationID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrCorrelationNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var p domain.PendingTransition
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending transition: %w", err)
	}
	return &p, nil
}

// unindexScript removes the work-item index entry only when it still points
// at the correlation id being deleted, so deleting a superseded id cannot
// orphan the live pending entry registered after it.
const unindexScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// Delete removes the pending entry and, when it still points at this
// correlation id, the work-item index entry.
func (s *Store) Delete(ctx context.Context, correlationID string) error {
	p, err := s.Get(ctx, correlationID)
	if err != nil {
		if err == domain.ErrCorrelationNotFound {
			return nil
		}
		return err
	}

	if err := s.client.Del(ctx, s.key(correlationID)).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	if err := s.client.Eval(ctx, unindexScript, []string{s.itemKey(p.WorkItemID)}, correlationID).Err(); err != nil {
		return fmt.Errorf("failed to clear work item index: %w", err)
	}
	return nil
}

// FindByWorkItem returns the live correlation id for a work item, or "".
// A dangling index entry (value expired, index not yet) reads as no match.
func (s *Store) FindByWorkItem(ctx context.Context, workItemID int) (string, error) {
	correlationID, err := s.client.Get(ctx, s.itemKey(workItemID)).Result()
	if err != nil {
		if err == backend.Nil {
			return "", nil
		}
		return "", fmt.Errorf("failed to query work item index: %w", err)
	}

	exists, err := s.client.Exists(ctx, s.key(correlationID)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to check pending entry: %w", err)
	}
	if exists == 0 {
		return "", nil
	}
	return correlationID, nil
}

// Client exposes the underlying redis client, so a locker can share the
// store's connection.
func (s *Store) Client() *backend.Client {
	return s.client
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
