// Package preview implements the short-lived read-through cache that
// predicts the next transition for a work item without invoking it.
package preview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/MuiGoku123432/adoflow/internal/logging"
	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/MuiGoku123432/adoflow/pkg/ports"
)

// DefaultTTL matches the source behavior: previews are display-only and
// tolerate up to 30 seconds of staleness.
const DefaultTTL = 30 * time.Second

// entry pairs the cached preview with its expiry so the value and its
// deadline can never drift apart.
type entry struct {
	preview   domain.TransitionPreview
	expiresAt time.Time
}

// Cache memoizes "what would the next transition be" queries, keyed by work
// item id. Entries expire passively at read time; there is no timer.
// Safe for concurrent use.
type Cache struct {
	provider ports.WorkflowProvider
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[int]entry

	// Optional observation points for instrumentation.
	onHit  func()
	onMiss func()
}

// Option configures the Cache.
type Option func(*Cache)

// WithTTL overrides the entry time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithClock injects the time source, used by tests to cross TTL boundaries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger configures a logger for the Cache.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithObserver registers hit/miss callbacks for metrics collection.
func WithObserver(onHit, onMiss func()) Option {
	return func(c *Cache) {
		c.onHit = onHit
		c.onMiss = onMiss
	}
}

// NewCache creates a preview cache backed by the given workflow provider.
func NewCache(provider ports.WorkflowProvider, opts ...Option) *Cache {
	c := &Cache{
		provider: provider,
		ttl:      DefaultTTL,
		now:      time.Now,
		logger:   logging.NewNop(),
		entries:  make(map[int]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached preview for a work item if present and unexpired;
// otherwise it performs the read-only next-state query, stores the result
// and returns it. Expired entries are treated as misses and evicted.
func (c *Cache) Get(ctx context.Context, workItemID int) (*domain.TransitionPreview, error) {
	if cached, ok := c.lookup(workItemID); ok {
		if c.onHit != nil {
			c.onHit()
		}
		return cached, nil
	}
	if c.onMiss != nil {
		c.onMiss()
	}

	item, err := c.provider.GetWorkItem(ctx, workItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch work item %d: %w", workItemID, err)
	}

	next, err := c.provider.QueryNextState(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to query next state for work item %d: %w", workItemID, err)
	}

	p := domain.TransitionPreview{
		WorkItemID:   workItemID,
		CurrentState: item.CurrentState,
		Available:    next != nil,
	}
	if next != nil {
		p.TargetState = next.TargetState
	}

	c.mu.Lock()
	c.entries[workItemID] = entry{preview: p, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	c.logger.Debug("cached transition preview",
		"work_item_id", workItemID,
		"available", p.Available,
		"target_state", p.TargetState,
	)

	return &p, nil
}

// lookup returns a copy of the live entry, evicting it when expired.
func (c *Cache) lookup(workItemID int) (*domain.TransitionPreview, bool) {
	c.mu.RLock()
	e, ok := c.entries[workItemID]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.Invalidate(workItemID)
		return nil, false
	}

	p := e.preview
	return &p, true
}

// Invalidate removes the cached entry for a work item unconditionally. Must
// be called after any operation that could change the item's current state.
func (c *Cache) Invalidate(workItemID int) {
	c.mu.Lock()
	delete(c.entries, workItemID)
	c.mu.Unlock()
}

// InvalidateAll clears the entire cache; called whenever the full work item
// list is reloaded, since any number of items may have changed externally.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[int]entry)
	c.mu.Unlock()
}

// Len reports the number of live entries, expired or not. Intended for
// diagnostics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
