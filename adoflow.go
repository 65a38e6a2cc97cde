package adoflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MuiGoku123432/adoflow/internal/transition"
	"github.com/MuiGoku123432/adoflow/pkg/adapters/memory"
	"github.com/MuiGoku123432/adoflow/pkg/correlation"
	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/MuiGoku123432/adoflow/pkg/ports"
	"github.com/MuiGoku123432/adoflow/pkg/preview"
)

// Engine is the high-level entry point for the adoflow library.
// It wraps the internal transition executor and the preview cache behind a
// simplified API for consumers.
type Engine struct {
	executor *transition.Executor
	previews *preview.Cache
	registry *correlation.Registry

	store      ports.PendingStore
	locker     ports.DistributedLocker
	identity   ports.IdentityResolver
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	previewTTL time.Duration
	clock      func() time.Time

	previewOnHit  func()
	previewOnMiss func()
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers push-event callbacks for hosts that render
// from events instead of return values.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithPendingStore injects a custom pending store, bypassing the default
// in-memory one.
func WithPendingStore(store ports.PendingStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed locking of correlation ids across engine
// instances sharing one pending store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithIdentityResolver sets the resolver used to default identity fields to
// the acting user at submission time.
func WithIdentityResolver(resolver ports.IdentityResolver) Option {
	return func(e *Engine) {
		e.identity = resolver
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPreviewTTL overrides the preview cache time-to-live (default 30s).
func WithPreviewTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.previewTTL = ttl
	}
}

// WithClock injects the time source used for cache expiry and pending
// timestamps. Tests use this to cross TTL boundaries deterministically.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.clock = now
	}
}

// WithPreviewObserver registers hit/miss callbacks on the preview cache,
// typically wired to metrics counters.
func WithPreviewObserver(onHit, onMiss func()) Option {
	return func(e *Engine) {
		e.previewOnHit = onHit
		e.previewOnMiss = onMiss
	}
}

// New initializes the engine around a workflow provider. The provider is the
// only mandatory collaborator; everything else defaults to in-process
// implementations.
func New(provider ports.WorkflowProvider, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("workflow provider is required")
	}

	eng := &Engine{
		previewTTL: preview.DefaultTTL,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	registryOpts := []correlation.Option{correlation.WithLogger(eng.logger)}
	if eng.locker != nil {
		registryOpts = append(registryOpts, correlation.WithLocker(eng.locker))
	}
	eng.registry = correlation.NewRegistry(eng.store, registryOpts...)

	previewOpts := []preview.Option{
		preview.WithTTL(eng.previewTTL),
		preview.WithClock(eng.clock),
		preview.WithLogger(eng.logger),
	}
	if eng.previewOnHit != nil || eng.previewOnMiss != nil {
		previewOpts = append(previewOpts, preview.WithObserver(eng.previewOnHit, eng.previewOnMiss))
	}
	eng.previews = preview.NewCache(provider, previewOpts...)

	eng.executor = transition.NewExecutor(provider, eng.registry, eng.previews,
		transition.WithLifecycleHooks(eng.hooks),
		transition.WithIdentityResolver(eng.identity),
		transition.WithLogger(eng.logger),
		transition.WithClock(eng.clock),
	)

	return eng, nil
}

// BeginTransition starts a transition attempt for a work item. The result is
// either completed or pending with prompts; ErrNoTransitionAvailable means
// the workflow has no next state from here.
func (e *Engine) BeginTransition(ctx context.Context, workItemID int) (*domain.TransitionResult, error) {
	return e.executor.Begin(ctx, workItemID)
}

// FinishTransition completes a pending transition with collected values.
func (e *Engine) FinishTransition(ctx context.Context, correlationID string, values map[string]any) (*domain.TransitionOutcome, error) {
	return e.executor.Finish(ctx, correlationID, values)
}

// CancelTransition abandons a pending transition. Idempotent.
func (e *Engine) CancelTransition(ctx context.Context, correlationID string) error {
	return e.executor.Cancel(ctx, correlationID)
}

// PreviewTransition answers "what would the next transition be" from the
// cache, querying the provider on a miss.
func (e *Engine) PreviewTransition(ctx context.Context, workItemID int) (*domain.TransitionPreview, error) {
	return e.previews.Get(ctx, workItemID)
}

// InvalidatePreview drops the cached preview for one work item.
func (e *Engine) InvalidatePreview(workItemID int) {
	e.previews.Invalidate(workItemID)
}

// InvalidateAllPreviews clears the preview cache, for full list reloads.
func (e *Engine) InvalidateAllPreviews() {
	e.previews.InvalidateAll()
}

// PreviewCache exposes the preview cache for instrumentation wiring.
func (e *Engine) PreviewCache() *preview.Cache {
	return e.previews
}
