// Package transition implements the begin/finish protocol that moves work
// items through their workflow one state at a time.
package transition

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/MuiGoku123432/adoflow/internal/logging"
	"github.com/MuiGoku123432/adoflow/pkg/correlation"
	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/MuiGoku123432/adoflow/pkg/ports"
	"github.com/MuiGoku123432/adoflow/pkg/preview"
	"github.com/MuiGoku123432/adoflow/pkg/prompt"
)

// Executor owns the transition lifecycle. Per attempt it decides whether a
// transition can complete immediately or must pause for user input, and it
// keeps the preview cache honest by invalidating entries whenever a
// transition lands.
type Executor struct {
	provider ports.WorkflowProvider
	registry *correlation.Registry
	previews *preview.Cache
	identity ports.IdentityResolver
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the Executor.
type Option func(*Executor)

// WithLifecycleHooks registers push-event callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = hooks
	}
}

// WithIdentityResolver sets the resolver used to default identity fields to
// the acting user.
func WithIdentityResolver(resolver ports.IdentityResolver) Option {
	return func(e *Executor) {
		e.identity = resolver
	}
}

// WithLogger sets a structured logger for the executor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// NewExecutor creates an executor with its collaborators. The preview cache
// may be nil when the host does not use previews.
func NewExecutor(provider ports.WorkflowProvider, registry *correlation.Registry, previews *preview.Cache, opts ...Option) *Executor {
	e := &Executor{
		provider: provider,
		registry: registry,
		previews: previews,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Begin starts a transition attempt for a work item. It discovers the next
// state from the workflow provider and either applies the transition
// immediately (no fields required) or registers a pending transition and
// returns the prompts to collect. Returns domain.ErrNoTransitionAvailable
// when the workflow is terminal from the item's current state.
func (e *Executor) Begin(ctx context.Context, workItemID int) (*domain.TransitionResult, error) {
	item, err := e.provider.GetWorkItem(ctx, workItemID)
	if err != nil {
		return nil, &domain.RejectedError{Cause: fmt.Errorf("failed to fetch work item %d: %w", workItemID, err)}
	}

	next, err := e.provider.QueryNextState(ctx, item)
	if err != nil {
		return nil, &domain.RejectedError{Cause: fmt.Errorf("failed to query next state: %w", err)}
	}
	if next == nil {
		return nil, domain.ErrNoTransitionAvailable
	}

	e.logger.Debug("next state resolved",
		"work_item_id", workItemID,
		"current_state", item.CurrentState,
		"target_state", next.TargetState,
		"required_fields", len(next.RequiredFields),
	)

	if len(next.RequiredFields) == 0 {
		return e.applyImmediate(ctx, item, next.TargetState)
	}
	return e.registerPending(ctx, item, next)
}

// applyImmediate performs the real update now. No pending entry is created.
func (e *Executor) applyImmediate(ctx context.Context, item *domain.WorkItemRef, targetState string) (*domain.TransitionResult, error) {
	if err := e.provider.ApplyTransition(ctx, item.ID, item.Rev, targetState, nil); err != nil {
		e.emitRejected(ctx, item.ID, err)
		return nil, &domain.RejectedError{Cause: err}
	}

	if e.previews != nil {
		e.previews.Invalidate(item.ID)
	}
	e.emitCompleted(ctx, item.ID, targetState)

	e.logger.Info("transition completed",
		"work_item_id", item.ID,
		"from_state", item.CurrentState,
		"target_state", targetState,
	)

	return &domain.TransitionResult{
		Status:      domain.StatusCompleted,
		WorkItemID:  item.ID,
		TargetState: targetState,
	}, nil
}

// registerPending records the attempt and returns the prompts. The work item
// is not mutated yet; a half-applied state is never visible to readers.
func (e *Executor) registerPending(ctx context.Context, item *domain.WorkItemRef, next *domain.NextState) (*domain.TransitionResult, error) {
	prompts := prompt.Build(next.RequiredFields)
	correlationID := e.registry.NewID()

	pending := &domain.PendingTransition{
		CorrelationID: correlationID,
		WorkItemID:    item.ID,
		TargetState:   next.TargetState,
		Reason:        "Moved to " + next.TargetState,
		Rev:           item.Rev,
		Prompts:       prompts,
		CreatedAt:     e.now().UTC(),
	}
	if err := e.registry.Register(ctx, pending); err != nil {
		return nil, fmt.Errorf("failed to register pending transition: %w", err)
	}

	e.logger.Info("transition pending, fields required",
		"work_item_id", item.ID,
		"target_state", next.TargetState,
		"correlation_id", correlationID,
		"prompts", len(prompts),
	)

	if e.hooks.OnFieldsRequired != nil {
		e.hooks.OnFieldsRequired(ctx, &domain.FieldsRequiredEvent{
			CorrelationID: correlationID,
			WorkItemID:    item.ID,
			CurrentState:  item.CurrentState,
			TargetState:   next.TargetState,
			Prompts:       prompts,
		})
	}

	return &domain.TransitionResult{
		Status:        domain.StatusPending,
		WorkItemID:    item.ID,
		TargetState:   next.TargetState,
		CorrelationID: correlationID,
		Prompts:       prompts,
	}, nil
}

// Finish completes a pending transition with the collected field values.
// Validation and coercion happen before any provider call; a rejected remote
// update leaves the pending entry intact so a corrected resubmission can
// reuse the same correlation id.
func (e *Executor) Finish(ctx context.Context, correlationID string, values map[string]any) (*domain.TransitionOutcome, error) {
	var outcome *domain.TransitionOutcome

	err := e.registry.WithLock(ctx, correlationID, func(ctx context.Context) error {
		pending, err := e.registry.Store().Get(ctx, correlationID)
		if err != nil {
			return err
		}

		fields, err := e.collectFields(ctx, pending, values)
		if err != nil {
			return err
		}

		if err := e.provider.ApplyTransition(ctx, pending.WorkItemID, pending.Rev, pending.TargetState, fields); err != nil {
			e.emitRejected(ctx, pending.WorkItemID, err)
			return &domain.RejectedError{Cause: err}
		}

		// Consume the entry only after the system of record accepted it. A
		// consume failure must surface: a live entry for an applied
		// transition invites a replay, and not every provider has a rev
		// check to reject the second apply.
		if err := e.registry.Store().Delete(ctx, correlationID); err != nil {
			if e.previews != nil {
				e.previews.Invalidate(pending.WorkItemID)
			}
			return fmt.Errorf("transition applied but pending entry was not consumed: %w", err)
		}

		outcome = &domain.TransitionOutcome{
			WorkItemID:  pending.WorkItemID,
			TargetState: pending.TargetState,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.previews != nil {
		e.previews.Invalidate(outcome.WorkItemID)
	}
	e.emitCompleted(ctx, outcome.WorkItemID, outcome.TargetState)

	e.logger.Info("pending transition finished",
		"work_item_id", outcome.WorkItemID,
		"target_state", outcome.TargetState,
		"correlation_id", correlationID,
	)

	return outcome, nil
}

// collectFields validates required prompts and coerces every supplied value
// per its kind. It never touches the network.
func (e *Executor) collectFields(ctx context.Context, pending *domain.PendingTransition, values map[string]any) (map[string]any, error) {
	fields := make(map[string]any, len(pending.Prompts)+1)
	if pending.Reason != "" {
		fields["System.Reason"] = pending.Reason
	}

	for _, p := range pending.Prompts {
		raw, supplied := values[p.RefName]
		if !supplied || prompt.IsEmpty(raw) {
			if p.Kind == domain.KindIdentity {
				user, err := e.currentUser(ctx)
				if err != nil {
					return nil, &domain.ValidationError{RefName: p.RefName, Reason: err.Error()}
				}
				fields[p.RefName] = user
				continue
			}
			if p.Required {
				return nil, &domain.ValidationError{RefName: p.RefName, Reason: "required field is missing"}
			}
			continue
		}

		coerced, err := prompt.Coerce(p, raw)
		if err != nil {
			return nil, &domain.ValidationError{RefName: p.RefName, Reason: err.Error()}
		}
		fields[p.RefName] = coerced
	}

	return fields, nil
}

func (e *Executor) currentUser(ctx context.Context) (string, error) {
	if e.identity == nil {
		return "", fmt.Errorf("no identity resolver configured")
	}
	return e.identity.CurrentUser(ctx)
}

// Cancel removes a pending transition without applying it. Idempotent:
// cancelling an unknown id is a no-op, because the caller may race with
// expiry or a concurrent finish.
func (e *Executor) Cancel(ctx context.Context, correlationID string) error {
	return e.registry.Remove(ctx, correlationID)
}

func (e *Executor) emitCompleted(ctx context.Context, workItemID int, targetState string) {
	if e.hooks.OnTransitionCompleted != nil {
		e.hooks.OnTransitionCompleted(ctx, &domain.TransitionCompletedEvent{
			WorkItemID:  workItemID,
			TargetState: targetState,
		})
	}
}

func (e *Executor) emitRejected(ctx context.Context, workItemID int, cause error) {
	if e.hooks.OnTransitionRejected != nil {
		e.hooks.OnTransitionRejected(ctx, &domain.TransitionRejectedEvent{
			WorkItemID: workItemID,
			Cause:      cause.Error(),
		})
	}
}
