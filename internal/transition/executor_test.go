package transition

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MuiGoku123432/adoflow/pkg/adapters/memory"
	"github.com/MuiGoku123432/adoflow/pkg/correlation"
	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/MuiGoku123432/adoflow/pkg/ports"
	"github.com/MuiGoku123432/adoflow/pkg/preview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type applyCall struct {
	id, rev int
	target  string
	fields  map[string]any
}

// fakeProvider scripts the workflow oracle and records every mutation.
type fakeProvider struct {
	mu      sync.Mutex
	item    *domain.WorkItemRef
	itemErr error
	next    *domain.NextState

	applyErr error
	applied  []applyCall

	user    string
	userErr error
}

func (f *fakeProvider) GetWorkItem(ctx context.Context, id int) (*domain.WorkItemRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.itemErr != nil {
		return nil, f.itemErr
	}
	item := *f.item
	return &item, nil
}

func (f *fakeProvider) QueryNextState(ctx context.Context, item *domain.WorkItemRef) (*domain.NextState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next, nil
}

func (f *fakeProvider) ApplyTransition(ctx context.Context, id int, rev int, targetState string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, applyCall{id: id, rev: rev, target: targetState, fields: fields})
	return nil
}

func (f *fakeProvider) CurrentUser(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return "", f.userErr
	}
	return f.user, nil
}

func (f *fakeProvider) applyCalls() []applyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]applyCall(nil), f.applied...)
}

func (f *fakeProvider) setApplyErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyErr = err
}

// hookRecorder captures emitted lifecycle events.
type hookRecorder struct {
	mu        sync.Mutex
	required  []*domain.FieldsRequiredEvent
	completed []*domain.TransitionCompletedEvent
	rejected  []*domain.TransitionRejectedEvent
}

func (h *hookRecorder) hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnFieldsRequired: func(_ context.Context, ev *domain.FieldsRequiredEvent) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.required = append(h.required, ev)
		},
		OnTransitionCompleted: func(_ context.Context, ev *domain.TransitionCompletedEvent) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.completed = append(h.completed, ev)
		},
		OnTransitionRejected: func(_ context.Context, ev *domain.TransitionRejectedEvent) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.rejected = append(h.rejected, ev)
		},
	}
}

func newTestExecutor(provider *fakeProvider, hooks *hookRecorder) (*Executor, *correlation.Registry, *preview.Cache) {
	registry := correlation.NewRegistry(memory.NewStore())
	previews := preview.NewCache(provider)

	opts := []Option{WithIdentityResolver(provider)}
	if hooks != nil {
		opts = append(opts, WithLifecycleHooks(hooks.hooks()))
	}
	return NewExecutor(provider, registry, previews, opts...), registry, previews
}

func activeTask(id, rev int) *domain.WorkItemRef {
	return &domain.WorkItemRef{ID: id, CurrentState: "Active", WorkItemType: "Task", Rev: rev}
}

func TestBeginCompletesImmediatelyWhenNoFieldsRequired(t *testing.T) {
	provider := &fakeProvider{
		item: activeTask(42, 5),
		next: &domain.NextState{TargetState: "Resolved"},
	}
	hooks := &hookRecorder{}
	exec, _, _ := newTestExecutor(provider, hooks)

	result, err := exec.Begin(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, result.Status)
	assert.Equal(t, 42, result.WorkItemID)
	assert.Equal(t, "Resolved", result.TargetState)
	assert.Empty(t, result.CorrelationID)
	assert.Empty(t, result.Prompts)

	calls := provider.applyCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, 42, calls[0].id)
	assert.Equal(t, 5, calls[0].rev)
	assert.Equal(t, "Resolved", calls[0].target)
	assert.Empty(t, calls[0].fields)

	require.Len(t, hooks.completed, 1)
	assert.Equal(t, "Resolved", hooks.completed[0].TargetState)
	assert.Empty(t, hooks.required)
}

func TestBeginTerminalState(t *testing.T) {
	provider := &fakeProvider{item: activeTask(42, 5), next: nil}
	exec, _, _ := newTestExecutor(provider, nil)

	_, err := exec.Begin(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNoTransitionAvailable)
	assert.Empty(t, provider.applyCalls())
}

func TestBeginProviderFailureIsRejected(t *testing.T) {
	provider := &fakeProvider{itemErr: errors.New("unauthorized")}
	exec, _, _ := newTestExecutor(provider, nil)

	_, err := exec.Begin(context.Background(), 42)

	var rejected *domain.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Error(), "unauthorized")
}

// Full happy path: a Task in Active needs a resolved reason before it can
// move to Resolved.
func TestBeginPendingThenFinish(t *testing.T) {
	provider := &fakeProvider{
		item: activeTask(42, 5),
		next: &domain.NextState{
			TargetState: "Resolved",
			RequiredFields: []domain.FieldSpec{{
				RefName:       "Microsoft.VSTS.Common.ResolvedReason",
				AllowedValues: []string{"Fixed", "Won't Fix"},
				Required:      true,
			}},
		},
	}
	hooks := &hookRecorder{}
	exec, _, _ := newTestExecutor(provider, hooks)
	ctx := context.Background()

	result, err := exec.Begin(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, result.Status)
	assert.NotEmpty(t, result.CorrelationID)
	require.Len(t, result.Prompts, 1)
	assert.Equal(t, domain.KindPicklist, result.Prompts[0].Kind)
	assert.Equal(t, []string{"Fixed", "Won't Fix"}, result.Prompts[0].AllowedValues)
	assert.Equal(t, "Fixed", result.Prompts[0].DefaultValue)
	assert.Empty(t, provider.applyCalls(), "begin must not mutate before fields arrive")

	require.Len(t, hooks.required, 1)
	assert.Equal(t, result.CorrelationID, hooks.required[0].CorrelationID)
	assert.Equal(t, "Active", hooks.required[0].CurrentState)

	outcome, err := exec.Finish(ctx, result.CorrelationID, map[string]any{
		"Microsoft.VSTS.Common.ResolvedReason": "Fixed",
	})
	require.NoError(t, err)
	assert.Equal(t, 42, outcome.WorkItemID)
	assert.Equal(t, "Resolved", outcome.TargetState)

	calls := provider.applyCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, 5, calls[0].rev)
	assert.Equal(t, "Fixed", calls[0].fields["Microsoft.VSTS.Common.ResolvedReason"])
	assert.Equal(t, "Moved to Resolved", calls[0].fields["System.Reason"])

	require.Len(t, hooks.completed, 1)

	// The correlation id is consumed exactly once.
	_, err = exec.Finish(ctx, result.CorrelationID, map[string]any{
		"Microsoft.VSTS.Common.ResolvedReason": "Fixed",
	})
	assert.ErrorIs(t, err, domain.ErrCorrelationNotFound)
}

func TestFinishValidatesBeforeAnyProviderCall(t *testing.T) {
	provider := &fakeProvider{
		item: activeTask(42, 5),
		next: &domain.NextState{
			TargetState: "Resolved",
			RequiredFields: []domain.FieldSpec{{
				RefName:       "Microsoft.VSTS.Common.ResolvedReason",
				AllowedValues: []string{"Fixed", "Won't Fix"},
				Required:      true,
			}},
		},
	}
	exec, _, _ := newTestExecutor(provider, nil)
	ctx := context.Background()

	result, err := exec.Begin(ctx, 42)
	require.NoError(t, err)

	// Missing required value.
	_, err = exec.Finish(ctx, result.CorrelationID, nil)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "Microsoft.VSTS.Common.ResolvedReason", validation.RefName)

	// Value outside the picklist.
	_, err = exec.Finish(ctx, result.CorrelationID, map[string]any{
		"Microsoft.VSTS.Common.ResolvedReason": "Deferred",
	})
	require.ErrorAs(t, err, &validation)

	assert.Empty(t, provider.applyCalls(), "validation failures must not reach the provider")

	// The pending entry survives validation failures.
	outcome, err := exec.Finish(ctx, result.CorrelationID, map[string]any{
		"Microsoft.VSTS.Common.ResolvedReason": "Won't Fix",
	})
	require.NoError(t, err)
	assert.Equal(t, "Resolved", outcome.TargetState)
}

func TestFinishDefaultsIdentityToCurrentUser(t *testing.T) {
	provider := &fakeProvider{
		item: activeTask(7, 2),
		user: "dev@example.com",
		next: &domain.NextState{
			TargetState: "Active",
			RequiredFields: []domain.FieldSpec{{
				RefName:  "System.AssignedTo",
				Required: true,
			}},
		},
	}
	exec, _, _ := newTestExecutor(provider, nil)
	ctx := context.Background()

	result, err := exec.Begin(ctx, 7)
	require.NoError(t, err)
	require.Len(t, result.Prompts, 1)
	assert.Equal(t, domain.KindIdentity, result.Prompts[0].Kind)

	_, err = exec.Finish(ctx, result.CorrelationID, map[string]any{})
	require.NoError(t, err)

	calls := provider.applyCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "dev@example.com", calls[0].fields["System.AssignedTo"])
}

func TestFinishSkipsOmittedOptionalFields(t *testing.T) {
	provider := &fakeProvider{
		item: activeTask(7, 2),
		next: &domain.NextState{
			TargetState: "Resolved",
			RequiredFields: []domain.FieldSpec{
				{RefName: "System.Description", Required: true},
				{RefName: "Microsoft.VSTS.Scheduling.RemainingWork", Required: false},
			},
		},
	}
	exec, _, _ := newTestExecutor(provider, nil)
	ctx := context.Background()

	result, err := exec.Begin(ctx, 7)
	require.NoError(t, err)

	_, err = exec.Finish(ctx, result.CorrelationID, map[string]any{
		"System.Description": "done",
	})
	require.NoError(t, err)

	calls := provider.applyCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "done", calls[0].fields["System.Description"])
	_, present := calls[0].fields["Microsoft.VSTS.Scheduling.RemainingWork"]
	assert.False(t, present)
}

func TestFinishRejectedKeepsPendingForRetry(t *testing.T) {
	provider := &fakeProvider{
		item: activeTask(42, 5),
		next: &domain.NextState{
			TargetState: "Resolved",
			RequiredFields: []domain.FieldSpec{{
				RefName:  "System.Description",
				Required: true,
			}},
		},
	}
	hooks := &hookRecorder{}
	exec, _, _ := newTestExecutor(provider, hooks)
	ctx := context.Background()

	result, err := exec.Begin(ctx, 42)
	require.NoError(t, err)

	provider.setApplyErr(errors.New("VS403351: rule violation"))
	_, err = exec.Finish(ctx, result.CorrelationID, map[string]any{"System.Description": "x"})

	var rejected *domain.RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Len(t, hooks.rejected, 1)
	assert.Contains(t, hooks.rejected[0].Cause, "VS403351")

	// Same correlation id works once the remote accepts.
	provider.setApplyErr(nil)
	outcome, err := exec.Finish(ctx, result.CorrelationID, map[string]any{"System.Description": "x"})
	require.NoError(t, err)
	assert.Equal(t, 42, outcome.WorkItemID)
}

func TestFinishConcurrentSingleWinner(t *testing.T) {
	provider := &fakeProvider{
		item: activeTask(42, 5),
		next: &domain.NextState{
			TargetState: "Resolved",
			RequiredFields: []domain.FieldSpec{{
				RefName:  "System.Description",
				Required: true,
			}},
		},
	}
	exec, _, _ := newTestExecutor(provider, nil)
	ctx := context.Background()

	result, err := exec.Begin(ctx, 42)
	require.NoError(t, err)

	const goroutines = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := exec.Finish(ctx, result.CorrelationID, map[string]any{"System.Description": "x"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, domain.ErrCorrelationNotFound)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Len(t, provider.applyCalls(), 1)
}

// failingDeleteStore wraps a real store and makes Delete fail on demand.
type failingDeleteStore struct {
	ports.PendingStore
	failDelete bool
}

func (s *failingDeleteStore) Delete(ctx context.Context, correlationID string) error {
	if s.failDelete {
		return errors.New("store unavailable")
	}
	return s.PendingStore.Delete(ctx, correlationID)
}

func TestFinishSurfacesConsumeFailureAfterApply(t *testing.T) {
	provider := &fakeProvider{
		item: activeTask(42, 5),
		next: &domain.NextState{
			TargetState: "Resolved",
			RequiredFields: []domain.FieldSpec{{
				RefName:  "System.Description",
				Required: true,
			}},
		},
	}
	store := &failingDeleteStore{PendingStore: memory.NewStore()}
	registry := correlation.NewRegistry(store)
	previews := preview.NewCache(provider)
	exec := NewExecutor(provider, registry, previews)
	ctx := context.Background()

	result, err := exec.Begin(ctx, 42)
	require.NoError(t, err)

	_, err = previews.Get(ctx, 42)
	require.NoError(t, err)

	store.failDelete = true
	_, err = exec.Finish(ctx, result.CorrelationID, map[string]any{"System.Description": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not consumed")
	assert.Len(t, provider.applyCalls(), 1, "the state change itself succeeded")
	assert.Equal(t, 0, previews.Len(), "the preview is stale either way")
}

func TestCancelIsIdempotent(t *testing.T) {
	provider := &fakeProvider{
		item: activeTask(42, 5),
		next: &domain.NextState{
			TargetState: "Resolved",
			RequiredFields: []domain.FieldSpec{{
				RefName:  "System.Description",
				Required: true,
			}},
		},
	}
	exec, _, _ := newTestExecutor(provider, nil)
	ctx := context.Background()

	result, err := exec.Begin(ctx, 42)
	require.NoError(t, err)

	require.NoError(t, exec.Cancel(ctx, result.CorrelationID))
	require.NoError(t, exec.Cancel(ctx, result.CorrelationID))
	require.NoError(t, exec.Cancel(ctx, "unknown-id"))

	_, err = exec.Finish(ctx, result.CorrelationID, map[string]any{"System.Description": "x"})
	assert.ErrorIs(t, err, domain.ErrCorrelationNotFound)
	assert.Empty(t, provider.applyCalls())
}

func TestCompletedTransitionInvalidatesPreview(t *testing.T) {
	provider := &fakeProvider{
		item: activeTask(42, 5),
		next: &domain.NextState{TargetState: "Resolved"},
	}
	exec, _, previews := newTestExecutor(provider, nil)
	ctx := context.Background()

	_, err := previews.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, previews.Len())

	_, err = exec.Begin(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, previews.Len(), "stale preview must be dropped after a state change")
}
