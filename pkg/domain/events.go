package domain

import "context"

// FieldsRequiredEvent is pushed when a begin call pauses for user input.
// It carries the same payload as the pending TransitionResult so hosts can
// render the collection form from the event alone.
type FieldsRequiredEvent struct {
	CorrelationID string        `json:"correlation_id"`
	WorkItemID    int           `json:"work_item_id"`
	CurrentState  string        `json:"current_state"`
	TargetState   string        `json:"target_state"`
	Prompts       []FieldPrompt `json:"prompts"`
}

// TransitionCompletedEvent is pushed once the system of record has accepted
// a state change, whether it completed immediately or via finish.
type TransitionCompletedEvent struct {
	WorkItemID  int    `json:"work_item_id"`
	TargetState string `json:"target_state"`
}

// TransitionRejectedEvent is pushed when the system of record refuses an
// attempted mutation.
type TransitionRejectedEvent struct {
	WorkItemID int    `json:"work_item_id"`
	Cause      string `json:"cause"`
}

// LifecycleHooks defines push-style callbacks for hosts that prefer
// event-driven rendering over call/response. All hooks are optional and are
// invoked synchronously on the calling goroutine.
type LifecycleHooks struct {
	OnFieldsRequired      func(context.Context, *FieldsRequiredEvent)
	OnTransitionCompleted func(context.Context, *TransitionCompletedEvent)
	OnTransitionRejected  func(context.Context, *TransitionRejectedEvent)
}

// MergeHooks combines several hook sets into one that invokes each non-nil
// callback in order. Used when more than one consumer listens to the engine,
// such as an event stream plus metrics.
func MergeHooks(sets ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnFieldsRequired: func(ctx context.Context, ev *FieldsRequiredEvent) {
			for _, h := range sets {
				if h.OnFieldsRequired != nil {
					h.OnFieldsRequired(ctx, ev)
				}
			}
		},
		OnTransitionCompleted: func(ctx context.Context, ev *TransitionCompletedEvent) {
			for _, h := range sets {
				if h.OnTransitionCompleted != nil {
					h.OnTransitionCompleted(ctx, ev)
				}
			}
		},
		OnTransitionRejected: func(ctx context.Context, ev *TransitionRejectedEvent) {
			for _, h := range sets {
				if h.OnTransitionRejected != nil {
					h.OnTransitionRejected(ctx, ev)
				}
			}
		},
	}
}
