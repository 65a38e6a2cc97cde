package domain

import (
	"errors"
	"fmt"
)

// ErrNoTransitionAvailable is returned by begin when the workflow has no next
// state from the item's current state. It is a terminal answer, not a fault;
// previews surface the same condition as Available=false.
var ErrNoTransitionAvailable = errors.New("no transition available from current state")

// ErrCorrelationNotFound is returned when a correlation id does not resolve
// to a live pending transition (stale, already consumed, or forged). The
// caller must restart with a fresh begin rather than retry.
var ErrCorrelationNotFound = errors.New("correlation id not found or expired")

// ValidationError reports a required field that was omitted or failed type
// coercion at finish time. It is raised before any provider interaction.
type ValidationError struct {
	RefName string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("field %s failed validation", e.RefName)
	}
	return fmt.Sprintf("field %s failed validation: %s", e.RefName, e.Reason)
}

// RejectedError wraps a refusal from the system of record (concurrency
// conflict, permission, business rule). The underlying cause is preserved
// verbatim for the caller.
type RejectedError struct {
	Cause error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transition rejected: %v", e.Cause)
}

func (e *RejectedError) Unwrap() error {
	return e.Cause
}
