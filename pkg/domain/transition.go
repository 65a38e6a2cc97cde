package domain

import "time"

// TransitionStatus discriminates the two outcomes of a begin call.
type TransitionStatus string

const (
	// StatusCompleted means the transition was applied without further input.
	StatusCompleted TransitionStatus = "completed"

	// StatusPending means additional fields must be collected before the
	// system of record will accept the change.
	StatusPending TransitionStatus = "pending"
)

// TransitionResult is the discriminated result of beginning a transition.
// When Status is StatusPending, CorrelationID and Prompts carry the
// field-collection request; on StatusCompleted they are empty.
type TransitionResult struct {
	Status        TransitionStatus `json:"status"`
	WorkItemID    int              `json:"work_item_id"`
	TargetState   string           `json:"target_state"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	Prompts       []FieldPrompt    `json:"prompts,omitempty"`
}

// TransitionOutcome is returned by a successful finish call.
type TransitionOutcome struct {
	WorkItemID  int    `json:"work_item_id"`
	TargetState string `json:"target_state"`
}

// PendingTransition is the registry record linking a correlation id to the
// transition attempt it belongs to. Created exactly once per pending result
// and consumed exactly once by a matching finish (or removed by cancel).
type PendingTransition struct {
	CorrelationID string        `json:"correlation_id"`
	WorkItemID    int           `json:"work_item_id"`
	TargetState   string        `json:"target_state"`
	Reason        string        `json:"reason,omitempty"`
	Rev           int           `json:"rev,omitempty"`
	Prompts       []FieldPrompt `json:"prompts"`
	CreatedAt     time.Time     `json:"created_at"`
}

// TransitionPreview is the cached answer to "what would the next transition
// be". Display-only; Available is false when the workflow has no next state
// from the item's current state.
type TransitionPreview struct {
	WorkItemID   int    `json:"work_item_id"`
	CurrentState string `json:"current_state"`
	TargetState  string `json:"target_state,omitempty"`
	Available    bool   `json:"available"`
}

// NextState is the workflow provider's answer for a single work item: the
// one reachable target state and the fields required to enter it.
type NextState struct {
	TargetState    string      `json:"target_state"`
	RequiredFields []FieldSpec `json:"required_fields,omitempty"`
}

// FieldSpec is the provider-side description of a required field, before the
// prompt builder turns it into a renderable FieldPrompt. DeclaredType is the
// provider's type name (e.g. "integer", "dateTime", "identity") and may be
// empty when the provider only knows the reference name.
type FieldSpec struct {
	RefName       string   `json:"ref_name"`
	DeclaredType  string   `json:"declared_type,omitempty"`
	AllowedValues []string `json:"allowed_values,omitempty"`
	Required      bool     `json:"required"`
}
