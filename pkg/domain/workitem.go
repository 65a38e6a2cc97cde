package domain

// WorkItemRef is an immutable snapshot of a work item at the moment a
// transition is initiated. It is supplied by the workflow provider and never
// mutated by the engine.
type WorkItemRef struct {
	// ID is the work item identifier in the system of record.
	ID int `json:"id"`

	// CurrentState is the state the item was in when the snapshot was taken.
	CurrentState string `json:"current_state"`

	// WorkItemType is the process type (Task, Bug, User Story, ...).
	WorkItemType string `json:"work_item_type"`

	// Rev is the revision number used for optimistic concurrency on updates.
	// Zero means the provider does not track revisions.
	Rev int `json:"rev,omitempty"`
}
