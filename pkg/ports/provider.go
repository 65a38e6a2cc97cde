package ports

import (
	"context"

	"github.com/MuiGoku123432/adoflow/pkg/domain"
)

// WorkflowProvider is the consumed contract of the workflow rules provider
// and system of record. The engine treats it as an opaque oracle: it never
// hard-codes workflow knowledge and never retries transport failures on the
// provider's behalf.
type WorkflowProvider interface {
	// GetWorkItem fetches the current snapshot of a work item.
	GetWorkItem(ctx context.Context, id int) (*domain.WorkItemRef, error)

	// QueryNextState returns the single next state reachable from the item's
	// current state for its type, with the fields required to enter it.
	// Returns (nil, nil) when the workflow has no next state from here.
	QueryNextState(ctx context.Context, item *domain.WorkItemRef) (*domain.NextState, error)

	// ApplyTransition submits the target state plus field values to the
	// system of record as a single atomic update. A non-zero rev requests an
	// optimistic concurrency check against that revision.
	ApplyTransition(ctx context.Context, id int, rev int, targetState string, fields map[string]any) error
}

// IdentityResolver resolves the acting user, used to default identity fields
// that were left blank at submission time.
type IdentityResolver interface {
	CurrentUser(ctx context.Context) (string, error)
}
