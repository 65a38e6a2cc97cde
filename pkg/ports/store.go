package ports

import (
	"context"

	"github.com/MuiGoku123432/adoflow/pkg/domain"
)

// PendingStore defines the interface for persisting pending transition
// records between begin and finish.
type PendingStore interface {
	// Put stores a pending transition under its correlation id.
	Put(ctx context.Context, p *domain.PendingTransition) error

	// Get retrieves a pending transition by correlation id.
	// Returns domain.ErrCorrelationNotFound if no live record exists.
	Get(ctx context.Context, correlationID string) (*domain.PendingTransition, error)

	// Delete removes the record for a correlation id. Deleting an unknown id
	// is a no-op.
	Delete(ctx context.Context, correlationID string) error

	// FindByWorkItem returns the correlation id of the live pending
	// transition for a work item, or "" when none exists. At most one live
	// record per work item is meaningful; begin uses this to supersede.
	FindByWorkItem(ctx context.Context, workItemID int) (string, error)
}
