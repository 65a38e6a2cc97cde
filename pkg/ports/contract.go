package ports

import (
	"context"
	"testing"
	"time"

	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunPendingStoreContract runs a suite of tests to verify that a PendingStore
// implementation adheres to the defined interface contract.
func RunPendingStoreContract(t *testing.T, store PendingStore) {
	ctx := context.Background()
	corrID := "contract-" + time.Now().Format("20060102150405")

	pending := &domain.PendingTransition{
		CorrelationID: corrID,
		WorkItemID:    101,
		TargetState:   "Resolved",
		Reason:        "Moved to Resolved",
		Rev:           3,
		Prompts: []domain.FieldPrompt{
			{RefName: "Microsoft.VSTS.Common.ResolvedReason", Label: "Resolved Reason", Kind: domain.KindPicklist, Required: true, AllowedValues: []string{"Fixed", "Won't Fix"}},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	t.Run("Put and Get", func(t *testing.T) {
		err := store.Put(ctx, pending)
		require.NoError(t, err, "Put should not return error")

		loaded, err := store.Get(ctx, corrID)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, pending.WorkItemID, loaded.WorkItemID)
		assert.Equal(t, pending.TargetState, loaded.TargetState)
		assert.Equal(t, pending.Rev, loaded.Rev)
		require.Len(t, loaded.Prompts, 1)
		assert.Equal(t, domain.KindPicklist, loaded.Prompts[0].Kind)
		assert.Equal(t, []string{"Fixed", "Won't Fix"}, loaded.Prompts[0].AllowedValues)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "non-existent-"+corrID)
		assert.ErrorIs(t, err, domain.ErrCorrelationNotFound)
	})

	t.Run("FindByWorkItem", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, pending))

		found, err := store.FindByWorkItem(ctx, pending.WorkItemID)
		require.NoError(t, err)
		assert.Equal(t, corrID, found)

		found, err = store.FindByWorkItem(ctx, 999999)
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, pending))

		err := store.Delete(ctx, corrID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Get(ctx, corrID)
		assert.ErrorIs(t, err, domain.ErrCorrelationNotFound, "Get after Delete should return ErrCorrelationNotFound")

		found, err := store.FindByWorkItem(ctx, pending.WorkItemID)
		require.NoError(t, err)
		assert.Empty(t, found, "work item index should be cleared on Delete")
	})

	t.Run("Delete Non-Existent Is NoOp", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "already-gone-"+corrID))
	})
}
