package memory_test

import (
	"context"
	"testing"

	"github.com/MuiGoku123432/adoflow/pkg/adapters/memory"
	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/MuiGoku123432/adoflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Contract(t *testing.T) {
	ports.RunPendingStoreContract(t, memory.NewStore())
}

func TestStore_IsolatesStoredData(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	original := &domain.PendingTransition{
		CorrelationID: "c1",
		WorkItemID:    7,
		TargetState:   "Active",
		Prompts: []domain.FieldPrompt{
			{RefName: "System.Description", Kind: domain.KindString, Required: true},
		},
	}
	require.NoError(t, store.Put(ctx, original))

	// Mutating the caller's copy must not affect the stored record.
	original.Prompts[0].RefName = "mutated"

	loaded, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "System.Description", loaded.Prompts[0].RefName)

	// Mutating a loaded copy must not affect subsequent reads either.
	loaded.Prompts[0].RefName = "mutated-again"
	reloaded, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "System.Description", reloaded.Prompts[0].RefName)
}

func TestStore_SupersededIndex(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.PendingTransition{CorrelationID: "old", WorkItemID: 7, TargetState: "Active"}))
	require.NoError(t, store.Put(ctx, &domain.PendingTransition{CorrelationID: "new", WorkItemID: 7, TargetState: "Active"}))

	found, err := store.FindByWorkItem(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "new", found)

	// Deleting the stale record must not clobber the index for the new one.
	require.NoError(t, store.Delete(ctx, "old"))
	found, err = store.FindByWorkItem(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "new", found)
}
