package prompt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.False(t, IsEmpty("x"))
	assert.False(t, IsEmpty(0.0))
	assert.False(t, IsEmpty(false))
}

func TestCoerceNumber(t *testing.T) {
	p := domain.FieldPrompt{RefName: "Custom.Effort", Kind: domain.KindNumber}

	got, err := Coerce(p, "3.5")
	require.NoError(t, err)
	assert.Equal(t, 3.5, got)

	got, err = Coerce(p, 4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)

	got, err = Coerce(p, json.Number("8"))
	require.NoError(t, err)
	assert.Equal(t, 8.0, got)

	_, err = Coerce(p, "not a number")
	assert.Error(t, err)

	_, err = Coerce(p, true)
	assert.Error(t, err)
}

func TestCoerceDateTime(t *testing.T) {
	p := domain.FieldPrompt{RefName: "Custom.DueDate", Kind: domain.KindDateTime}

	got, err := Coerce(p, "2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15T00:00:00Z", got)

	got, err = Coerce(p, "2026-03-15T10:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15T08:30:00Z", got)

	loc := time.FixedZone("X", 3600)
	got, err = Coerce(p, time.Date(2026, 3, 15, 1, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15T00:00:00Z", got)

	_, err = Coerce(p, "yesterday")
	assert.Error(t, err)
}

func TestCoercePicklist(t *testing.T) {
	p := domain.FieldPrompt{
		RefName:       "Microsoft.VSTS.Common.ResolvedReason",
		Kind:          domain.KindPicklist,
		AllowedValues: []string{"Fixed", "Won't Fix"},
	}

	got, err := Coerce(p, "Fixed")
	require.NoError(t, err)
	assert.Equal(t, "Fixed", got)

	_, err = Coerce(p, "Deferred")
	assert.Error(t, err)

	_, err = Coerce(p, 1)
	assert.Error(t, err)
}

func TestCoerceString(t *testing.T) {
	p := domain.FieldPrompt{RefName: "System.Description", Kind: domain.KindString}

	got, err := Coerce(p, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = Coerce(p, 42.0)
	require.NoError(t, err)
	assert.Equal(t, "42", got)
}

func TestCoerceIdentityPassesThrough(t *testing.T) {
	p := domain.FieldPrompt{RefName: "System.AssignedTo", Kind: domain.KindIdentity}

	got, err := Coerce(p, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", got)

	_, err = Coerce(p, 7)
	assert.Error(t, err)
}
