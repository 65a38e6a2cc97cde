package prompt

import (
	"testing"

	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKnownField(t *testing.T) {
	prompts := Build([]domain.FieldSpec{
		{RefName: "Microsoft.VSTS.Scheduling.StoryPoints", Required: true},
	})

	require.Len(t, prompts, 1)
	p := prompts[0]
	assert.Equal(t, "Story Points", p.Label)
	assert.Equal(t, domain.KindNumber, p.Kind)
	assert.Equal(t, "Enter story points", p.Placeholder)
	assert.True(t, p.Required)
	assert.Nil(t, p.DefaultValue)
}

func TestBuildPreservesOrderAndDeduplicates(t *testing.T) {
	prompts := Build([]domain.FieldSpec{
		{RefName: "Custom.FieldB"},
		{RefName: "Custom.FieldA"},
		{RefName: "Custom.FieldB", DeclaredType: "integer"}, // duplicate, first wins
	})

	require.Len(t, prompts, 2)
	assert.Equal(t, "Custom.FieldB", prompts[0].RefName)
	assert.Equal(t, "Custom.FieldA", prompts[1].RefName)
	assert.Equal(t, domain.KindString, prompts[0].Kind)
}

func TestBuildPicklistWithValuesOverridesKind(t *testing.T) {
	prompts := Build([]domain.FieldSpec{
		{
			RefName:       "Microsoft.VSTS.Scheduling.StoryPoints",
			AllowedValues: []string{"1", "2", "3"},
		},
	})

	require.Len(t, prompts, 1)
	assert.Equal(t, domain.KindPicklist, prompts[0].Kind)
	assert.Equal(t, "1", prompts[0].DefaultValue)
}

func TestBuildValuelessPicklistDegradesToString(t *testing.T) {
	prompts := Build([]domain.FieldSpec{
		{RefName: "Microsoft.VSTS.Common.ResolvedReason", DeclaredType: "picklistString"},
	})

	require.Len(t, prompts, 1)
	assert.Equal(t, domain.KindString, prompts[0].Kind)
	assert.Equal(t, "", prompts[0].DefaultValue)
}

func TestInferKindFromDeclaredType(t *testing.T) {
	cases := []struct {
		declared string
		want     domain.FieldKind
	}{
		{"integer", domain.KindNumber},
		{"double", domain.KindNumber},
		{"dateTime", domain.KindDateTime},
		{"identity", domain.KindIdentity},
		{"html", domain.KindString},
	}
	for _, tc := range cases {
		got := inferKind(domain.FieldSpec{RefName: "Custom.X", DeclaredType: tc.declared})
		assert.Equal(t, tc.want, got, "declared type %s", tc.declared)
	}
}

func TestInferKindFromNamePatterns(t *testing.T) {
	cases := []struct {
		refName string
		want    domain.FieldKind
	}{
		{"Custom.EffortPoints", domain.KindNumber},
		{"Custom.ReviewedBy.CreatedBy", domain.KindIdentity},
		{"Microsoft.VSTS.Scheduling.TargetDate", domain.KindDateTime},
		{"Custom.SubState", domain.KindPicklist},
		{"Custom.Notes", domain.KindString},
	}
	for _, tc := range cases {
		got := inferKind(domain.FieldSpec{RefName: tc.refName})
		assert.Equal(t, tc.want, got, "ref name %s", tc.refName)
	}
}

func TestDefaultsByKind(t *testing.T) {
	prompts := Build([]domain.FieldSpec{
		{RefName: "System.Description"},
		{RefName: "System.AssignedTo"},
		{RefName: "Microsoft.VSTS.Scheduling.RemainingWork"},
		{RefName: "Custom.DueDate", DeclaredType: "dateTime"},
	})

	require.Len(t, prompts, 4)
	assert.Equal(t, "", prompts[0].DefaultValue)
	assert.Nil(t, prompts[1].DefaultValue)
	assert.Nil(t, prompts[2].DefaultValue)
	assert.Nil(t, prompts[3].DefaultValue)
}
