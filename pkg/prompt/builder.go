// Package prompt converts provider field specs into renderable form prompts
// and performs the kind-specific value coercion applied at submission time.
package prompt

import (
	"strings"

	"github.com/MuiGoku123432/adoflow/pkg/domain"
)

// knownFields maps well-known field reference names to a friendly label and
// placeholder. Anything not listed falls back to pattern-based inference.
var knownFields = map[string]struct {
	label       string
	kind        domain.FieldKind
	placeholder string
}{
	"Microsoft.VSTS.Scheduling.StoryPoints":    {"Story Points", domain.KindNumber, "Enter story points"},
	"Microsoft.VSTS.Scheduling.RemainingWork":  {"Remaining Work", domain.KindNumber, "Enter remaining work hours"},
	"Microsoft.VSTS.Common.Priority":           {"Priority", domain.KindNumber, "Enter priority (1-4)"},
	"Microsoft.VSTS.Common.AcceptanceCriteria": {"Acceptance Criteria", domain.KindString, "Enter acceptance criteria"},
	"System.AssignedTo":                        {"Assigned To", domain.KindIdentity, "Enter assignee or leave blank for current user"},
	"System.Description":                       {"Description", domain.KindString, "Enter description"},
}

// Build converts field specs from the workflow provider into UI prompts.
// It is pure and deterministic: the output order matches the input order, so
// form field order is predictable. RefNames are deduplicated; the first spec
// for a reference name wins.
func Build(specs []domain.FieldSpec) []domain.FieldPrompt {
	prompts := make([]domain.FieldPrompt, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))

	for _, spec := range specs {
		if _, dup := seen[spec.RefName]; dup {
			continue
		}
		seen[spec.RefName] = struct{}{}
		prompts = append(prompts, buildOne(spec))
	}
	return prompts
}

func buildOne(spec domain.FieldSpec) domain.FieldPrompt {
	p := domain.FieldPrompt{
		RefName:       spec.RefName,
		Required:      spec.Required,
		AllowedValues: spec.AllowedValues,
	}

	if known, ok := knownFields[spec.RefName]; ok {
		p.Label = known.label
		p.Kind = known.kind
		p.Placeholder = known.placeholder
	} else {
		p.Label = spec.RefName
		p.Kind = inferKind(spec)
	}

	// A picklist without values cannot be rendered as one; a picklist with
	// values overrides whatever the name suggested.
	if len(spec.AllowedValues) > 0 {
		p.Kind = domain.KindPicklist
	} else if p.Kind == domain.KindPicklist {
		p.Kind = domain.KindString
	}

	p.DefaultValue = defaultFor(p)
	return p
}

// inferKind determines the field kind from the provider's declared type, or
// from reference-name patterns when the provider only knows the name.
func inferKind(spec domain.FieldSpec) domain.FieldKind {
	switch strings.ToLower(spec.DeclaredType) {
	case "integer", "double", "number":
		return domain.KindNumber
	case "datetime", "date":
		return domain.KindDateTime
	case "identity":
		return domain.KindIdentity
	case "picklist", "pickliststring", "picklistinteger":
		return domain.KindPicklist
	case "string", "plaintext", "html", "text":
		return domain.KindString
	}

	name := spec.RefName
	switch {
	case strings.Contains(name, "Points"), strings.Contains(name, "Priority"), strings.Contains(name, "Work"):
		return domain.KindNumber
	case strings.Contains(name, "AssignedTo"), strings.Contains(name, "CreatedBy"), strings.Contains(name, "ChangedBy"):
		return domain.KindIdentity
	case strings.Contains(name, "Date"), strings.Contains(name, "Time"):
		return domain.KindDateTime
	case strings.Contains(name, "State"), strings.Contains(name, "Reason"):
		return domain.KindPicklist
	default:
		return domain.KindString
	}
}

// defaultFor computes the initial form value for a prompt: empty string for
// free text, nil for numbers and dates, the first allowed value for
// picklists, nil for identities (meaning "resolve to the acting user at
// submission time").
func defaultFor(p domain.FieldPrompt) any {
	switch p.Kind {
	case domain.KindString:
		return ""
	case domain.KindPicklist:
		if len(p.AllowedValues) > 0 {
			return p.AllowedValues[0]
		}
		return ""
	default:
		return nil
	}
}
