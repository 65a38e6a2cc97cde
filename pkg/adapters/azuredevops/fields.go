package azuredevops

import (
	"regexp"
	"strings"
)

// patchOp is one JSON Patch operation in an ADO work item update.
type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	From  string `json:"from,omitempty"`
}

// ADO reports missing fields either as parenthesized dotted reference names
// or as "Field 'X' is required" sentences, depending on the rule that fired.
var (
	parenRefName  = regexp.MustCompile(`\(([A-Za-z0-9_.]+)\)`)
	requiredField = regexp.MustCompile(`[Ff]ield\s+'([^']+)'\s+is\s+required`)
)

// parseRequiredFields extracts field reference names from a validation error
// message, preserving first-seen order and dropping duplicates.
func parseRequiredFields(message string) []string {
	var names []string
	seen := make(map[string]struct{})

	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for _, match := range parenRefName.FindAllStringSubmatch(message, -1) {
		// Only dotted names are field references; bare words in parentheses
		// are usually state names or prose.
		if name := match[1]; strings.Contains(name, ".") {
			add(name)
		}
	}
	for _, match := range requiredField.FindAllStringSubmatch(message, -1) {
		add(match[1])
	}
	return names
}
