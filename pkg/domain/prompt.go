package domain

// FieldKind classifies a prompted field and determines which default value
// and which submission-time coercion apply to it.
type FieldKind string

const (
	KindNumber   FieldKind = "number"
	KindString   FieldKind = "string"
	KindPicklist FieldKind = "picklist"
	KindIdentity FieldKind = "identity"
	KindDateTime FieldKind = "datetime"
)

// FieldPrompt describes one field the user must supply before a pending
// transition can be applied. RefName is unique within a single pending
// result; for picklists AllowedValues is non-empty.
type FieldPrompt struct {
	RefName       string    `json:"ref_name"`
	Label         string    `json:"label"`
	Kind          FieldKind `json:"kind"`
	Required      bool      `json:"required"`
	AllowedValues []string  `json:"allowed_values,omitempty"`
	Placeholder   string    `json:"placeholder,omitempty"`
	DefaultValue  any       `json:"default_value,omitempty"`
}
