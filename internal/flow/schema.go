package flow

// StepUser is the only step of the pairing flow.
const StepUser = "user"

// FieldHost is the name of the host form field.
const FieldHost = "host"

// DefaultSuggestedHost pre-fills the host field.
const DefaultSuggestedHost = "192.168.5.60"

// FieldTypeString is the only field type the pairing form uses.
const FieldTypeString = "string"

// Field describes one form input.
type Field struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	Required       bool   `json:"required"`
	SuggestedValue string `json:"suggested_value,omitempty"`
}

// Schema is a flat form description.
type Schema struct {
	Fields []Field `json:"fields"`
}

// UserSchema returns the form for the "user" step.
func UserSchema(suggestedHost string) Schema {
	return Schema{
		Fields: []Field{{
			Name:           FieldHost,
			Type:           FieldTypeString,
			Required:       true,
			SuggestedValue: suggestedHost,
		}},
	}
}
