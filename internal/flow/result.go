package flow

import "github.com/nerrad567/gray-logic-obegraensad/internal/entry"

// ResultType discriminates the outcome of a step.
type ResultType string

const (
	ResultTypeForm        ResultType = "form"
	ResultTypeAbort       ResultType = "abort"
	ResultTypeCreateEntry ResultType = "create_entry"
)

// Result is what a step returns. Which fields are set depends on Type:
//
//	form:          StepID, Schema, Errors (empty map when there are none)
//	abort:         Reason
//	create_entry:  Title, Data, EntryID
type Result struct {
	Type    ResultType        `json:"type"`
	StepID  string            `json:"step_id,omitempty"`
	Schema  *Schema           `json:"data_schema,omitempty"`
	Errors  map[string]string `json:"errors"`
	Reason  string            `json:"reason,omitempty"`
	Title   string            `json:"title,omitempty"`
	Data    *entry.Data       `json:"data,omitempty"`
	EntryID string            `json:"entry_id,omitempty"`
}

// Terminal reports whether the flow is finished after this result.
func (r Result) Terminal() bool {
	return r.Type != ResultTypeForm
}

// UserInput is what the user submits on the "user" step.
type UserInput struct {
	Host string `json:"host"`
}
