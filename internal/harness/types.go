package harness

import "github.com/roach88/tablekit/internal/querystate"

// Step kinds recorded in the trace.
const (
	StepIntent    = "intent"
	StepFetchPage = "fetch_page"
	StepFetchRow  = "fetch_row"
	StepUpdateRow = "update_row"
	StepDeleteRow = "delete_row"
)

// TraceEvent records one executed step and its outcome.
type TraceEvent struct {
	Seq   int            `json:"seq"`
	Step  string         `json:"step"`
	Name  string         `json:"name,omitempty"` // intent name
	ID    string         `json:"id,omitempty"`   // row id for row steps
	Args  map[string]any `json:"args,omitempty"` // intent args or update patch
	IDs   []string       `json:"ids,omitempty"`  // page row ids
	Total *int           `json:"total,omitempty"`
	Code  string         `json:"code,omitempty"` // error code when the step failed
}

// Label is the name assertions match on: the intent name for intents,
// the step kind otherwise.
func (e TraceEvent) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Step
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// State is the query state after the last step.
	State querystate.State `json:"state"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  querystate.Initial(),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) record(e TraceEvent) {
	e.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, e)
}
