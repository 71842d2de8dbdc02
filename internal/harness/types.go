package harness

import "github.com/roach88/interlock/internal/ir"

// TraceEvent is one solved cycle.
type TraceEvent struct {
	Cycle int64 `json:"cycle"`

	// Fired holds the sorted "component.port" references that fired.
	Fired []string `json:"fired"`

	// Specs holds the sorted "Type.port" specs that fired.
	Specs []string `json:"specs"`

	// Candidates is the number of maximal interactions the engine chose from.
	Candidates int `json:"candidates"`
}

// FinalState is a component's state at the end of a run.
type FinalState struct {
	State     string    `json:"state"`
	Variables ir.Object `json:"variables,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every solved cycle in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Deadlock is the runtime error code that ended the run, if any.
	Deadlock string `json:"deadlock,omitempty"`

	// Components maps component ids to their final state.
	Components map[string]FinalState `json:"components,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Trace:      []TraceEvent{},
		Errors:     []string{},
		Components: make(map[string]FinalState),
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
