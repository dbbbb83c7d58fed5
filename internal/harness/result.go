package harness

import (
	"github.com/roach88/objsync/internal/engine"
)

// Result is the outcome of a scenario run.
type Result struct {
	Name string

	// Pass is false once any expectation or assertion failed.
	Pass bool

	Steps  []StepResult
	Errors []string

	// Target lists the final target document elements in document order.
	Target []TargetElement

	// Placeholders counts the key-to-handle records of the target stream.
	Placeholders int

	// Transactions names every transaction the target ran, in order.
	Transactions []string
}

// NewResult returns a passing result for the named scenario.
func NewResult(name string) *Result {
	return &Result{Name: name, Pass: true}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}

// StepResult is the deterministic part of one step's outcome.
type StepResult struct {
	Index       int
	Kind        string
	OperationID string
	State       string
	Trace       []string
	Converted   int
	Skipped     int
	Outcomes    []StepOutcome
	ErrorCodes  []string

	// Notes describe edit steps.
	Notes []string
}

// StepOutcome is one reconciliation outcome of a receive.
type StepOutcome struct {
	Action string
	Key    string
}

// TargetElement is one element left in the target document.
type TargetElement struct {
	Kind  string
	Label string
}

func stepFromResult(kind string, res *engine.Result) StepResult {
	sr := StepResult{
		Kind:        kind,
		OperationID: res.OperationID,
		State:       string(res.State),
		Converted:   res.Converted,
		Skipped:     res.Skipped,
	}
	for _, s := range res.Trace {
		sr.Trace = append(sr.Trace, string(s))
	}
	for _, o := range res.Outcomes {
		sr.Outcomes = append(sr.Outcomes, StepOutcome{Action: string(o.Action), Key: o.Step.Key})
	}
	for _, e := range res.Errors {
		sr.ErrorCodes = append(sr.ErrorCodes, string(e.Code))
	}
	return sr
}

// countActions tallies outcomes by action.
func (s StepResult) countActions() map[string]int {
	counts := make(map[string]int)
	for _, o := range s.Outcomes {
		counts[o.Action]++
	}
	return counts
}

// countErrors tallies diagnostics by code.
func (s StepResult) countErrors() map[string]int {
	counts := make(map[string]int)
	for _, c := range s.ErrorCodes {
		counts[c]++
	}
	return counts
}
