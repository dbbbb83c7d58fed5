package engine

import (
	"time"

	"github.com/roach88/objsync/internal/reconcile"
	"github.com/roach88/objsync/internal/report"
)

// State is an operation state.
type State string

const (
	StateCollecting   State = "collecting"
	StateConverting   State = "converting"
	StateTransferring State = "transferring"
	StateReconciling  State = "reconciling"
	StateCommitting   State = "committing"
	StateDone         State = "done"
	StateCancelled    State = "cancelled"
	StateFailed       State = "failed"
)

// Terminal reports whether s ends an operation.
func (s State) Terminal() bool {
	return s == StateDone || s == StateCancelled || s == StateFailed
}

// Operation kinds.
const (
	KindSend    = "send"
	KindReceive = "receive"
)

// Result is the outcome of one operation. It is returned for every
// operation, including failed and cancelled ones.
type Result struct {
	OperationID string
	Kind        string
	Stream      string
	State       State

	// Trace lists every state the operation entered, in order.
	Trace []State

	// RootID is the content id of the sent or received commit.
	RootID string

	// Converted counts elements converted to nodes (send) or nodes
	// materialized in the document (receive).
	Converted int

	// Skipped counts elements or nodes no converter recognized.
	Skipped int

	// Transferred counts objects written (send) or read (receive).
	Transferred int64

	// Outcomes holds the per-step reconciliation outcomes of a receive.
	Outcomes []reconcile.Outcome

	// Errors holds every accumulated diagnostic, skips included.
	Errors []*report.Error

	// Logs holds informational lines for the user.
	Logs []string

	// Percent is the combined progress over all stages.
	Percent float64

	Duration time.Duration
}

// Failures returns the errors that are not skips.
func (r *Result) Failures() []*report.Error {
	var out []*report.Error
	for _, e := range r.Errors {
		if e.Code != report.CodeSkippedType {
			out = append(out, e)
		}
	}
	return out
}

// Err returns the first fatal error, or nil.
func (r *Result) Err() error {
	for _, e := range r.Errors {
		if e.Fatal {
			return e
		}
	}
	return nil
}
