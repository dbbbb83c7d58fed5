package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/objsync/internal/engine"
)

// OperationOutput is the printed form of an engine result.
type OperationOutput struct {
	OperationID string          `json:"operation_id"`
	Kind        string          `json:"kind"`
	Stream      string          `json:"stream"`
	State       string          `json:"state"`
	Trace       []string        `json:"trace"`
	RootID      string          `json:"root_id,omitempty"`
	Converted   int             `json:"converted"`
	Skipped     int             `json:"skipped"`
	Transferred int64           `json:"transferred"`
	Transports  []string        `json:"transports,omitempty"`
	Outcomes    []OutcomeOutput `json:"outcomes,omitempty"`
	Errors      []ErrorOutput   `json:"errors,omitempty"`
	Logs        []string        `json:"logs,omitempty"`
	Percent     float64         `json:"percent"`
	DurationMS  int64           `json:"duration_ms"`
}

// OutcomeOutput is one reconciliation step.
type OutcomeOutput struct {
	Key    string `json:"key"`
	Action string `json:"action"`
	Handle string `json:"handle,omitempty"`
}

// ErrorOutput is one accumulated diagnostic.
type ErrorOutput struct {
	Code    string `json:"code"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal,omitempty"`
}

func newOperationOutput(res *engine.Result, transports []string) *OperationOutput {
	out := &OperationOutput{
		OperationID: res.OperationID,
		Kind:        res.Kind,
		Stream:      res.Stream,
		State:       string(res.State),
		RootID:      res.RootID,
		Converted:   res.Converted,
		Skipped:     res.Skipped,
		Transferred: res.Transferred,
		Transports:  transports,
		Logs:        res.Logs,
		Percent:     res.Percent,
		DurationMS:  res.Duration.Milliseconds(),
	}
	for _, s := range res.Trace {
		out.Trace = append(out.Trace, string(s))
	}
	for _, o := range res.Outcomes {
		out.Outcomes = append(out.Outcomes, OutcomeOutput{
			Key:    o.Step.Key,
			Action: string(o.Action),
			Handle: string(o.Handle),
		})
	}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, ErrorOutput{
			Code:    string(e.Code),
			Subject: e.Subject,
			Message: e.Message,
			Fatal:   e.Fatal,
		})
	}
	return out
}

func (o *OperationOutput) renderText(w io.Writer, verbose bool) {
	fmt.Fprintf(w, "%s %s: %s (%s)\n", o.Kind, o.OperationID, o.State, strings.Join(o.Trace, " -> "))
	fmt.Fprintf(w, "  stream:      %s\n", o.Stream)
	if o.RootID != "" {
		fmt.Fprintf(w, "  root:        %s\n", o.RootID)
	}
	if len(o.Transports) > 0 {
		fmt.Fprintf(w, "  transports:  %s\n", strings.Join(o.Transports, ", "))
	}
	fmt.Fprintf(w, "  converted:   %d\n", o.Converted)
	fmt.Fprintf(w, "  skipped:     %d\n", o.Skipped)
	fmt.Fprintf(w, "  transferred: %d\n", o.Transferred)
	fmt.Fprintf(w, "  progress:    %.0f%%\n", o.Percent)

	if verbose {
		for _, oc := range o.Outcomes {
			fmt.Fprintf(w, "  %-9s %s %s\n", oc.Action, oc.Key, oc.Handle)
		}
	}
	for _, l := range o.Logs {
		fmt.Fprintf(w, "  %s\n", l)
	}
	for _, e := range o.Errors {
		fatal := ""
		if e.Fatal {
			fatal = " (fatal)"
		}
		if e.Subject != "" {
			fmt.Fprintf(w, "  [%s]%s %s: %s\n", e.Code, fatal, e.Subject, e.Message)
		} else {
			fmt.Fprintf(w, "  [%s]%s %s\n", e.Code, fatal, e.Message)
		}
	}
}

// finish prints res and maps its terminal state to an exit code.
func finish(f *OutputFormatter, res *engine.Result, transports []string) error {
	if err := f.Success(newOperationOutput(res, transports)); err != nil {
		return err
	}
	switch res.State {
	case engine.StateDone:
		return nil
	case engine.StateCancelled:
		return NewExitError(ExitFailure, fmt.Sprintf("%s cancelled", res.Kind))
	default:
		if err := res.Err(); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("%s failed", res.Kind), err)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s failed", res.Kind))
	}
}
