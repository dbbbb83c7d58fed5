package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/objsync/internal/convert"
	"github.com/roach88/objsync/internal/executor"
	"github.com/roach88/objsync/internal/host"
	"github.com/roach88/objsync/internal/ir"
	"github.com/roach88/objsync/internal/metrics"
	"github.com/roach88/objsync/internal/report"
)

// Mutation names, as they appear in the host's undo history.
const (
	MutationCleanup  = "Cleaning up old elements"
	MutationBake     = "Baking"
	mutationFinalize = "Recording placeholders"
)

// Actions recorded for steps that did not go through a converter.
const (
	ActionDeleted convert.Action = "deleted"
	ActionMissing convert.Action = "missing"
	ActionFailed  convert.Action = "failed"
)

// Outcome is what happened to one step.
type Outcome struct {
	Step   Step
	Action convert.Action
	Handle host.HandleID
	Err    error
}

// Result is the outcome of an applied plan.
type Result struct {
	// Outcomes holds one entry per step, deletes first.
	Outcomes []Outcome

	// Placeholders is the key-to-handle mapping to persist for the next
	// receive into the same stream.
	Placeholders []ir.Placeholder
}

// Count returns how many outcomes carry action.
func (r *Result) Count(action convert.Action) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == action {
			n++
		}
	}
	return n
}

// Options configure Submit.
type Options struct {
	Logger *slog.Logger

	// OnBaked is called on the executor goroutine after each create or
	// update step.
	OnBaked func(done, total int)
}

// Batch is a plan submitted to an executor.
type Batch struct {
	plan Plan
	reg  *convert.Registry
	cctx *convert.Context
	opts Options

	deletes []Outcome
	upserts []Outcome
	result  *Result

	cleanup  *executor.Ticket
	bake     *executor.Ticket
	finalize *executor.Ticket
}

// Submit schedules plan on ex: one transactional mutation for the
// deletes, one for the creates and updates, and a final mutation that
// computes the new placeholders once both have run. Per-step failures are
// added to cctx.Report and never fail the mutation.
//
// Once submitted the work cannot be cancelled.
func Submit(ex *executor.Executor, reg *convert.Registry, cctx *convert.Context, plan Plan, opts Options) (*Batch, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	b := &Batch{plan: plan, reg: reg, cctx: cctx, opts: opts}

	var err error
	if len(plan.Deletes) > 0 {
		b.cleanup, err = ex.Enqueue(executor.Mutation{Name: MutationCleanup, Fn: b.runCleanup, Transactional: true})
		if err != nil {
			return nil, err
		}
	}
	if len(plan.Upserts) > 0 {
		b.bake, err = ex.Enqueue(executor.Mutation{Name: MutationBake, Fn: b.runBake, Transactional: true})
		if err != nil {
			return nil, err
		}
	}
	b.finalize, err = ex.Enqueue(executor.Mutation{Name: mutationFinalize, Fn: b.runFinalize})
	if err != nil {
		return nil, err
	}
	ex.Raise()
	return b, nil
}

// Wait blocks until every mutation of the batch has run.
func (b *Batch) Wait(ctx context.Context) (*Result, error) {
	if err := b.finalize.Wait(ctx); err != nil {
		return nil, err
	}
	return b.result, nil
}

func (b *Batch) runCleanup() error {
	doc := b.cctx.Doc
	b.deletes = make([]Outcome, 0, len(b.plan.Deletes))
	for _, s := range b.plan.Deletes {
		o := Outcome{Step: s, Action: ActionDeleted}
		if _, ok := doc.GetElement(s.Handle); !ok {
			o.Action = ActionMissing
		} else if err := doc.Delete(s.Handle); err != nil {
			o.Action, o.Err = ActionFailed, err
			b.cctx.Report.Add(report.ReconciliationFailed(fmt.Sprintf("delete %s (%s)", s.Key, s.Handle), err))
		}
		b.deletes = append(b.deletes, o)
	}
	return nil
}

func (b *Batch) runBake() error {
	total := len(b.plan.Upserts)
	b.upserts = make([]Outcome, 0, total)
	for i, s := range b.plan.Upserts {
		o := Outcome{Step: s}
		applied, err := b.reg.ToNative(b.cctx, s.Node)
		if err != nil {
			o.Action, o.Err = ActionFailed, err
			b.cctx.Report.Add(err)
			b.opts.Logger.Warn("bake failed", "key", s.Key, "kind", s.Node.Kind, "error", err)
		} else {
			o.Action, o.Handle = applied.Action, applied.Handle
		}
		b.upserts = append(b.upserts, o)
		if b.opts.OnBaked != nil {
			b.opts.OnBaked(i+1, total)
		}
	}
	return nil
}

// runFinalize runs after the cleanup and bake mutations. A mutation that
// failed as a whole was rolled back, so each of its steps is a failure.
func (b *Batch) runFinalize() error {
	if b.cleanup != nil && b.cleanup.Err() != nil {
		b.deletes = b.failAll(b.plan.Deletes, MutationCleanup, b.cleanup.Err())
	}
	if b.bake != nil && b.bake.Err() != nil {
		b.upserts = b.failAll(b.plan.Upserts, MutationBake, b.bake.Err())
	}

	res := &Result{Outcomes: make([]Outcome, 0, len(b.deletes)+len(b.upserts))}
	res.Outcomes = append(res.Outcomes, b.deletes...)
	res.Outcomes = append(res.Outcomes, b.upserts...)

	doc := b.cctx.Doc
	exists := func(h host.HandleID) bool {
		if h == "" {
			return false
		}
		_, ok := doc.GetElement(h)
		return ok
	}
	for _, o := range b.upserts {
		switch {
		case o.Err == nil && o.Handle != "":
			res.Placeholders = append(res.Placeholders, ir.Placeholder{ApplicationID: o.Step.Key, NativeHandleID: string(o.Handle)})
		case o.Err != nil && exists(o.Step.Handle):
			res.Placeholders = append(res.Placeholders, ir.Placeholder{ApplicationID: o.Step.Key, NativeHandleID: string(o.Step.Handle)})
		}
	}
	for _, o := range b.deletes {
		if o.Err != nil && exists(o.Step.Handle) {
			res.Placeholders = append(res.Placeholders, ir.Placeholder{ApplicationID: o.Step.Key, NativeHandleID: string(o.Step.Handle)})
		}
	}

	for _, o := range res.Outcomes {
		metrics.Reconciled.WithLabelValues(string(o.Action)).Inc()
	}
	b.result = res
	return nil
}

func (b *Batch) failAll(steps []Step, name string, err error) []Outcome {
	b.cctx.Report.Add(report.ReconciliationFailed(name, err))
	out := make([]Outcome, len(steps))
	for i, s := range steps {
		out[i] = Outcome{Step: s, Action: ActionFailed, Err: err}
	}
	return out
}
