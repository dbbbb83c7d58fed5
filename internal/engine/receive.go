package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/objsync/internal/convert"
	"github.com/roach88/objsync/internal/graph"
	"github.com/roach88/objsync/internal/progress"
	"github.com/roach88/objsync/internal/reconcile"
	"github.com/roach88/objsync/internal/report"
	"github.com/roach88/objsync/internal/store"
	"github.com/roach88/objsync/internal/transfer"
	"github.com/roach88/objsync/internal/transport"
)

// ReceiveRequest describes one receive.
type ReceiveRequest struct {
	Stream string

	// RootID is the commit to receive. Empty means the object last sent
	// to or received from the stream.
	RootID string

	// Source is the transport to read from.
	Source transport.Transport
}

// Receive downloads a commit, reconciles it against the elements created
// by the previous receive into the same stream, and records the new
// placeholders.
func (e *Engine) Receive(ctx context.Context, req ReceiveRequest) *Result {
	op := e.begin(KindReceive, req.Stream, progress.StageTransfer, progress.StageBaking)
	if req.Source == nil {
		return op.fail(report.FatalSetup("no source transport"))
	}

	op.enter(StateCollecting)
	if err := ctx.Err(); err != nil {
		return op.abort(err)
	}
	rootID := req.RootID
	if rootID == "" {
		st, err := e.store.ReadStream(ctx, op.res.Stream)
		if errors.Is(err, store.ErrStreamNotFound) || (err == nil && st.ObjectID == "") {
			return op.fail(report.FatalSetup(fmt.Sprintf("stream %s has nothing to receive", op.res.Stream)))
		}
		if err != nil {
			return op.abort(err)
		}
		rootID = st.ObjectID
	}
	previous, err := e.store.ReadPlaceholders(ctx, op.res.Stream)
	if err != nil {
		return op.abort(err)
	}

	op.enter(StateTransferring)
	root, err := transfer.Receive(ctx, rootID, req.Source, op.transferOptions(e.cache))
	if err != nil {
		return op.abort(err)
	}
	op.res.RootID = rootID

	op.enter(StateReconciling)
	candidates, unsupported := reconcile.Candidates(e.reg, root)
	for _, n := range unsupported {
		op.rep.Add(report.Skipped(n.Label(), n.Kind))
		op.res.Skipped++
	}
	if len(candidates) == 0 {
		return op.fail(report.FatalSetup(fmt.Sprintf("commit %s has no objects this document can materialize", rootID)))
	}
	if err := ctx.Err(); err != nil {
		return op.abort(err)
	}

	cctx := convert.NewContext(e.doc, previous, op.rep)
	_, all := graph.Flatten(root)
	cctx.Index(all...)

	plan := reconcile.Diff(previous, candidates)
	op.log.Debug("reconciliation plan",
		"deletes", plan.Count(reconcile.OpDelete),
		"updates", plan.Count(reconcile.OpUpdate),
		"creates", plan.Count(reconcile.OpCreate),
	)
	op.tracker.SetMaximum(progress.StageBaking, int64(len(plan.Upserts)))
	batch, err := reconcile.Submit(e.exec, e.reg, cctx, plan, reconcile.Options{
		Logger: op.log,
		OnBaked: func(done, _ int) {
			op.tracker.Advance(progress.StageBaking, int64(done))
		},
	})
	if err != nil {
		return op.abort(err)
	}

	// Submitted mutations always run to completion.
	res, err := batch.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return op.abort(err)
	}
	op.res.Outcomes = res.Outcomes
	for _, o := range res.Outcomes {
		if o.Step.Op != reconcile.OpDelete && o.Err == nil {
			op.res.Converted++
		}
	}
	op.rep.Logf("deleted %d, created %d, updated %d, recreated %d, failed %d",
		res.Count(reconcile.ActionDeleted),
		res.Count(convert.ActionCreated),
		res.Count(convert.ActionUpdated),
		res.Count(convert.ActionRecreated),
		res.Count(reconcile.ActionFailed),
	)

	op.enter(StateCommitting)
	if err := op.commit(context.WithoutCancel(ctx), res.Placeholders, true); err != nil {
		return op.abort(fmt.Errorf("record receive: %w", err))
	}
	return op.done()
}
