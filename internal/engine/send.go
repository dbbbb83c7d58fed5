package engine

import (
	"context"
	"fmt"

	"github.com/roach88/objsync/internal/convert"
	"github.com/roach88/objsync/internal/graph"
	"github.com/roach88/objsync/internal/host"
	"github.com/roach88/objsync/internal/ir"
	"github.com/roach88/objsync/internal/progress"
	"github.com/roach88/objsync/internal/report"
	"github.com/roach88/objsync/internal/transfer"
	"github.com/roach88/objsync/internal/transport"
)

// uncategorized groups elements without a category in the commit.
const uncategorized = "Uncategorized"

// SendRequest describes one send.
type SendRequest struct {
	Stream string

	// Elements selects elements by handle. When empty, Filter selects
	// from the whole document, and a nil Filter selects everything.
	Elements []host.HandleID
	Filter   host.Filter

	// Transports receive the commit. At least one is required.
	Transports []transport.Transport
}

// Send converts the selected elements, wraps them in a commit node and
// uploads it to every transport.
func (e *Engine) Send(ctx context.Context, req SendRequest) *Result {
	op := e.begin(KindSend, req.Stream, progress.StageConversion, progress.StageTransfer)
	if len(req.Transports) == 0 {
		return op.fail(report.FatalSetup("no transports configured"))
	}

	op.enter(StateCollecting)
	if err := ctx.Err(); err != nil {
		return op.abort(err)
	}
	elements, err := e.collect(op, req)
	if err != nil {
		return op.abort(err)
	}
	if len(elements) == 0 {
		return op.fail(report.FatalSetup("no elements selected"))
	}

	op.enter(StateConverting)
	commit, err := e.convertElements(ctx, op, elements)
	if err != nil {
		return op.abort(err)
	}
	if op.res.Converted == 0 {
		return op.fail(report.FatalSetup("zero objects converted"))
	}

	op.enter(StateTransferring)
	rootID, err := transfer.Send(ctx, commit, req.Transports, op.transferOptions(nil))
	if err != nil {
		return op.abort(err)
	}
	op.res.RootID = rootID
	op.rep.Logf("sent %d objects as %s", graph.TotalChildrenCount(commit)+1, rootID)

	op.enter(StateCommitting)
	if err := op.commit(context.WithoutCancel(ctx), nil, false); err != nil {
		return op.abort(fmt.Errorf("record send: %w", err))
	}
	return op.done()
}

// collect resolves the selection on the executor goroutine.
func (e *Engine) collect(op *operation, req SendRequest) ([]host.Element, error) {
	var out []host.Element
	err := e.onExecutor("Collecting elements", func() error {
		if len(req.Elements) > 0 {
			for _, h := range req.Elements {
				el, ok := e.doc.GetElement(h)
				if !ok {
					op.rep.Logf("element %s not found", h)
					continue
				}
				out = append(out, el)
			}
			return nil
		}
		enum, ok := e.doc.(host.Enumerator)
		if !ok {
			return report.FatalSetup("document cannot list its elements; select elements by id")
		}
		f := req.Filter
		if f == nil {
			f = host.AllFilter{}
		}
		out = host.Select(enum, f)
		op.log.Debug("selected elements", "filter", f.Describe(), "count", len(out))
		return nil
	})
	return out, err
}

// convertElements converts elements on the executor goroutine and groups
// the nodes into a commit: one "@<category>" list per category in
// first-seen order, plus totalChildrenCount.
func (e *Engine) convertElements(ctx context.Context, op *operation, elements []host.Element) (*ir.Node, error) {
	cctx := convert.NewContext(e.doc, nil, op.rep)
	op.tracker.SetMaximum(progress.StageConversion, int64(len(elements)))

	var order []string
	groups := make(map[string]ir.IRArray)
	err := e.onExecutor("Converting elements", func() error {
		for i, el := range elements {
			if err := ctx.Err(); err != nil {
				return err
			}
			node, err := e.reg.ToGraph(cctx, el)
			switch {
			case err != nil:
				op.rep.Add(err)
				if report.IsSkip(err) {
					op.res.Skipped++
				}
			case node != nil:
				cat := categoryOf(el, node)
				if _, seen := groups[cat]; !seen {
					order = append(order, cat)
				}
				groups[cat] = append(groups[cat], node)
				op.res.Converted++
			}
			op.tracker.Advance(progress.StageConversion, int64(i+1))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	commit := ir.NewNode("Commit")
	for _, cat := range order {
		commit.Set("@"+cat, groups[cat])
	}
	commit.Set("totalChildrenCount", ir.IRInt(graph.TotalChildrenCount(commit)))
	return commit, nil
}

func categoryOf(el host.Element, node *ir.Node) string {
	if c, ok := el.(host.Categorized); ok && c.Category() != "" {
		return c.Category()
	}
	if c := node.String("category"); c != "" {
		return c
	}
	return uncategorized
}
