package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/objsync/internal/engine"
	"github.com/roach88/objsync/internal/executor"
	"github.com/roach88/objsync/internal/host"
	"github.com/roach88/objsync/internal/host/memdoc"
	"github.com/roach88/objsync/internal/kit"
	"github.com/roach88/objsync/internal/store"
	"github.com/roach88/objsync/internal/testutil"
	"github.com/roach88/objsync/internal/transport"
	"github.com/roach88/objsync/internal/transport/memory"
)

// side is one document with its own state database, mutation loop and
// engine.
type side struct {
	doc    *memdoc.Document
	store  *store.Store
	exec   *executor.Executor
	engine *engine.Engine
	done   chan error
}

func openSide(ctx context.Context, doc *memdoc.Document, prefix string, logger *slog.Logger) (*side, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	s := &side{doc: doc, store: st, done: make(chan error, 1)}
	s.exec = executor.New(doc, executor.WithLogger(logger))
	go func() { s.done <- s.exec.Run(context.Background()) }()

	s.engine, err = engine.New(ctx, doc, kit.New(doc), s.exec, st,
		engine.WithLogger(logger),
		engine.WithIDGenerator(testutil.NewSequenceIDs(prefix)),
		engine.WithNow(testutil.NewStepClock(time.Second).Now),
	)
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *side) close() {
	s.exec.Close()
	<-s.done
	s.store.Close()
}

// harness holds the two sides of a running scenario.
type harness struct {
	source  *side
	target  *side
	objects transport.Transport

	// lastRoot is the commit of the latest successful send.
	lastRoot string
}

// Run executes a scenario and returns its result. Each run uses fresh
// documents, state databases and object transport.
//
// Execution flow:
// 1. Load the source document and open both sides
// 2. Run the steps in order, checking each step's expect clause
// 3. Capture the final target state and evaluate the assertions
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sourceDoc, err := loadElements(scenario.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to load source: %w", err)
	}

	h := &harness{objects: memory.New("objects")}
	if h.source, err = openSide(ctx, sourceDoc, "src", logger); err != nil {
		return nil, err
	}
	defer h.source.close()
	if h.target, err = openSide(ctx, memdoc.New(), "dst", logger); err != nil {
		return nil, err
	}
	defer h.target.close()

	result := NewResult(scenario.Name)
	for i, step := range scenario.Steps {
		sr, err := h.runStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		sr.Index = i + 1
		result.Steps = append(result.Steps, sr)
		if step.Expect != nil {
			for _, msg := range checkExpect(sr, step.Expect) {
				result.AddError(fmt.Sprintf("step %d (%s): %s", i+1, sr.Kind, msg))
			}
		}
	}

	if err := h.captureTarget(ctx, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *harness) runStep(ctx context.Context, step Step) (StepResult, error) {
	switch step.Kind() {
	case StepSend:
		req := engine.SendRequest{Transports: []transport.Transport{h.objects}}
		for _, id := range step.Send.Elements {
			req.Elements = append(req.Elements, host.HandleID(id))
		}
		if len(step.Send.Categories) > 0 {
			req.Filter = host.CategoryFilter{Categories: step.Send.Categories}
		}
		res := h.source.engine.Send(ctx, req)
		if res.State == engine.StateDone {
			h.lastRoot = res.RootID
		}
		return stepFromResult(StepSend, res), nil

	case StepReceive:
		res := h.target.engine.Receive(ctx, engine.ReceiveRequest{
			RootID: h.lastRoot,
			Source: h.objects,
		})
		return stepFromResult(StepReceive, res), nil

	case StepEdit:
		notes, err := h.edit(ctx, step.Edit)
		return StepResult{Kind: StepEdit, Notes: notes}, err

	default:
		return StepResult{}, fmt.Errorf("malformed step")
	}
}

// edit applies an edit step to the source document on its executor.
func (h *harness) edit(ctx context.Context, e *EditStep) ([]string, error) {
	var upserts []memdoc.Element
	if len(e.Upsert) > 0 {
		doc, err := loadElements(e.Upsert)
		if err != nil {
			return nil, err
		}
		for _, el := range doc.Elements() {
			upserts = append(upserts, el.(memdoc.Element))
		}
	}

	var notes []string
	t, err := h.source.exec.Submit(executor.Mutation{
		Name:          "Editing",
		Transactional: true,
		Fn: func() error {
			for _, id := range e.Delete {
				if err := h.source.doc.Delete(host.HandleID(id)); err != nil {
					return err
				}
				notes = append(notes, "delete "+id)
			}
			for _, el := range upserts {
				h.source.doc.Seed(el)
				notes = append(notes, "upsert "+string(el.HandleID()))
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	if err := t.Wait(ctx); err != nil {
		return nil, fmt.Errorf("edit: %w", err)
	}
	return notes, nil
}

func (h *harness) captureTarget(ctx context.Context, result *Result) error {
	for _, el := range h.target.doc.Elements() {
		te := TargetElement{Kind: memdoc.KindOf(el)}
		if l, ok := el.(interface{ Label() string }); ok {
			te.Label = l.Label()
		}
		result.Target = append(result.Target, te)
	}
	ph, err := h.target.store.ReadPlaceholders(ctx, engine.DefaultStream)
	if err != nil {
		return err
	}
	result.Placeholders = len(ph)
	for _, tx := range h.target.doc.Transactions() {
		name := tx.Name
		if !tx.Committed {
			name += " (rolled back)"
		}
		result.Transactions = append(result.Transactions, name)
	}
	return nil
}

// loadElements builds a document from memdoc element mappings.
func loadElements(elements []yaml.Node) (*memdoc.Document, error) {
	data, err := yaml.Marshal(struct {
		Elements []yaml.Node `yaml:"elements"`
	}{elements})
	if err != nil {
		return nil, err
	}
	return memdoc.Load(bytes.NewReader(data))
}
