package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/objsync/internal/convert"
	"github.com/roach88/objsync/internal/executor"
	"github.com/roach88/objsync/internal/host"
	"github.com/roach88/objsync/internal/ir"
	"github.com/roach88/objsync/internal/metrics"
	"github.com/roach88/objsync/internal/progress"
	"github.com/roach88/objsync/internal/report"
	"github.com/roach88/objsync/internal/store"
	"github.com/roach88/objsync/internal/transfer"
	"github.com/roach88/objsync/internal/transport"
)

// DefaultStream is used when a request names no stream.
const DefaultStream = "main"

// Engine runs send and receive operations against one host document.
// Operations may run concurrently; their document work is serialized by
// the executor.
type Engine struct {
	doc   host.Document
	reg   *convert.Registry
	exec  *executor.Executor
	store *store.Store
	clock *Clock
	ids   IDGenerator
	now   func() time.Time

	logger          *slog.Logger
	sink            progress.Sink
	chunkSize       int
	continueOnError bool
	cache           transport.Transport
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithProgress sets the sink that receives stage progress. Reports are
// delivered asynchronously and never block an operation.
func WithProgress(s progress.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithChunkSize sets the number of objects per transport round trip.
func WithChunkSize(n int) Option {
	return func(e *Engine) { e.chunkSize = n }
}

// WithContinueOnError makes transfer errors non-fatal: the failed object
// is reported and the operation continues without it.
func WithContinueOnError(v bool) Option {
	return func(e *Engine) { e.continueOnError = v }
}

// WithCache sets a local transport that receive reads before the source
// and fills with what it fetches.
func WithCache(t transport.Transport) Option {
	return func(e *Engine) { e.cache = t }
}

// WithIDGenerator sets the operation id generator. Default: UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithNow sets the wall clock used for operation durations.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. The logical clock resumes after the last
// operation recorded in st.
func New(ctx context.Context, doc host.Document, reg *convert.Registry, exec *executor.Executor, st *store.Store, opts ...Option) (*Engine, error) {
	if doc == nil || reg == nil || exec == nil || st == nil {
		return nil, errors.New("engine: document, registry, executor and store are required")
	}
	last, err := st.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e := &Engine{
		doc:    doc,
		reg:    reg,
		exec:   exec,
		store:  st,
		clock:  NewClockAt(last),
		ids:    UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// onExecutor runs a read-only closure on the mutation goroutine and waits
// for it. The closure must watch its own cancellation.
func (e *Engine) onExecutor(name string, fn func() error) error {
	t, err := e.exec.Submit(executor.Mutation{Name: name, Fn: fn})
	if err != nil {
		return err
	}
	return t.Wait(context.Background())
}

// operation is the bookkeeping of one running send or receive.
type operation struct {
	e       *Engine
	res     *Result
	rep     *report.Report
	tracker *progress.Tracker
	async   *progress.AsyncSink
	log     *slog.Logger
	start   time.Time
}

func (e *Engine) begin(kind, stream string, stages ...string) *operation {
	if stream == "" {
		stream = DefaultStream
	}
	op := &operation{
		e:     e,
		res:   &Result{OperationID: e.ids.Generate(), Kind: kind, Stream: stream},
		rep:   report.New(),
		start: e.now(),
	}
	op.log = e.logger.With("operation", op.res.OperationID, "kind", kind, "stream", stream)

	sink := progress.Discard
	if e.sink != nil {
		op.async = progress.NewAsyncSink(e.sink)
		sink = op.async
	}
	op.tracker = progress.NewTracker(sink, stages...)
	return op
}

func (op *operation) enter(s State) {
	op.res.State = s
	op.res.Trace = append(op.res.Trace, s)
	op.log.Debug("state", "state", s)
}

func (op *operation) transferOptions(cache transport.Transport) transfer.Options {
	e := op.e
	return transfer.Options{
		ChunkSize: e.chunkSize,
		OnTotalKnown: func(total int64) {
			op.tracker.SetMaximum(progress.StageTransfer, total)
		},
		OnProgress: func(current, _ int64) {
			op.tracker.Advance(progress.StageTransfer, current)
			op.res.Transferred = current
		},
		OnError: func(subject string, err error) bool {
			if !e.continueOnError {
				return false
			}
			op.rep.Add(report.TransferFailed(subject, err, false))
			return true
		},
		Cache:  cache,
		Logger: op.log,
	}
}

// outcome is the terminal state of an operation that ran to completion.
func (op *operation) outcome() State {
	if op.rep.HasFatal() {
		return StateFailed
	}
	if len(op.rep.Failures()) > 0 && op.res.Converted == 0 {
		return StateFailed
	}
	return StateDone
}

// commit records the operation in the store. Placeholders are replaced
// only when replace is set.
func (op *operation) commit(ctx context.Context, placeholders []ir.Placeholder, replace bool) error {
	st := op.e.store
	seq := op.e.clock.Next()
	if replace {
		if err := st.ReplacePlaceholders(ctx, op.res.Stream, placeholders); err != nil {
			return err
		}
	}
	if err := st.SetStreamObject(ctx, op.res.Stream, op.res.RootID, seq); err != nil {
		return err
	}
	return st.WriteOperation(ctx, ir.OperationRecord{
		ID:        op.res.OperationID,
		StreamID:  op.res.Stream,
		Kind:      op.res.Kind,
		State:     string(op.outcome()),
		RootID:    op.res.RootID,
		Converted: int64(op.res.Converted),
		Skipped:   int64(op.res.Skipped),
		Errors:    int64(len(op.rep.Failures())),
		Seq:       seq,
	})
}

// fail ends the operation before any side effect.
func (op *operation) fail(err *report.Error) *Result {
	op.rep.Add(err)
	return op.finish(StateFailed)
}

// abort ends the operation on err: Cancelled for context errors, Failed
// otherwise.
func (op *operation) abort(err error) *Result {
	if transfer.IsCancelled(err) {
		op.rep.Logf("operation cancelled in %s", op.res.State)
		return op.finish(StateCancelled)
	}
	var re *report.Error
	if !errors.As(err, &re) {
		re = &report.Error{Code: report.CodeFatalSetup, Subject: string(op.res.State), Message: err.Error(), Fatal: true, Err: err}
	}
	op.rep.Add(re)
	return op.finish(StateFailed)
}

func (op *operation) done() *Result {
	state := op.outcome()
	if state == StateDone {
		for _, stage := range op.tracker.Stages() {
			op.tracker.Complete(stage)
		}
	}
	return op.finish(state)
}

func (op *operation) finish(state State) *Result {
	op.enter(state)
	if op.async != nil {
		op.async.Close()
	}

	res := op.res
	res.Errors = op.rep.Errors()
	res.Logs = op.rep.Logs()
	res.Percent = op.tracker.Percent()
	res.Duration = op.e.now().Sub(op.start)

	metrics.Operations.WithLabelValues(res.Kind, string(state)).Inc()
	metrics.OperationDuration.WithLabelValues(res.Kind).Observe(res.Duration.Seconds())
	for _, e := range res.Errors {
		metrics.ReportedErrors.WithLabelValues(string(e.Code)).Inc()
	}

	level := slog.LevelInfo
	if state == StateFailed {
		level = slog.LevelWarn
	}
	op.log.Log(context.Background(), level, "operation finished",
		"state", state,
		"root", res.RootID,
		"converted", res.Converted,
		"skipped", res.Skipped,
		"errors", len(res.Failures()),
	)
	return res
}
