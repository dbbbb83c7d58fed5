// Package executor runs host-document mutations one at a time on a
// single dedicated goroutine.
//
// Producers Submit (or Enqueue then Raise) mutation closures from any
// goroutine; they never touch the document themselves. The Run loop drains
// the queue in FIFO order. A transactional mutation runs inside its own
// host transaction, so a failure rolls back that mutation only; the error
// is recorded on its Ticket and draining continues with the next one.
//
// State machine: Idle -> Draining (on raise, while the queue is non-empty)
// -> Idle.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/objsync/internal/host"
	"github.com/roach88/objsync/internal/metrics"
)

// ErrClosed is returned when submitting to a closed executor.
var ErrClosed = errors.New("executor closed")

// State is the executor's drain state.
type State int

const (
	Idle State = iota
	Draining
)

func (s State) String() string {
	if s == Draining {
		return "draining"
	}
	return "idle"
}

// Mutation is one unit of host work.
type Mutation struct {
	// Name labels the mutation and, when Transactional, its transaction.
	Name string

	// Fn performs the work. It runs on the executor goroutine only.
	Fn func() error

	// Transactional wraps Fn in Document.RunTransaction.
	Transactional bool
}

// Ticket tracks one submitted mutation.
type Ticket struct {
	name string
	done chan struct{}
	err  error
}

// Name returns the mutation name.
func (t *Ticket) Name() string { return t.name }

// Done is closed when the mutation has run.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Err returns the mutation's error. Only valid after Done is closed.
func (t *Ticket) Err() error { return t.err }

// Wait blocks until the mutation has run or ctx is done.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type job struct {
	m      Mutation
	ticket *Ticket
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger for failed mutations.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithErrorHandler registers a callback for every failed mutation. It
// runs on the executor goroutine.
func WithErrorHandler(fn func(name string, err error)) Option {
	return func(e *Executor) {
		e.onError = fn
	}
}

// Executor is the serialized mutation loop for one host document.
//
// Thread-safety model:
//   - Submit, Enqueue, Raise, Do, WaitIdle, State: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Executor struct {
	doc     host.Document
	queue   *queue
	logger  *slog.Logger
	onError func(name string, err error)

	mu    sync.Mutex
	state State
	idle  chan struct{} // closed while idle with an empty queue
}

// New creates an executor for doc.
func New(doc host.Document, opts ...Option) *Executor {
	idle := make(chan struct{})
	close(idle)
	e := &Executor{
		doc:    doc,
		queue:  newQueue(),
		logger: slog.Default(),
		idle:   idle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue adds m without waking the loop. Call Raise after a batch.
func (e *Executor) Enqueue(m Mutation) (*Ticket, error) {
	t := &Ticket{name: m.Name, done: make(chan struct{})}

	e.mu.Lock()
	if !e.queue.enqueue(&job{m: m, ticket: t}) {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	e.markBusyLocked()
	e.mu.Unlock()
	return t, nil
}

// Raise wakes the loop to drain everything enqueued so far. Multiple
// raises before the loop wakes coalesce into one drain.
func (e *Executor) Raise() {
	e.queue.raise()
}

// Submit enqueues m and raises.
func (e *Executor) Submit(m Mutation) (*Ticket, error) {
	t, err := e.Enqueue(m)
	if err != nil {
		return nil, err
	}
	e.Raise()
	return t, nil
}

// Do submits a non-transactional closure and waits for it. Use it to read
// the document from its mutation context.
func (e *Executor) Do(ctx context.Context, name string, fn func() error) error {
	t, err := e.Submit(Mutation{Name: name, Fn: fn})
	if err != nil {
		return err
	}
	return t.Wait(ctx)
}

// State returns the current drain state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Pending returns the number of queued mutations.
func (e *Executor) Pending() int {
	return e.queue.len()
}

// WaitIdle blocks until the queue is empty and no mutation is running.
// Mutations enqueued but never raised keep it waiting.
func (e *Executor) WaitIdle(ctx context.Context) error {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) markBusyLocked() {
	select {
	case <-e.idle:
		e.idle = make(chan struct{})
	default:
	}
}

func (e *Executor) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
	if s == Idle && e.queue.len() == 0 {
		select {
		case <-e.idle:
		default:
			close(e.idle)
		}
	}
}

// Close stops accepting mutations. Run drains what is already queued and
// returns.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue.close()
}

// Run is the mutation loop. It returns nil after Close, or ctx.Err() when
// ctx is done; in both cases mutations already queued are drained first so
// the document is never left with half a batch applied.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Debug("executor starting")
	for {
		select {
		case <-ctx.Done():
			e.drain()
			e.logger.Debug("executor stopped", "reason", ctx.Err())
			return ctx.Err()
		case _, ok := <-e.queue.wait():
			e.drain()
			if !ok {
				e.logger.Debug("executor closed")
				return nil
			}
		}
	}
}

func (e *Executor) drain() {
	e.setState(Draining)
	for {
		j, ok := e.queue.tryDequeue()
		if !ok {
			break
		}
		e.exec(j)
	}
	e.setState(Idle)
}

func (e *Executor) exec(j *job) {
	err := e.invoke(j.m)
	j.ticket.err = err
	close(j.ticket.done)

	if err != nil {
		metrics.MutationsExecuted.WithLabelValues("failed").Inc()
		e.logger.Error("mutation failed", "mutation", j.m.Name, "error", err)
		if e.onError != nil {
			e.onError(j.m.Name, err)
		}
		return
	}
	metrics.MutationsExecuted.WithLabelValues("ok").Inc()
}

// invoke runs m, converting a panic into an error. A transactional
// mutation that panics is rolled back by the document before the panic
// reaches here.
func (e *Executor) invoke(m Mutation) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("mutation %q panicked: %v", m.Name, p)
		}
	}()
	if m.Fn == nil {
		return fmt.Errorf("mutation %q has no function", m.Name)
	}
	if m.Transactional {
		if e.doc == nil {
			return fmt.Errorf("mutation %q: no document for transaction", m.Name)
		}
		return e.doc.RunTransaction(m.Name, m.Fn)
	}
	return m.Fn()
}
