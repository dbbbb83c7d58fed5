// Package progress tracks per-stage progress of one sync operation.
//
// Each stage has a current count and a maximum. Counts never decrease
// within a Tracker: an Advance to a lower value is ignored. The combined
// percentage is the mean of the per-stage fractions, so every stage
// contributes equally regardless of its unit count.
package progress

import (
	"log/slog"
	"sync"
)

// Stage names used by the orchestrator.
const (
	StageConversion = "conversion"
	StageTransfer   = "transfer"
	StageBaking     = "baking"
)

// Sink receives progress updates. Implementations must not block.
type Sink interface {
	Report(stage string, current, maximum int64)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(stage string, current, maximum int64)

func (f SinkFunc) Report(stage string, current, maximum int64) { f(stage, current, maximum) }

// Discard drops every update.
var Discard Sink = SinkFunc(func(string, int64, int64) {})

// State is one stage's counters.
type State struct {
	Current int64 `json:"current"`
	Maximum int64 `json:"maximum"`
}

// Fraction returns Current/Maximum clamped to [0, 1].
func (s State) Fraction() float64 {
	if s.Maximum <= 0 {
		return 0
	}
	f := float64(s.Current) / float64(s.Maximum)
	if f > 1 {
		return 1
	}
	return f
}

// Tracker holds the monotonic counters of one operation.
// Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	order  []string
	stages map[string]*State
	sink   Sink
}

// NewTracker creates a tracker for the given stages. Updates to other
// stage names are accepted and appended in first-seen order.
func NewTracker(sink Sink, stages ...string) *Tracker {
	if sink == nil {
		sink = Discard
	}
	t := &Tracker{stages: make(map[string]*State), sink: sink}
	for _, s := range stages {
		t.stageLocked(s)
	}
	return t
}

func (t *Tracker) stageLocked(name string) *State {
	st, ok := t.stages[name]
	if !ok {
		st = &State{}
		t.stages[name] = st
		t.order = append(t.order, name)
	}
	return st
}

// SetMaximum sets a stage's unit count. The maximum never shrinks.
func (t *Tracker) SetMaximum(stage string, maximum int64) {
	t.mu.Lock()
	st := t.stageLocked(stage)
	if maximum > st.Maximum {
		st.Maximum = maximum
	}
	cur, max := st.Current, st.Maximum
	t.mu.Unlock()
	t.sink.Report(stage, cur, max)
}

// Advance moves a stage to current. Lower values are ignored.
func (t *Tracker) Advance(stage string, current int64) {
	t.mu.Lock()
	st := t.stageLocked(stage)
	if current <= st.Current {
		t.mu.Unlock()
		return
	}
	st.Current = current
	if st.Current > st.Maximum {
		st.Maximum = st.Current
	}
	cur, max := st.Current, st.Maximum
	t.mu.Unlock()
	t.sink.Report(stage, cur, max)
}

// Increment adds delta (>0) to a stage.
func (t *Tracker) Increment(stage string, delta int64) {
	if delta <= 0 {
		return
	}
	t.mu.Lock()
	st := t.stageLocked(stage)
	st.Current += delta
	if st.Current > st.Maximum {
		st.Maximum = st.Current
	}
	cur, max := st.Current, st.Maximum
	t.mu.Unlock()
	t.sink.Report(stage, cur, max)
}

// Complete marks a stage as finished. A stage with no units is treated as
// one unit, done.
func (t *Tracker) Complete(stage string) {
	t.mu.Lock()
	st := t.stageLocked(stage)
	if st.Maximum == 0 {
		st.Maximum = 1
	}
	if st.Current >= st.Maximum {
		t.mu.Unlock()
		return
	}
	st.Current = st.Maximum
	cur, max := st.Current, st.Maximum
	t.mu.Unlock()
	t.sink.Report(stage, cur, max)
}

// Get returns one stage's counters.
func (t *Tracker) Get(stage string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.stages[stage]; ok {
		return *st
	}
	return State{}
}

// Stages returns the stage names in order.
func (t *Tracker) Stages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Percent returns the combined progress in [0, 100].
func (t *Tracker) Percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.order) == 0 {
		return 0
	}
	var sum float64
	for _, name := range t.order {
		sum += t.stages[name].Fraction()
	}
	return 100 * sum / float64(len(t.order))
}

// LogSink reports progress through slog at debug level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Report(stage string, current, maximum int64) {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Debug("progress", "stage", stage, "current", current, "maximum", maximum)
}

// Multi fans an update out to several sinks.
type Multi []Sink

func (m Multi) Report(stage string, current, maximum int64) {
	for _, s := range m {
		s.Report(stage, current, maximum)
	}
}
