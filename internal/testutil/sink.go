package testutil

import (
	"fmt"
	"sync"
)

// ProgressCall is one recorded progress update.
type ProgressCall struct {
	Stage   string
	Current int64
	Maximum int64
}

// RecordingSink is a progress sink that keeps every update.
type RecordingSink struct {
	mu    sync.Mutex
	calls []ProgressCall
}

// Report implements progress.Sink.
func (s *RecordingSink) Report(stage string, current, maximum int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ProgressCall{Stage: stage, Current: current, Maximum: maximum})
}

// Calls returns a copy of every update so far.
func (s *RecordingSink) Calls() []ProgressCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ProgressCall(nil), s.calls...)
}

// Latest returns the last update for stage.
func (s *RecordingSink) Latest(stage string) (ProgressCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].Stage == stage {
			return s.calls[i], true
		}
	}
	return ProgressCall{}, false
}

// CheckMonotonic returns an error if any stage's current value ever
// decreased.
func (s *RecordingSink) CheckMonotonic() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := make(map[string]int64)
	for i, c := range s.calls {
		if prev, ok := last[c.Stage]; ok && c.Current < prev {
			return fmt.Errorf("update %d: stage %s went from %d to %d", i, c.Stage, prev, c.Current)
		}
		last[c.Stage] = c.Current
	}
	return nil
}
