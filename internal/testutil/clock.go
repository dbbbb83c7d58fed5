package testutil

import (
	"fmt"
	"sync"
	"time"
)

// Epoch is the first instant returned by a new StepClock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a wall clock for tests: every call to Now advances it by a
// fixed step, so durations and timestamps in recorded output are
// reproducible.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepClock starts at Epoch. A zero step defaults to one second.
func NewStepClock(step time.Duration) *StepClock {
	if step == 0 {
		step = time.Second
	}
	return &StepClock{now: Epoch, step: step}
}

// Now returns the current instant and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Reset rewinds the clock to Epoch.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = Epoch
}

// SequenceIDs generates "<prefix>-0001", "<prefix>-0002", ...
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix defaults to "op".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "op"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
