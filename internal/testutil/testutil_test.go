package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objsync/internal/transport/memory"
	"github.com/roach88/objsync/internal/transport/transporttest"
)

func TestStepClockAdvances(t *testing.T) {
	c := NewStepClock(time.Minute)
	assert.Equal(t, Epoch, c.Now())
	assert.Equal(t, Epoch.Add(time.Minute), c.Now())
	c.Reset()
	assert.Equal(t, Epoch, c.Now())
}

func TestSequenceIDs(t *testing.T) {
	g := NewSequenceIDs("")
	assert.Equal(t, "op-0001", g.Generate())
	assert.Equal(t, "op-0002", g.Generate())

	g = &SequenceIDs{prefix: "x", n: 9999}
	assert.Equal(t, "x-10000", g.Generate())
}

func TestRecordingSinkMonotonic(t *testing.T) {
	s := &RecordingSink{}
	s.Report("transfer", 1, 3)
	s.Report("transfer", 3, 3)
	s.Report("baking", 1, 1)
	require.NoError(t, s.CheckMonotonic())

	last, ok := s.Latest("transfer")
	require.True(t, ok)
	assert.Equal(t, ProgressCall{Stage: "transfer", Current: 3, Maximum: 3}, last)

	s.Report("transfer", 2, 3)
	assert.Error(t, s.CheckMonotonic())
}

func TestFlakyTransport(t *testing.T) {
	ctx := context.Background()
	items := transporttest.Objects(t, "flaky", 2)
	boom := errors.New("boom")

	f := NewFlakyTransport(memory.New(""))
	f.FailOn(items[0].ID, boom)
	var seen []int
	f.BeforeCall = func(n int) { seen = append(seen, n) }

	assert.ErrorIs(t, f.Put(ctx, items[0].ID, items[0].Data), boom)
	require.NoError(t, f.Put(ctx, items[1].ID, items[1].Data))
	ok, err := f.Has(ctx, items[1].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 3, f.Calls())
	assert.Equal(t, []int{1, 2, 3}, seen)
}
