package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objsync/internal/host/memdoc"
)

func startExecutor(t *testing.T, e *Executor) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	t.Cleanup(func() {
		e.Close()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("executor did not stop")
		}
	})
}

func TestRunsInSubmissionOrder(t *testing.T) {
	e := New(nil)
	startExecutor(t, e)

	var mu sync.Mutex
	var order []int
	var tickets []*Ticket
	for i := 0; i < 10; i++ {
		tk, err := e.Enqueue(Mutation{Name: "step", Fn: func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}})
		require.NoError(t, err)
		tickets = append(tickets, tk)
	}
	e.Raise()

	for _, tk := range tickets {
		require.NoError(t, tk.Wait(context.Background()))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestOneMutationAtATime(t *testing.T) {
	e := New(nil)
	startExecutor(t, e)

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Do(context.Background(), "concurrent", func() error {
				n := running.Add(1)
				for {
					m := maxRunning.Load()
					if n <= m || maxRunning.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestFailedMutationDoesNotStopBatch(t *testing.T) {
	var handled []string
	e := New(nil, WithErrorHandler(func(name string, err error) {
		handled = append(handled, name+": "+err.Error())
	}))
	startExecutor(t, e)

	boom, err := e.Enqueue(Mutation{Name: "boom", Fn: func() error { return errors.New("bad") }})
	require.NoError(t, err)
	panics, err := e.Enqueue(Mutation{Name: "panics", Fn: func() error { panic("oops") }})
	require.NoError(t, err)
	var ran bool
	ok, err := e.Enqueue(Mutation{Name: "ok", Fn: func() error { ran = true; return nil }})
	require.NoError(t, err)
	e.Raise()

	ctx := context.Background()
	assert.EqualError(t, boom.Wait(ctx), "bad")
	assert.ErrorContains(t, panics.Wait(ctx), `mutation "panics" panicked: oops`)
	assert.NoError(t, ok.Wait(ctx))
	assert.True(t, ran)
	require.NoError(t, e.WaitIdle(ctx))
	assert.Equal(t, []string{"boom: bad", `panics: mutation "panics" panicked: oops`}, handled)
}

func TestTransactionalMutationRollsBackAlone(t *testing.T) {
	doc := memdoc.New()
	e := New(doc)
	startExecutor(t, e)
	ctx := context.Background()

	first, err := e.Enqueue(Mutation{Name: "adds then fails", Transactional: true, Fn: func() error {
		if _, err := doc.Add(&memdoc.Level{Name: "discarded"}); err != nil {
			return err
		}
		return errors.New("late failure")
	}})
	require.NoError(t, err)
	second, err := e.Enqueue(Mutation{Name: "adds", Transactional: true, Fn: func() error {
		_, err := doc.Add(&memdoc.Level{Name: "kept"})
		return err
	}})
	require.NoError(t, err)
	e.Raise()

	assert.Error(t, first.Wait(ctx))
	require.NoError(t, second.Wait(ctx))
	require.Equal(t, 1, doc.Len())
	assert.Equal(t, "kept", doc.Elements()[0].(*memdoc.Level).Name)
	assert.Equal(t, []memdoc.TxRecord{
		{Name: "adds then fails", Committed: false},
		{Name: "adds", Committed: true},
	}, doc.Transactions())
}

func TestEnqueueWithoutRaiseWaits(t *testing.T) {
	e := New(nil)
	startExecutor(t, e)

	tk, err := e.Enqueue(Mutation{Name: "parked", Fn: func() error { return nil }})
	require.NoError(t, err)

	select {
	case <-tk.Done():
		t.Fatal("mutation ran before Raise")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 1, e.Pending())

	e.Raise()
	require.NoError(t, tk.Wait(context.Background()))
}

func TestWaitIdle(t *testing.T) {
	e := New(nil)
	ctx := context.Background()
	require.NoError(t, e.WaitIdle(ctx), "a fresh executor is idle")

	release := make(chan struct{})
	_, err := e.Submit(Mutation{Name: "slow", Fn: func() error { <-release; return nil }})
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.WaitIdle(short), context.DeadlineExceeded, "not idle before the loop runs")

	startExecutor(t, e)
	require.Eventually(t, func() bool { return e.State() == Draining }, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, e.WaitIdle(ctx))
	assert.Equal(t, Idle, e.State())
}

func TestCloseDrainsQueuedAndRejectsNew(t *testing.T) {
	e := New(nil)
	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		_, err := e.Enqueue(Mutation{Name: "queued", Fn: func() error { ran.Add(1); return nil }})
		require.NoError(t, err)
	}
	e.Close()

	_, err := e.Submit(Mutation{Name: "late", Fn: func() error { return nil }})
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, int32(3), ran.Load())
}

func TestRunCancelledDrainsFirst(t *testing.T) {
	e := New(nil)
	var ran atomic.Int32
	_, err := e.Enqueue(Mutation{Name: "queued", Fn: func() error { ran.Add(1); return nil }})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Run(ctx), context.Canceled)
	assert.Equal(t, int32(1), ran.Load())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "draining", Draining.String())
}
