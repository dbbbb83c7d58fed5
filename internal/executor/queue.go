package executor

import "sync"

// queue is a FIFO of pending mutations with a coalescing wake-up signal.
//
// Enqueue never signals on its own: producers call raise after enqueuing
// a batch, and any number of raises before the loop wakes collapse into
// one drain.
type queue struct {
	mu     sync.Mutex
	items  []*job
	closed bool
	signal chan struct{} // buffered, size 1
}

func newQueue() *queue {
	return &queue{
		items:  make([]*job, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// enqueue appends j. Returns false if the queue is closed.
func (q *queue) enqueue(j *job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, j)
	return true
}

// raise wakes the loop. Non-blocking.
func (q *queue) raise() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// tryDequeue pops the front job without blocking.
func (q *queue) tryDequeue() (*job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	j := q.items[0]
	q.items[0] = nil // release for GC
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return j, true
}

// wait returns the wake-up channel. It is closed by close.
func (q *queue) wait() <-chan struct{} {
	return q.signal
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close rejects further jobs and wakes the loop for a final drain.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
