package progress

import "sync"

type update struct {
	current, maximum int64
}

// AsyncSink forwards updates to another sink on its own goroutine, so a
// slow consumer never blocks the engine. Updates for the same stage that
// arrive faster than they are delivered are coalesced: only the latest
// one is forwarded.
type AsyncSink struct {
	next Sink

	mu      sync.Mutex
	pending map[string]update
	order   []string
	closed  bool
	signal  chan struct{} // buffered, size 1; coalesces wakeups
	done    chan struct{}
}

// NewAsyncSink starts the delivery goroutine. Call Close to flush and stop it.
func NewAsyncSink(next Sink) *AsyncSink {
	s := &AsyncSink{
		next:    next,
		pending: make(map[string]update),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

// Report implements Sink. It never blocks on the consumer.
func (s *AsyncSink) Report(stage string, current, maximum int64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, ok := s.pending[stage]; !ok {
		s.order = append(s.order, stage)
	}
	s.pending[stage] = update{current: current, maximum: maximum}

	// Sent under mu so Close cannot close signal in between.
	select {
	case s.signal <- struct{}{}:
	default:
	}
	s.mu.Unlock()
}

func (s *AsyncSink) loop() {
	defer close(s.done)
	for range s.signal {
		s.flush()
	}
	s.flush()
}

func (s *AsyncSink) flush() {
	s.mu.Lock()
	pending, order := s.pending, s.order
	s.pending = make(map[string]update)
	s.order = nil
	s.mu.Unlock()

	for _, stage := range order {
		u := pending[stage]
		s.next.Report(stage, u.current, u.maximum)
	}
}

// Close delivers any pending updates and stops the goroutine.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.signal)
	s.mu.Unlock()
	<-s.done
}
