package overlay

import (
	"sync"
	"sync/atomic"

	"straf/log"
)

const asyncQueue = 64

// Async makes a slow sink safe to call from the scheduler. Calls are
// queued and replayed in order on one goroutine; when the queue is full
// the call is dropped and counted.
type Async struct {
	inner Overlay

	mu      sync.Mutex
	ops     chan func()
	done    chan struct{}
	closed  bool
	dropped atomic.Int64
}

func NewAsync(inner Overlay) *Async {
	return &Async{inner: inner}
}

func (a *Async) Init() error {
	if err := a.inner.Init(); err != nil {
		return err
	}
	a.mu.Lock()
	a.ops = make(chan func(), asyncQueue)
	a.done = make(chan struct{})
	a.closed = false
	ops, done := a.ops, a.done
	a.mu.Unlock()

	go func() {
		defer close(done)
		for op := range ops {
			op()
		}
	}()
	return nil
}

func (a *Async) enqueue(op func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ops == nil || a.closed {
		return
	}
	select {
	case a.ops <- op:
	default:
		if n := a.dropped.Add(1); n == 1 || n%100 == 0 {
			log.Warnf("overlay: sink is slow, %d updates dropped", n)
		}
	}
}

// Dropped returns how many calls were discarded because the queue was full.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

func (a *Async) ShowPenalty(label string) {
	a.enqueue(func() { a.inner.ShowPenalty(label) })
}

func (a *Async) UpdateStatus(severity int, label string) {
	a.enqueue(func() { a.inner.UpdateStatus(severity, label) })
}

func (a *Async) Hide() {
	a.enqueue(a.inner.Hide)
}

// Close drains the queued calls, then closes the inner sink.
func (a *Async) Close() {
	a.mu.Lock()
	if a.ops == nil || a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.ops)
	done := a.done
	a.mu.Unlock()

	<-done
	a.inner.Close()
}
