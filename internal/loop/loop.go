// Package loop provides the single-threaded execution model the runtime is
// built on. All component state is touched only from callbacks posted to a
// Loop; blocking work (network calls, feed fetches) runs through an Executor
// and posts its result back.
package loop

import (
	"context"
	"sync"
)

// Loop schedules callbacks on the UI goroutine. Post must be safe to call
// from any goroutine, including the loop goroutine itself, and must not block.
type Loop interface {
	Post(fn func())
}

// Executor runs blocking work off the loop.
type Executor interface {
	Go(fn func())
}

// Async runs work on exec and posts the returned apply func (when non-nil)
// to lp. It is the "fire and check relevance on completion" pattern: apply
// closures are expected to verify they are still current before mutating.
func Async(exec Executor, lp Loop, work func() func()) {
	exec.Go(func() {
		if apply := work(); apply != nil {
			lp.Post(apply)
		}
	})
}

// Queue is a manually drained Loop. Hosts that own their own event loop
// (the bubbletea program) drain it from inside their update step; tests
// drain it explicitly.
type Queue struct {
	mu      sync.Mutex
	pending []func()
}

// Post appends fn to the queue.
func (q *Queue) Post(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Len returns the number of queued callbacks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain runs queued callbacks in order until the queue is empty, including
// callbacks posted while draining. It returns how many ran.
func (q *Queue) Drain() int {
	n := 0
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return n
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		fn()
		n++
	}
}

// Serial is a Loop backed by its own goroutine (see Run).
type Serial struct {
	q    Queue
	wake chan struct{}
}

// NewSerial creates a Serial loop. Call Run to start processing.
func NewSerial() *Serial {
	return &Serial{wake: make(chan struct{}, 1)}
}

// Post queues fn and wakes the loop goroutine.
func (s *Serial) Post(fn func()) {
	s.q.Post(fn)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run processes callbacks until ctx is done.
func (s *Serial) Run(ctx context.Context) error {
	for {
		s.q.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
	}
}

// Goroutines is an Executor that starts one goroutine per call.
type Goroutines struct {
	wg sync.WaitGroup
}

// Go runs fn on a new goroutine.
func (g *Goroutines) Go(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// Wait blocks until all started work has returned.
func (g *Goroutines) Wait() {
	g.wg.Wait()
}

// Inline is an Executor that runs work synchronously on the caller.
type Inline struct{}

// Go runs fn immediately.
func (Inline) Go(fn func()) { fn() }

// Deferred is an Executor that holds work until released, letting tests
// choose the order in which asynchronous operations complete.
type Deferred struct {
	mu    sync.Mutex
	tasks []func()
}

// Go queues fn.
func (d *Deferred) Go(fn func()) {
	d.mu.Lock()
	d.tasks = append(d.tasks, fn)
	d.mu.Unlock()
}

// Pending returns the number of held tasks.
func (d *Deferred) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

// Run releases the i-th held task (in submission order) and reports whether
// it existed.
func (d *Deferred) Run(i int) bool {
	d.mu.Lock()
	if i < 0 || i >= len(d.tasks) {
		d.mu.Unlock()
		return false
	}
	fn := d.tasks[i]
	d.tasks = append(d.tasks[:i], d.tasks[i+1:]...)
	d.mu.Unlock()
	fn()
	return true
}

// RunAll releases held tasks in submission order, including tasks queued
// while running.
func (d *Deferred) RunAll() {
	for d.Run(0) {
	}
}
