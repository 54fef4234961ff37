// Package scheduler runs tasks one at a time on a single goroutine.
//
// A page session's document, annotator and cache are owned by one Scheduler.
// Code running on the scheduler goroutine defers follow-up work with
// [Scheduler.Defer]; other goroutines hand work over with [Scheduler.Do] and
// wait for it. There is no preemption: a task runs until it returns.
package scheduler

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Do once the scheduler has stopped.
var ErrStopped = errors.New("scheduler stopped")

// Task is a unit of work. The context is the one passed to Run or
// RunPending.
type Task func(ctx context.Context)

// Scheduler is a FIFO task queue drained by one goroutine.
type Scheduler struct {
	mu         sync.Mutex
	queue      []Task
	checkpoint Task
	wake       chan struct{}
	stopped    bool
	done       chan struct{}
}

// New creates an idle Scheduler.
func New() *Scheduler {
	return &Scheduler{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Defer queues t to run on a later turn. It never blocks and is safe to call
// from any goroutine, including from inside a task.
func (s *Scheduler) Defer(t Task) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, t)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SetCheckpoint registers fn to run after every task, before the next one
// starts. Page sessions use it to deliver DOM mutation records.
func (s *Scheduler) SetCheckpoint(fn Task) {
	s.mu.Lock()
	s.checkpoint = fn
	s.mu.Unlock()
}

// Len reports the number of queued tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) pop() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	t := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return t, true
}

// RunPending runs queued tasks on the calling goroutine until the queue is
// empty, including tasks queued while it runs. It returns how many ran. Use
// it when nothing else is running the scheduler.
func (s *Scheduler) RunPending(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		t, ok := s.pop()
		if !ok {
			break
		}
		t(ctx)
		n++

		s.mu.Lock()
		cp := s.checkpoint
		s.mu.Unlock()
		if cp != nil {
			cp(ctx)
		}
	}
	return n
}

// Run drains tasks until ctx is canceled, then stops the scheduler. Queued
// tasks that have not started are dropped.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.stop()
	for {
		s.RunPending(ctx)
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}
	}
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	s.stopped = true
	s.queue = nil
	s.mu.Unlock()
	close(s.done)
}

// Done is closed when Run returns.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Do queues fn and waits for it to finish on the scheduler goroutine. It
// must not be called from inside a task; use Defer there.
func (s *Scheduler) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	s.Defer(func(ctx context.Context) { result <- fn(ctx) })

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}
