// Package loop implements the single-goroutine scheduler that owns all
// interactive state. Other goroutines hand work to it instead of locking.
package loop

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrClosed is returned when work is handed to a closed loop.
	ErrClosed = errors.New("loop: closed")
	// ErrPending is returned by Do when fn was accepted but had not finished
	// before ctx ended. fn still runs.
	ErrPending = errors.New("loop: task accepted but not finished")
)

// Loop runs tasks one at a time. The task channel is unbuffered, so a
// successful handoff means the scheduler has taken the task.
type Loop struct {
	tasks     chan func()
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates an idle loop. Drain it with Run or by reading Tasks.
func New() *Loop {
	return &Loop{
		tasks:  make(chan func()),
		closed: make(chan struct{}),
	}
}

// Tasks exposes the task channel for schedulers embedded in another event
// loop. Whoever receives from it must run the task on its own goroutine.
func (l *Loop) Tasks() <-chan func() {
	return l.tasks
}

// Run executes tasks until ctx is done or the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closed:
			return ErrClosed
		}
	}
}

// Post hands fn to the scheduler and returns once it has been accepted,
// without waiting for it to run.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	select {
	case l.tasks <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closed:
		return ErrClosed
	}
}

// Do hands fn to the scheduler and blocks until it has run. If ctx ends
// before the scheduler accepts fn, fn is discarded and ctx.Err() is
// returned. Do must not be called from the scheduler goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	if err := l.Post(ctx, task); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ErrPending
	case <-l.closed:
		return ErrClosed
	}
}

// Close stops Run and rejects further work. It is safe to call more than once.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.closed) })
}

// Done is closed once Close has been called.
func (l *Loop) Done() <-chan struct{} {
	return l.closed
}
