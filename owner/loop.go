// Package owner implements the owner-context bridge: a single-consumer work
// queue drained by the goroutine that owns the host's live object graph.
//
// Any goroutine may Post work. The owner goroutine runs Loop.Run and executes
// posted work one item at a time in submission order, so nothing posted to the
// loop ever runs concurrently with anything else posted to it.
package owner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("owner loop already running")

// Loop is a FIFO of work executed on one goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	started chan struct{}
	quit    chan struct{}
	done    chan struct{}

	running   atomic.Bool
	startOnce sync.Once
	quitOnce  sync.Once
}

// New creates a loop that is not yet running.
func New() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		started: make(chan struct{}),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Post schedules work to run once on the owner goroutine. It never blocks.
// Post returns false if the loop has been torn down; the work is dropped.
func (l *Loop) Post(work func()) bool {
	if work == nil {
		return false
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, work)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes posted work on the calling goroutine until Quit is called or
// ctx is cancelled. Work still queued at that point is discarded.
func (l *Loop) Run(ctx context.Context) error {
	first := false
	l.startOnce.Do(func() { first = true })
	if !first {
		return ErrAlreadyRunning
	}

	l.running.Store(true)
	close(l.started)
	defer l.teardown()

	for {
		for !l.quitting() {
			work, ok := l.next()
			if !ok {
				break
			}
			work()
		}
		if l.quitting() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return nil
		case <-l.wake:
		}
	}
}

// Quit asks the loop to stop after the work item currently executing.
// It is safe to call from any goroutine, including from posted work.
func (l *Loop) Quit() {
	l.quitOnce.Do(func() { close(l.quit) })
}

// Running reports whether Run has started and not yet returned.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Alive reports whether the loop can still accept work.
func (l *Loop) Alive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

// Started is closed once Run begins.
func (l *Loop) Started() <-chan struct{} {
	return l.started
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Pending returns the number of queued work items.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	work := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return work, true
}

func (l *Loop) quitting() bool {
	select {
	case <-l.quit:
		return true
	default:
		return false
	}
}

func (l *Loop) teardown() {
	l.mu.Lock()
	l.closed = true
	l.queue = nil
	l.mu.Unlock()
	l.running.Store(false)
	close(l.done)
}
