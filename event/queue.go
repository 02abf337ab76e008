// Package event is a single-threaded event queue. Any goroutine may queue
// events; they run only on the goroutine that calls DoOneEvent or Run.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is a unit of work run by the queue owner.
type Event interface {
	Process() error
}

// Func adapts a function to Event.
type Func func() error

func (f Func) Process() error { return f() }

// Position selects where QueueEvent inserts.
type Position int

const (
	Tail Position = iota
	Head
)

// ErrorHandler receives errors returned by events.
type ErrorHandler func(error)

// Queue holds pending events.
type Queue struct {
	mu      sync.Mutex
	events  []Event
	wake    chan struct{}
	onError ErrorHandler
	timers  map[*Timer]struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithErrorHandler sets where event errors go. The default logs them.
func WithErrorHandler(h ErrorHandler) Option {
	return func(q *Queue) { q.onError = h }
}

func New(opts ...Option) *Queue {
	q := &Queue{
		wake:   make(chan struct{}, 1),
		timers: make(map[*Timer]struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.onError == nil {
		q.onError = func(err error) {
			Logger().Error("background error", zap.Error(err))
		}
	}
	return q
}

// QueueEvent adds ev at the tail or the head. Safe from any goroutine.
func (q *Queue) QueueEvent(ev Event, pos Position) {
	q.mu.Lock()
	if pos == Head {
		q.events = append([]Event{ev}, q.events...)
	} else {
		q.events = append(q.events, ev)
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Post queues fn at the tail.
func (q *Queue) Post(fn func()) {
	q.QueueEvent(Func(func() error {
		fn()
		return nil
	}), Tail)
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// BackgroundError reports err through the queue's error handler.
func (q *Queue) BackgroundError(err error) {
	if err != nil {
		q.onError(err)
	}
}

func (q *Queue) pop() Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	ev := q.events[0]
	q.events[0] = nil
	q.events = q.events[1:]
	return ev
}

// DoOneEvent runs the next event. When the queue is empty it waits for one
// if wait is set, otherwise it returns false at once. It returns false when
// ctx ends while waiting.
func (q *Queue) DoOneEvent(ctx context.Context, wait bool) bool {
	for {
		if ev := q.pop(); ev != nil {
			q.BackgroundError(ev.Process())
			return true
		}
		if !wait {
			return false
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return false
		}
	}
}

// Run processes events until ctx ends.
func (q *Queue) Run(ctx context.Context) error {
	for q.DoOneEvent(ctx, true) {
	}
	return ctx.Err()
}

// Drain runs events until the queue is empty.
func (q *Queue) Drain() int {
	n := 0
	for q.DoOneEvent(context.Background(), false) {
		n++
	}
	return n
}

// Timer queues an event when it fires.
type Timer struct {
	q     *Queue
	t     *time.Timer
	mu    sync.Mutex
	fired bool
	done  bool
}

// After queues ev once d has passed. A cancelled timer never runs ev, even
// if it already fired and the event is still pending.
func (q *Queue) After(d time.Duration, ev Event) *Timer {
	tm := &Timer{q: q}
	q.mu.Lock()
	q.timers[tm] = struct{}{}
	q.mu.Unlock()

	tm.t = time.AfterFunc(d, func() {
		tm.mu.Lock()
		if tm.done {
			tm.mu.Unlock()
			return
		}
		tm.fired = true
		tm.mu.Unlock()

		q.QueueEvent(Func(func() error {
			tm.mu.Lock()
			cancelled := tm.done
			tm.done = true
			tm.mu.Unlock()
			q.forget(tm)
			if cancelled {
				return nil
			}
			return ev.Process()
		}), Tail)
	})
	return tm
}

// Cancel stops the timer. It reports whether the event was prevented.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.t.Stop()
	t.q.forget(t)
	return true
}

// Fired reports whether the timer went off.
func (t *Timer) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

func (q *Queue) forget(t *Timer) {
	q.mu.Lock()
	delete(q.timers, t)
	q.mu.Unlock()
}

// Close cancels pending timers and drops queued events.
func (q *Queue) Close() {
	q.mu.Lock()
	timers := make([]*Timer, 0, len(q.timers))
	for t := range q.timers {
		timers = append(timers, t)
	}
	q.events = nil
	q.mu.Unlock()

	for _, t := range timers {
		t.Cancel()
	}
}
