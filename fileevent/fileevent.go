// Package fileevent runs callbacks when channels become readable or writable.
//
// Each registration is a task on an event queue. The task checks the
// channel; when it is not ready, it kicks a background refill (for the
// readable side) and checks again after Delay. When it is ready, it runs
// the callback and requeues itself. A callback error is reported as a
// background error and removes the registration.
package fileevent

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/chanio/channel"
	"github.com/wippyai/chanio/event"
)

// DefaultDelay is the re-check interval for channels that are not ready.
const DefaultDelay = 30 * time.Millisecond

// Callback runs on the queue goroutine when the channel is ready.
type Callback func() error

type key struct {
	ch  *channel.Channel
	dir channel.Direction
}

// Registry holds the readiness callbacks of one owner.
type Registry struct {
	q     *event.Queue
	delay time.Duration

	mu      sync.Mutex
	entries map[key]*registration
	closed  bool
}

type registration struct {
	r     *Registry
	key   key
	cb    Callback
	timer *event.Timer

	// cancelled is only read and written with r.mu held
	cancelled bool
}

// New returns a registry posting its checks to q. A non-positive delay
// uses DefaultDelay.
func New(q *event.Queue, delay time.Duration) *Registry {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Registry{q: q, delay: delay, entries: make(map[key]*registration)}
}

// Register installs cb for ch and dir, replacing any previous callback,
// and queues the first check.
func (r *Registry) Register(ch *channel.Channel, dir channel.Direction, cb Callback) {
	k := key{ch, dir}
	reg := &registration{r: r, key: k, cb: cb}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if old := r.entries[k]; old != nil {
		old.cancelLocked()
	}
	r.entries[k] = reg
	r.mu.Unlock()

	r.q.QueueEvent(reg, event.Tail)
}

// Deregister removes the callback for ch and dir, if any.
func (r *Registry) Deregister(ch *channel.Channel, dir channel.Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{ch, dir}
	if reg := r.entries[k]; reg != nil {
		reg.cancelLocked()
		delete(r.entries, k)
	}
}

// Lookup returns the callback registered for ch and dir.
func (r *Registry) Lookup(ch *channel.Channel, dir channel.Direction) (Callback, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg := r.entries[key{ch, dir}]
	if reg == nil {
		return nil, false
	}
	return reg.cb, true
}

// DisposeChannel removes both callbacks of ch.
func (r *Registry) DisposeChannel(ch *channel.Channel) {
	r.Deregister(ch, channel.DirRead)
	r.Deregister(ch, channel.DirWrite)
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close removes every registration; later Register calls are ignored.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for k, reg := range r.entries {
		reg.cancelLocked()
		delete(r.entries, k)
	}
}

func (reg *registration) cancelLocked() {
	reg.cancelled = true
	if reg.timer != nil {
		reg.timer.Cancel()
		reg.timer = nil
	}
}

func (reg *registration) active() bool {
	reg.r.mu.Lock()
	defer reg.r.mu.Unlock()
	return !reg.cancelled
}

// Process checks readiness once.
func (reg *registration) Process() error {
	r := reg.r
	if !reg.active() {
		return nil
	}
	ch := reg.key.ch
	if ch.Closed() {
		r.dispose(reg, "channel closed")
		return nil
	}

	var ready bool
	if reg.key.dir == channel.DirRead {
		ready = ch.Readable()
		if !ready {
			ch.FillInput()
		}
	} else {
		ready = ch.Writable()
	}

	if !ready {
		r.mu.Lock()
		if !reg.cancelled {
			reg.timer = r.q.After(r.delay, reg)
		}
		r.mu.Unlock()
		return nil
	}

	if err := reg.cb(); err != nil {
		r.dispose(reg, "callback failed")
		return err
	}
	if reg.active() {
		r.q.QueueEvent(reg, event.Tail)
	}
	return nil
}

func (r *Registry) dispose(reg *registration, why string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg.cancelLocked()
	if r.entries[reg.key] == reg {
		delete(r.entries, reg.key)
	}
	Logger().Debug("fileevent disposed",
		zap.String("channel", reg.key.ch.Name()),
		zap.Stringer("direction", reg.key.dir),
		zap.String("reason", why))
}
