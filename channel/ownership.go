package channel

import (
	"context"
	"sync"
	"sync/atomic"
)

// Owner identifies an execution context that may hold a channel direction.
// Goroutines have no identity of their own, so callers that want to hold a
// direction across calls carry an Owner in their context.
type Owner uint64

var lastOwner atomic.Uint64

// NewOwner returns a fresh owner token.
func NewOwner() Owner {
	return Owner(lastOwner.Add(1))
}

type ownerKey struct{}

// WithOwner attaches o to ctx. Operations called with the returned context
// act as o, so an owner that already holds a direction can re-enter.
func WithOwner(ctx context.Context, o Owner) context.Context {
	return context.WithValue(ctx, ownerKey{}, o)
}

// OwnerFrom returns the owner carried by ctx, or a fresh one-shot token.
func OwnerFrom(ctx context.Context) Owner {
	if ctx != nil {
		if o, ok := ctx.Value(ownerKey{}).(Owner); ok && o != 0 {
			return o
		}
	}
	return NewOwner()
}

// Direction selects the read or write side of a channel.
type Direction uint8

const (
	DirRead Direction = iota
	DirWrite
)

func (d Direction) String() string {
	if d == DirWrite {
		return "writable"
	}
	return "readable"
}

type claim struct {
	owner Owner
	depth int
}

// ownership tracks the holder of each direction. A holder may re-acquire;
// the direction is free once every acquire has been released.
type ownership struct {
	mu      sync.Mutex
	claims  [2]claim
	changed chan struct{}
}

func (o *ownership) tryAcquire(d Direction, who Owner) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	c := &o.claims[d]
	if c.depth > 0 && c.owner != who {
		return false
	}
	c.owner = who
	c.depth++
	return true
}

func (o *ownership) release(d Direction, who Owner) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c := &o.claims[d]
	if c.depth == 0 || c.owner != who {
		return
	}
	c.depth--
	if c.depth == 0 {
		c.owner = 0
		if o.changed != nil {
			close(o.changed)
			o.changed = nil
		}
	}
}

func (o *ownership) holder(d Direction) Owner {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.claims[d].owner
}

// wait blocks until who can acquire d, then acquires it.
func (o *ownership) wait(ctx context.Context, d Direction, who Owner) error {
	for {
		o.mu.Lock()
		c := &o.claims[d]
		if c.depth == 0 || c.owner == who {
			c.owner = who
			c.depth++
			o.mu.Unlock()
			return nil
		}
		if o.changed == nil {
			o.changed = make(chan struct{})
		}
		changed := o.changed
		o.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
