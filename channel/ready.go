package channel

import (
	"go.uber.org/zap"

	"github.com/wippyai/chanio/stream"
)

// Readable reports whether a read would return without waiting: data is
// buffered or ready upstream, end of file was reached, a refill failed, or
// the encoding changed since the last read. A channel whose input pipeline
// does not exist yet is not readable; FillInput builds it.
func (c *Channel) Readable() bool {
	if c.closed.Load() || !c.mode.Readable() || !c.ready() {
		return false
	}
	in, _ := c.pipelines()
	if in == nil {
		return false
	}
	probe := NewOwner()
	if !c.own.tryAcquire(DirRead, probe) {
		// someone is reading right now
		return false
	}
	defer c.own.release(DirRead, probe)

	c.mu.Lock()
	changed, buffering := c.encChanged, c.buffering
	c.mu.Unlock()
	if changed || in.buf.EOF() {
		return true
	}
	running, err := in.buf.RefillInProgress()
	if err != nil {
		return true
	}
	if buffering == stream.Line && running && !in.buf.WouldBlock() {
		return true
	}
	n, err := in.dec.Available()
	if err != nil {
		return false
	}
	return n > 0
}

// Writable reports whether a write would be accepted without waiting.
func (c *Channel) Writable() bool {
	if c.closed.Load() || !c.mode.Writable() || !c.ready() {
		return false
	}
	_, out := c.pipelines()
	if out == nil {
		return true
	}
	c.mu.Lock()
	size := c.bufferSize
	c.mu.Unlock()
	return out.buf.Buffered() < size
}

// FillInput starts a background refill so a later Readable can succeed.
func (c *Channel) FillInput() {
	if c.closed.Load() || !c.mode.Readable() || !c.ready() {
		return
	}
	in, err := c.input()
	if err != nil {
		Logger().Debug("fill input", zapChannel(c), zap.Error(err))
		return
	}
	in.buf.RequestRefill()
}

func (c *Channel) ready() bool {
	if w, ok := c.backend.(Waiter); ok {
		return w.Ready()
	}
	return true
}
