package stream

import (
	"bytes"
	"sync"
)

// OutputBuffer accumulates bytes and hands full buffers to the background writer.
//
// Under line buffering it flushes whenever a CR or LF is anywhere in the
// buffered bytes after a write, not only at the terminator position.
type OutputBuffer struct {
	dst *BackgroundWriter

	mu        sync.Mutex
	requested int
	buffering Buffering
	buf       []byte
	received  int64
}

// NewOutputBuffer buffers writes to dst.
func NewOutputBuffer(dst *BackgroundWriter, size int, buffering Buffering) *OutputBuffer {
	b := &OutputBuffer{dst: dst, requested: size, buffering: buffering}
	b.resizeLocked()
	return b
}

// resizeLocked only reallocates an empty buffer.
func (b *OutputBuffer) resizeLocked() {
	if len(b.buf) != 0 {
		return
	}
	size := b.requested
	if b.buffering == None {
		size = 0
	}
	if b.buf != nil && cap(b.buf) == size {
		return
	}
	b.buf = make([]byte, 0, size)
}

func (b *OutputBuffer) SetBufferSize(size int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requested = size
	b.resizeLocked()
}

func (b *OutputBuffer) SetBuffering(mode Buffering) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffering = mode
	b.resizeLocked()
}

// Buffered returns the number of bytes waiting to be flushed.
func (b *OutputBuffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Received returns the total number of bytes ever written to the buffer.
func (b *OutputBuffer) Received() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received
}

// Flush hands buffered bytes to the writer and waits according to its mode.
func (b *OutputBuffer) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

func (b *OutputBuffer) flushLocked() error {
	var err error
	if len(b.buf) > 0 {
		// the writer keeps the slice, start a new one
		full := b.buf
		b.buf = nil
		err = b.dst.writeOwned(full)
	}
	if ferr := b.dst.Flush(); err == nil {
		err = ferr
	}
	b.buf = b.buf[:0]
	b.resizeLocked()
	return err
}

func (b *OutputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.received += int64(len(p))
	written := len(p)

	if b.buffering == None && cap(b.buf) > 0 {
		if err := b.flushLocked(); err != nil {
			return 0, err
		}
	}
	if cap(b.buf) == 0 {
		if _, err := b.dst.Write(p); err != nil {
			return 0, err
		}
		return written, b.dst.Flush()
	}

	size := cap(b.buf)
	n := min(len(p), size-len(b.buf))
	b.buf = append(b.buf, p[:n]...)
	p = p[n:]
	if len(b.buf) == size {
		if err := b.flushLocked(); err != nil {
			return 0, err
		}
	}

	if chunks := len(p) / size; chunks > 0 {
		direct := chunks * size
		if _, err := b.dst.Write(p[:direct]); err != nil {
			return 0, err
		}
		if err := b.dst.Flush(); err != nil {
			return 0, err
		}
		p = p[direct:]
	}

	b.buf = append(b.buf, p...)
	if len(b.buf) == size {
		if err := b.flushLocked(); err != nil {
			return 0, err
		}
	}

	if b.buffering == Line && bytes.ContainsAny(b.buf, "\r\n") {
		if err := b.flushLocked(); err != nil {
			return 0, err
		}
	}
	return written, nil
}

// Close flushes what is left and closes the writer.
func (b *OutputBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.flushLocked()
	if cerr := b.dst.Close(); err == nil {
		err = cerr
	}
	return err
}
