package stream

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrBufferClosed is returned to readers waiting on a closed input buffer.
var ErrBufferClosed = errors.New("input buffer closed")

// InputBuffer holds unread bytes fed by a background refiller.
//
// The refiller goroutine waits on a one-slot request mailbox, so at most one
// refill is in flight. All buffer state is guarded by mu; the refiller does
// its blocking upstream read outside the lock while the refilling flag keeps
// consumers away from the buffer, and signals completion by closing done.
type InputBuffer struct {
	src *EOFFilter

	mu         sync.Mutex
	buf        []byte
	pos        int
	limit      int
	requested  int
	buffering  Buffering
	blocking   bool
	eof        bool
	wouldBlock bool
	pending    bool // refill requested and not yet finished
	running    bool // refiller owns buf
	done       chan struct{}
	err        error
	closed     bool

	requests chan struct{}
	stop     chan struct{}
}

// NewInputBuffer creates the buffer and starts its refiller.
func NewInputBuffer(src *EOFFilter, size int, buffering Buffering, blocking bool) *InputBuffer {
	b := &InputBuffer{
		src:       src,
		requested: size,
		buffering: buffering,
		blocking:  blocking,
		requests:  make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
	b.resizeLocked()
	go b.refiller()
	return b
}

// resizeLocked reallocates only when the buffer is empty and no refill runs.
func (b *InputBuffer) resizeLocked() {
	if b.running || b.pending {
		return
	}
	size := b.requested
	if b.buffering == None {
		// one byte is still needed to detect end of file
		size = 1
	}
	if b.limit-b.pos > 0 || (b.buf != nil && len(b.buf) == size) {
		return
	}
	b.buf = make([]byte, size)
	b.pos = 0
	b.limit = 0
}

// SetBufferSize requests a new capacity, applied once the buffer drains.
func (b *InputBuffer) SetBufferSize(size int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requested = size
	b.resizeLocked()
}

// SetBuffering changes the refill strategy.
func (b *InputBuffer) SetBuffering(mode Buffering) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffering = mode
	b.resizeLocked()
}

// SetBlocking switches between waiting and would-block reads.
func (b *InputBuffer) SetBlocking(blocking bool) {
	b.mu.Lock()
	b.blocking = blocking
	b.mu.Unlock()
}

// SeekReset discards buffered bytes and the end-of-file flag.
func (b *InputBuffer) SeekReset() {
	b.mu.Lock()
	b.pos = 0
	b.limit = 0
	b.eof = false
	b.mu.Unlock()
}

// CancelEOF clears the end-of-file flag.
func (b *InputBuffer) CancelEOF() {
	b.mu.Lock()
	b.eof = false
	b.mu.Unlock()
}

// EOF reports whether the refiller hit end of file.
func (b *InputBuffer) EOF() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eof
}

// WouldBlock reports whether the last Read came up short in non-blocking mode.
func (b *InputBuffer) WouldBlock() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wouldBlock
}

// Remaining returns the number of buffered unread bytes.
func (b *InputBuffer) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit - b.pos
}

// Available returns buffered bytes plus what upstream reports, or zero
// while a refill runs.
func (b *InputBuffer) Available() (int, error) {
	b.mu.Lock()
	if b.running || b.pending {
		b.mu.Unlock()
		return 0, nil
	}
	if b.closed {
		b.mu.Unlock()
		return 0, ErrBufferClosed
	}
	n := b.limit - b.pos
	b.mu.Unlock()
	up, err := b.src.Available()
	return n + up, err
}

// RefillInProgress reports a requested or running refill. When idle it
// returns the error of the last refill, if any, leaving it for the next read.
func (b *InputBuffer) RefillInProgress() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending || b.running {
		return true, nil
	}
	return false, b.err
}

// RequestRefill starts a background refill without waiting.
func (b *InputBuffer) RequestRefill() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.eof || b.limit-b.pos > 0 {
		return
	}
	b.requestLocked()
}

func (b *InputBuffer) requestLocked() chan struct{} {
	if !b.pending {
		b.pending = true
		b.done = make(chan struct{})
		select {
		case b.requests <- struct{}{}:
		default:
		}
	}
	return b.done
}

// waitLocked drops the lock until the current refill finishes.
func (b *InputBuffer) waitLocked(ctx context.Context) error {
	done := b.done
	if !b.pending || done == nil {
		return nil
	}
	b.mu.Unlock()
	defer b.mu.Lock()
	select {
	case <-done:
		return nil
	case <-b.stop:
		return ErrBufferClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *InputBuffer) refillAndWaitLocked(ctx context.Context) error {
	b.requestLocked()
	if err := b.waitLocked(ctx); err != nil {
		return err
	}
	return b.takeErrLocked()
}

func (b *InputBuffer) takeErrLocked() error {
	err := b.err
	b.err = nil
	return err
}

// Read copies buffered bytes into p and returns io.EOF at end of file.
// In non-blocking mode it never waits: zero bytes and a nil error mean
// the caller should retry once the channel is readable.
func (b *InputBuffer) Read(ctx context.Context, p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wouldBlock = false
	if b.closed {
		return 0, ErrBufferClosed
	}

	if b.pending || b.running {
		if !b.blocking {
			b.wouldBlock = true
			return 0, nil
		}
		if err := b.waitLocked(ctx); err != nil {
			return 0, err
		}
	}

	if b.eof {
		return 0, io.EOF
	}
	if err := b.takeErrLocked(); err != nil {
		return 0, err
	}

	if b.limit-b.pos == 0 {
		avail := 0
		if b.buffering != Line {
			var err error
			if avail, err = b.src.Available(); err != nil {
				return 0, err
			}
		}
		if avail > 0 {
			// upstream has data now, skip the buffer
			size := min(len(p), avail)
			if b.requested > 0 && size > b.requested {
				size = b.requested
			}
			n, err := b.src.Read(p[:size])
			if err == io.EOF && n == 0 {
				b.eof = true
				return 0, io.EOF
			}
			b.wouldBlock = !b.blocking && n < len(p)
			if err != nil && err != io.EOF {
				return n, err
			}
			return n, nil
		}

		if !b.blocking {
			b.requestLocked()
			b.wouldBlock = true
			return 0, nil
		}
		if err := b.refillAndWaitLocked(ctx); err != nil {
			return 0, err
		}
	}

	if b.limit-b.pos == 0 && b.eof {
		return 0, io.EOF
	}

	n := copy(p, b.buf[b.pos:b.limit])
	b.pos += n
	b.wouldBlock = !b.blocking && n < len(p) && !b.eof
	return n, nil
}

// ReadByteContext always waits for data, regardless of the blocking mode.
func (b *InputBuffer) ReadByteContext(ctx context.Context) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if b.closed {
			return 0, ErrBufferClosed
		}
		if b.pending || b.running {
			if err := b.waitLocked(ctx); err != nil {
				return 0, err
			}
			continue
		}
		if b.limit-b.pos > 0 {
			c := b.buf[b.pos]
			b.pos++
			return c, nil
		}
		if b.eof {
			return 0, io.EOF
		}
		if err := b.takeErrLocked(); err != nil {
			return 0, err
		}
		if err := b.refillAndWaitLocked(ctx); err != nil {
			return 0, err
		}
		if b.limit-b.pos == 0 && b.eof {
			return 0, io.EOF
		}
	}
}

// WaitIdle waits for an in-flight refill to finish, so the upstream
// position no longer moves.
func (b *InputBuffer) WaitIdle(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBufferClosed
	}
	return b.waitLocked(ctx)
}

// Close stops the refiller. Waiting readers return ErrBufferClosed.
func (b *InputBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.stop)
	return nil
}

func (b *InputBuffer) refiller() {
	for {
		select {
		case <-b.stop:
			return
		case <-b.requests:
		}

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return
		}
		if !b.pending {
			b.mu.Unlock()
			continue
		}
		b.err = nil
		b.pending = false
		b.resizeLocked()
		b.pending = true
		b.running = true
		b.mu.Unlock()

		err := b.refill()

		b.mu.Lock()
		if err != nil {
			b.err = err
		}
		b.running = false
		b.pending = false
		close(b.done)
		b.mu.Unlock()
	}
}

func (b *InputBuffer) refill() error {
	b.mu.Lock()
	if b.eof || b.limit-b.pos > 0 {
		b.mu.Unlock()
		return nil
	}
	buf := b.buf
	line := b.buffering == Line
	b.pos = 0
	b.limit = 0
	b.mu.Unlock()

	if !line {
		size := len(buf)
		if avail, err := b.src.Available(); err == nil && avail < size {
			size = avail
		}
		if size < 1 {
			size = 1
		}

		n, err := b.src.Read(buf[:size])

		b.mu.Lock()
		defer b.mu.Unlock()
		b.pos = 0
		b.limit = n
		if err == io.EOF {
			if n == 0 {
				b.eof = true
			}
			return nil
		}
		return err
	}

	for {
		c, err := b.src.ReadByte()
		if err == io.EOF {
			b.mu.Lock()
			if b.limit == 0 {
				b.eof = true
			}
			b.mu.Unlock()
			return nil
		}
		if err != nil {
			return err
		}

		b.mu.Lock()
		buf[b.limit] = c
		b.limit++
		full := b.limit >= len(buf)
		b.mu.Unlock()
		if c == eolByte || full {
			return nil
		}
	}
}
