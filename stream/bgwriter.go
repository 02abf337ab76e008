package stream

import (
	"errors"
	"io"
	"sync"

	"go.uber.org/multierr"
)

// ErrWriterClosed is returned for writes queued after Close.
var ErrWriterClosed = errors.New("stream is already closed")

// WriterHooks are backend callbacks run by the background writer.
type WriterHooks struct {
	// BeforeWrite runs before every write, e.g. to seek to the end in append mode.
	BeforeWrite func() error
	// Flush runs after every flush transaction.
	Flush func() error
	// Close releases the backend after the output chain is closed.
	Close func() error
}

type txnKind uint8

const (
	txnWrite txnKind = iota
	txnFlush
	txnClose
)

type txn struct {
	kind txnKind
	data []byte
}

// BackgroundWriter runs writes, flushes and the final close on its own
// goroutine. Blocking callers wait until the queue drains; non-blocking
// callers return at once. A failed transaction is reported by the next call.
type BackgroundWriter struct {
	dst   io.WriteCloser
	hooks WriterHooks

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []txn
	busy     bool
	blocking bool
	err      error
	closed   bool
	done     chan struct{}
}

// NewBackgroundWriter starts the writer goroutine.
func NewBackgroundWriter(dst io.WriteCloser, blocking bool, hooks WriterHooks) *BackgroundWriter {
	w := &BackgroundWriter{
		dst:      dst,
		hooks:    hooks,
		blocking: blocking,
		done:     make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

func (w *BackgroundWriter) SetBlocking(blocking bool) {
	w.mu.Lock()
	w.blocking = blocking
	w.mu.Unlock()
}

// Pending reports whether queued transactions have not finished yet.
func (w *BackgroundWriter) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue) > 0 || w.busy
}

// Done is closed once the close transaction has run.
func (w *BackgroundWriter) Done() <-chan struct{} {
	return w.done
}

func (w *BackgroundWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	blocking := w.blocking
	w.mu.Unlock()
	data := p
	if !blocking {
		// the caller may reuse p before the queue gets to it
		data = append([]byte(nil), p...)
	}
	if err := w.enqueue(txn{kind: txnWrite, data: data}); err != nil {
		return 0, err
	}
	return len(p), nil
}

// writeOwned queues p without copying; the caller gives up the slice.
func (w *BackgroundWriter) writeOwned(p []byte) error {
	return w.enqueue(txn{kind: txnWrite, data: p})
}

func (w *BackgroundWriter) Flush() error {
	return w.enqueue(txn{kind: txnFlush})
}

// Close queues the final transaction. Later calls fail with ErrWriterClosed.
func (w *BackgroundWriter) Close() error {
	return w.enqueue(txn{kind: txnClose})
}

func (w *BackgroundWriter) enqueue(t txn) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	if t.kind == txnClose {
		w.closed = true
	}
	w.queue = append(w.queue, t)
	w.cond.Broadcast()

	if w.blocking {
		for len(w.queue) > 0 || w.busy {
			w.cond.Wait()
		}
	}
	err := w.err
	w.err = nil
	return err
}

func (w *BackgroundWriter) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 {
			w.cond.Wait()
		}
		t := w.queue[0]
		w.queue = w.queue[1:]
		w.busy = true
		w.mu.Unlock()

		err := w.perform(t)

		w.mu.Lock()
		w.busy = false
		if err != nil {
			w.err = err
		}
		if t.kind == txnClose {
			w.queue = nil
			w.cond.Broadcast()
			w.mu.Unlock()
			return
		}
		if len(w.queue) == 0 {
			w.cond.Broadcast()
		}
		w.mu.Unlock()
	}
}

func (w *BackgroundWriter) perform(t txn) error {
	switch t.kind {
	case txnWrite:
		if w.hooks.BeforeWrite != nil {
			if err := w.hooks.BeforeWrite(); err != nil {
				return err
			}
		}
		_, err := w.dst.Write(t.data)
		return err
	case txnFlush:
		if w.hooks.Flush != nil {
			return w.hooks.Flush()
		}
	case txnClose:
		err := w.dst.Close()
		if w.hooks.Close != nil {
			err = multierr.Append(err, w.hooks.Close())
		}
		return err
	}
	return nil
}
