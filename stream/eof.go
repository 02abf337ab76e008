package stream

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"
)

// EOFFilter ends input at the first occurrence of a sentinel byte.
// The sentinel and anything read past it are kept, so disabling or
// changing the sentinel later replays them instead of losing them.
type EOFFilter struct {
	src Source

	mu       sync.Mutex
	char     byte
	eof      bool
	sawChar  bool
	seenChar byte
	srcEOF   bool
	pending  []byte
	// upstream error that arrived with the sentinel, kept for after pending
	pendErr error
}

// NewEOFFilter wraps src. A zero char disables the filter.
func NewEOFFilter(src Source, char byte) *EOFFilter {
	return &EOFFilter{src: src, char: char}
}

// SetChar changes the sentinel; a different value cancels a seen end of file.
func (f *EOFFilter) SetChar(c byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c != f.char {
		f.eof = false
	}
	f.char = c
}

// Char returns the current sentinel.
func (f *EOFFilter) Char() byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.char
}

// CancelEOF lets reads continue after an end of file.
func (f *EOFFilter) CancelEOF() {
	f.mu.Lock()
	f.eof = false
	f.mu.Unlock()
}

// SeekReset drops all state tied to the old position.
func (f *EOFFilter) SeekReset() {
	f.mu.Lock()
	f.eof = false
	f.sawChar = false
	f.srcEOF = false
	f.pending = nil
	f.pendErr = nil
	f.mu.Unlock()
}

// SawChar reports whether a sentinel is waiting to be replayed.
func (f *EOFFilter) SawChar() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sawChar
}

// Held returns the bytes read from upstream but not yet returned: the
// swallowed sentinel and everything read past it.
func (f *EOFFilter) Held() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heldLocked()
}

func (f *EOFFilter) heldLocked() int {
	held := len(f.pending)
	if f.sawChar {
		held++
	}
	return held
}

// Available counts held-back bytes plus what upstream reports. An upstream
// error is reported only once nothing is held.
func (f *EOFFilter) Available() (int, error) {
	f.mu.Lock()
	held := f.heldLocked()
	eof := f.eof
	f.mu.Unlock()
	if eof {
		return 0, nil
	}
	n, err := f.src.Available()
	if err != nil {
		if held > 0 {
			return held, nil
		}
		return 0, err
	}
	return held + n, nil
}

func (f *EOFFilter) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	f.mu.Lock()
	if f.eof {
		f.mu.Unlock()
		return 0, io.EOF
	}
	if f.sawChar {
		// the sentinel changed after it was seen
		p[0] = f.seenChar
		f.sawChar = false
		f.mu.Unlock()
		return 1, nil
	}

	var (
		n   int
		err error
	)
	if len(f.pending) > 0 {
		n = copy(p, f.pending)
		f.pending = f.pending[n:]
		if len(f.pending) == 0 {
			f.pending = nil
		}
	} else if f.pendErr != nil {
		err = f.pendErr
		f.pendErr = nil
		f.mu.Unlock()
		return 0, err
	} else if f.srcEOF {
		f.eof = true
		f.mu.Unlock()
		return 0, io.EOF
	} else {
		f.mu.Unlock()
		n, err = f.src.Read(p)
		f.mu.Lock()
	}
	defer f.mu.Unlock()

	if f.char != 0 {
		if i := bytes.IndexByte(p[:n], f.char); i >= 0 {
			rest := append([]byte(nil), p[i+1:n]...)
			f.pending = append(rest, f.pending...)
			f.eof = true
			f.sawChar = true
			f.seenChar = f.char
			switch {
			case err == io.EOF:
				f.srcEOF = true
			case err != nil:
				f.pendErr = err
			}
			if i == 0 {
				return 0, io.EOF
			}
			return i, nil
		}
	}

	if err == io.EOF {
		if n > 0 {
			f.srcEOF = true
			return n, nil
		}
		f.eof = true
		return 0, io.EOF
	}
	return n, err
}

// ReadByte reads a single byte.
func (f *EOFFilter) ReadByte() (byte, error) {
	var b [1]byte
	for {
		n, err := f.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// EOFWriter appends a sentinel byte to the output when closed.
// It never closes the underlying writer.
type EOFWriter struct {
	dst  io.Writer
	char atomic.Uint32
}

// NewEOFWriter wraps dst. A zero char disables the sentinel.
func NewEOFWriter(dst io.Writer, char byte) *EOFWriter {
	w := &EOFWriter{dst: dst}
	w.char.Store(uint32(char))
	return w
}

// SetChar changes the sentinel written on close.
func (w *EOFWriter) SetChar(c byte) {
	w.char.Store(uint32(c))
}

func (w *EOFWriter) Write(p []byte) (int, error) {
	return w.dst.Write(p)
}

// Close writes the sentinel, if any.
func (w *EOFWriter) Close() error {
	if c := byte(w.char.Load()); c != 0 {
		_, err := w.dst.Write([]byte{c})
		return err
	}
	return nil
}
