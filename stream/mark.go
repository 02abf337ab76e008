package stream

import (
	"context"
	"io"
)

const markGrow = 512

// MarkReader records bytes read after Mark so Reset can replay them.
// Unread pushes bytes back in front of the next read.
type MarkReader struct {
	src *InputBuffer

	buf     []byte
	readPos int
	markPos int
	marked  bool
}

// NewMarkReader wraps an input buffer.
func NewMarkReader(src *InputBuffer) *MarkReader {
	return &MarkReader{src: src}
}

func (m *MarkReader) save(p []byte) {
	if len(m.buf)+len(p) > cap(m.buf) {
		grown := make([]byte, len(m.buf), cap(m.buf)+((len(p)/markGrow)+1)*markGrow)
		copy(grown, m.buf)
		m.buf = grown
	}
	m.buf = append(m.buf, p...)
	m.readPos += len(p)
}

func (m *MarkReader) trim() {
	if !m.marked && m.readPos == len(m.buf) && len(m.buf) > 0 {
		m.buf = m.buf[:0]
		m.readPos = 0
	}
}

// Mark starts recording at the current position, dropping any older mark.
func (m *MarkReader) Mark() {
	m.marked = true
	m.trim()
	m.markPos = m.readPos
}

// Unmark stops recording; saved bytes not yet re-read are kept.
func (m *MarkReader) Unmark() {
	m.marked = false
	m.trim()
	m.markPos = m.readPos
}

// Reset rewinds to the mark.
func (m *MarkReader) Reset() bool {
	if !m.marked {
		return false
	}
	m.readPos = m.markPos
	return true
}

// Unread pushes p back so the next read returns it first.
func (m *MarkReader) Unread(p []byte) {
	if len(p) == 0 {
		return
	}
	if m.readPos >= len(p) {
		// bytes came from the saved region
		m.readPos -= len(p)
		copy(m.buf[m.readPos:], p)
		return
	}
	rest := m.buf[m.readPos:]
	merged := make([]byte, 0, len(p)+len(rest))
	merged = append(merged, p...)
	merged = append(merged, rest...)
	m.buf = merged
	m.readPos = 0
	m.markPos = 0
}

// SeekReset forgets saved bytes and the mark.
func (m *MarkReader) SeekReset() {
	m.buf = m.buf[:0]
	m.readPos = 0
	m.markPos = 0
	m.marked = false
}

// Buffered returns the number of saved bytes not yet re-read.
func (m *MarkReader) Buffered() int {
	return len(m.buf) - m.readPos
}

// Available counts saved bytes plus the input buffer's availability.
func (m *MarkReader) Available() (int, error) {
	n, err := m.src.Available()
	return m.Buffered() + n, err
}

// EOF reports end of file at the input buffer with nothing saved.
func (m *MarkReader) EOF() bool {
	return m.Buffered() == 0 && m.src.EOF()
}

// Read returns saved bytes first, then reads from the input buffer.
func (m *MarkReader) Read(ctx context.Context, p []byte) (int, error) {
	total := 0
	if saved := len(m.buf) - m.readPos; saved > 0 {
		total = copy(p, m.buf[m.readPos:])
		m.readPos += total
	}
	m.trim()
	if total == len(p) {
		return total, nil
	}
	if total > 0 && m.src.Remaining() == 0 {
		// don't wait for more when we already have something
		return total, nil
	}

	n, err := m.src.Read(ctx, p[total:])
	if n > 0 && m.marked && m.readPos == len(m.buf) {
		m.save(p[total : total+n])
	}
	total += n
	if err == io.EOF && total > 0 {
		return total, nil
	}
	return total, err
}

// ReadByteContext reads one byte, waiting if necessary.
func (m *MarkReader) ReadByteContext(ctx context.Context) (byte, error) {
	if m.readPos < len(m.buf) {
		c := m.buf[m.readPos]
		m.readPos++
		m.trim()
		return c, nil
	}
	c, err := m.src.ReadByteContext(ctx)
	if err != nil {
		return 0, err
	}
	if m.marked {
		m.save([]byte{c})
	}
	return c, nil
}
