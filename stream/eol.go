package stream

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
)

// LineStatus is the outcome of EOLReader.ReadLine.
type LineStatus int

const (
	LineComplete LineStatus = iota
	LineEOF
	LineIncomplete
)

// EOLReader translates end-of-line sequences to '\n' on input.
type EOLReader struct {
	src         *Decoder
	translation atomic.Uint32
	blocking    atomic.Bool
	eof         bool
}

// NewEOLReader reads characters from src.
func NewEOLReader(src *Decoder, t Translation, blocking bool) *EOLReader {
	r := &EOLReader{src: src}
	r.SetTranslation(t)
	r.SetBlocking(blocking)
	return r
}

func (r *EOLReader) SetTranslation(t Translation) {
	r.translation.Store(uint32(t))
}

func (r *EOLReader) Translation() Translation {
	return Translation(r.translation.Load())
}

// SetBlocking controls whether a trailing CR may wait for its lookahead.
func (r *EOLReader) SetBlocking(b bool) {
	r.blocking.Store(b)
}

// EOF reports whether the last read reached end of file.
func (r *EOLReader) EOF() bool {
	return r.eof
}

// CancelEOF clears the end-of-file flag.
func (r *EOLReader) CancelEOF() {
	r.eof = false
}

func (r *EOLReader) SeekReset() {
	r.eof = false
}

func isEOLChar(t Translation, c int) bool {
	switch t {
	case Binary, LF, Auto:
		return c == '\n'
	case CR:
		return c == '\r'
	}
	return false
}

func mightBeEOL2(t Translation, c int) bool {
	return c == '\r' && (t == Auto || t == CRLF)
}

// isEOL1 reports a one-character terminator given its successor.
func isEOL1(t Translation, c1, c2 int) bool {
	if isEOLChar(t, c1) {
		return true
	}
	return t == Auto && c1 == '\r' && c2 != '\n' && c2 != -1
}

// isEOL2 reports a terminator that swallows its successor.
func isEOL2(t Translation, c1, c2 int) bool {
	switch t {
	case CRLF:
		return c1 == '\r' && c2 == '\n'
	case Auto:
		return c1 == '\r' && (c2 == '\n' || c2 == -1)
	}
	return false
}

// peek fetches the character after a CR. ok is false when a non-blocking
// reader would have to wait for it.
func (r *EOLReader) peek(ctx context.Context) (c int, ok bool, err error) {
	if !r.blocking.Load() && !r.src.Ready() {
		return 0, false, nil
	}
	c, err = r.src.Peek(ctx, false)
	return c, err == nil, err
}

// Read fills dst with translated characters.
func (r *EOLReader) Read(ctx context.Context, dst []rune) (int, error) {
	r.eof = false
	n, err := r.src.Read(ctx, dst)
	t := r.Translation()
	if n < 1 || t == Binary || t == LF {
		r.eof = err == io.EOF
		return n, err
	}

	if t == CR {
		for i := 0; i < n; i++ {
			if dst[i] == '\r' {
				dst[i] = '\n'
			}
		}
		r.eof = err == io.EOF
		return n, err
	}

	out, i := 0, 0
	for i < n-1 {
		c1, c2 := int(dst[i]), int(dst[i+1])
		switch {
		case isEOL1(t, c1, c2):
			dst[out] = '\n'
			i++
		case isEOL2(t, c1, c2):
			dst[out] = '\n'
			i += 2
		default:
			dst[out] = dst[i]
			i++
		}
		out++
	}
	if i >= n {
		return out, nil
	}

	last := int(dst[n-1])
	if isEOLChar(t, last) {
		dst[out] = '\n'
		return out + 1, nil
	}
	if mightBeEOL2(t, last) {
		c2, ok, err := r.peek(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			// decide once the next character arrives
			r.src.PushBack(rune(last))
			return out, nil
		}
		r.eof = c2 == -1
		if isEOL1(t, last, c2) {
			dst[out] = '\n'
			return out + 1, nil
		}
		if isEOL2(t, last, c2) {
			if c2 != -1 {
				if _, err := r.src.Peek(ctx, true); err != nil {
					return out, err
				}
			}
			dst[out] = '\n'
			return out + 1, nil
		}
	}
	dst[out] = rune(last)
	return out + 1, nil
}

// ReadLine appends one line without its terminator to sb. In non-blocking
// mode a line without a terminator is not returned: the input is rewound
// and LineIncomplete reported.
func (r *EOLReader) ReadLine(ctx context.Context, sb *strings.Builder, blocking bool) (LineStatus, error) {
	t := r.Translation()
	var one [1]rune
	sawEOL := false
	start := sb.Len()
	r.eof = false

	if !blocking {
		r.src.Mark()
	}
	abort := func(err error) (LineStatus, error) {
		if !blocking {
			r.src.Reset()
			r.src.Unmark()
			sbTruncate(sb, start)
		}
		return LineIncomplete, err
	}

	for {
		n, err := r.src.Read(ctx, one[:])
		if err == io.EOF {
			r.eof = true
			break
		}
		if err != nil {
			return abort(err)
		}
		if n == 0 {
			if blocking {
				continue
			}
			break
		}

		c1 := int(one[0])
		if isEOLChar(t, c1) {
			sawEOL = true
			break
		}

		if mightBeEOL2(t, c1) {
			if !blocking && !r.src.Ready() {
				break
			}
			c2, err := r.src.Peek(ctx, false)
			if err != nil {
				return abort(err)
			}
			if isEOL1(t, c1, c2) {
				sawEOL = true
				break
			}
			if isEOL2(t, c1, c2) {
				sawEOL = true
				if c2 != -1 {
					if _, err := r.src.Peek(ctx, true); err != nil {
						return abort(err)
					}
				}
				break
			}
		}
		sb.WriteRune(rune(c1))
	}

	if r.eof && sb.Len() == start {
		if !blocking {
			r.src.Unmark()
		}
		return LineEOF, nil
	}
	if blocking {
		return LineComplete, nil
	}
	if sawEOL || r.eof {
		r.src.Unmark()
		return LineComplete, nil
	}

	// read it again when more data arrives
	r.src.Reset()
	r.src.Unmark()
	sbTruncate(sb, start)
	return LineIncomplete, nil
}

func sbTruncate(sb *strings.Builder, n int) {
	if sb.Len() == n {
		return
	}
	s := sb.String()[:n]
	sb.Reset()
	sb.WriteString(s)
}

// EOLWriter translates '\n' to the output convention.
type EOLWriter struct {
	dst         *Encoder
	translation atomic.Uint32
}

// NewEOLWriter writes translated text to dst.
func NewEOLWriter(dst *Encoder, t Translation) *EOLWriter {
	w := &EOLWriter{dst: dst}
	w.SetTranslation(t)
	return w
}

func (w *EOLWriter) SetTranslation(t Translation) {
	if t == Auto {
		t = Platform()
	}
	w.translation.Store(uint32(t))
}

func (w *EOLWriter) Translation() Translation {
	return Translation(w.translation.Load())
}

// WriteString writes s after end-of-line translation.
func (w *EOLWriter) WriteString(s string) error {
	switch w.Translation() {
	case CR:
		s = strings.ReplaceAll(s, "\n", "\r")
	case CRLF:
		s = strings.ReplaceAll(s, "\n", "\r\n")
	}
	return w.dst.WriteString(s)
}

// Close closes the rest of the output chain.
func (w *EOLWriter) Close() error {
	return w.dst.Close()
}
