package stream

import (
	"errors"
	"io"
	"sync"

	"golang.org/x/text/transform"
)

// ByteSink is the byte-level stage below the encoder.
type ByteSink interface {
	io.Writer
	Flush() error
	Close() error
}

// Encoder turns characters into bytes using the channel encoding.
// A nil encoding writes the low byte of each character.
type Encoder struct {
	dst ByteSink

	reqMu     sync.Mutex
	requested *Encoding

	enc *Encoding
	tr  transform.Transformer
	buf []byte
}

// NewEncoder writes encoded bytes to dst.
func NewEncoder(dst ByteSink, enc *Encoding) *Encoder {
	e := &Encoder{dst: dst, requested: enc}
	e.apply()
	return e
}

// SetEncoding switches encodings at the next write.
func (e *Encoder) SetEncoding(enc *Encoding) {
	e.reqMu.Lock()
	e.requested = enc
	e.reqMu.Unlock()
}

func (e *Encoder) apply() {
	e.reqMu.Lock()
	req := e.requested
	e.reqMu.Unlock()
	if e.enc.Same(req) && (req == nil || e.tr != nil) {
		return
	}
	e.enc = req
	if req == nil {
		e.tr = nil
		return
	}
	e.tr = req.newEncoder()
}

// WriteString encodes s and passes the bytes on.
func (e *Encoder) WriteString(s string) error {
	e.apply()
	if e.tr == nil {
		out := e.buf[:0]
		for _, r := range s {
			out = append(out, byte(r))
		}
		e.buf = out
		_, err := e.dst.Write(out)
		return err
	}

	src := []byte(s)
	if need := 4*len(src) + 16; cap(e.buf) < need {
		e.buf = make([]byte, need)
	}
	for len(src) > 0 {
		nDst, nSrc, err := e.tr.Transform(e.buf[:cap(e.buf)], src, false)
		if nDst > 0 {
			if _, werr := e.dst.Write(e.buf[:nDst]); werr != nil {
				return werr
			}
		}
		src = src[nSrc:]
		switch {
		case err == nil:
		case errors.Is(err, transform.ErrShortDst):
			e.buf = make([]byte, 2*cap(e.buf))
		case errors.Is(err, transform.ErrShortSrc):
			// a split UTF-8 sequence can't be completed later; encode it as is
			nDst, _, ferr := e.tr.Transform(e.buf[:cap(e.buf)], src, true)
			if ferr != nil {
				return ferr
			}
			_, werr := e.dst.Write(e.buf[:nDst])
			return werr
		default:
			return err
		}
	}
	return nil
}

// Flush passes the flush down the chain.
func (e *Encoder) Flush() error {
	return e.dst.Flush()
}

// Close writes any trailing shift state and closes the byte stages.
func (e *Encoder) Close() error {
	var err error
	if e.tr != nil {
		if cap(e.buf) < 64 {
			e.buf = make([]byte, 64)
		}
		nDst, _, terr := e.tr.Transform(e.buf[:cap(e.buf)], nil, true)
		if terr == nil && nDst > 0 {
			_, err = e.dst.Write(e.buf[:nDst])
		}
	}
	if cerr := e.dst.Close(); err == nil {
		err = cerr
	}
	return err
}
