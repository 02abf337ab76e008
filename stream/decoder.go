package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// Decoder turns bytes into characters using the channel encoding.
// Encoding changes take effect at the next read. Bytes of an incomplete
// multi-byte sequence are pushed back into the MarkReader.
type Decoder struct {
	src *MarkReader

	reqMu     sync.Mutex
	requested *Encoding

	enc       *Encoding
	tr        transform.Transformer
	eof       bool
	carry     []rune
	markCarry []rune

	raw []byte
	out []byte
}

// NewDecoder reads from src; a nil encoding maps bytes to characters one to one.
func NewDecoder(src *MarkReader, enc *Encoding) *Decoder {
	d := &Decoder{src: src, requested: enc}
	d.apply()
	return d
}

// SetEncoding requests an encoding switch at the next read.
func (d *Decoder) SetEncoding(enc *Encoding) {
	d.reqMu.Lock()
	d.requested = enc
	d.reqMu.Unlock()
}

func (d *Decoder) apply() {
	d.reqMu.Lock()
	req := d.requested
	d.reqMu.Unlock()
	if d.tr != nil && d.enc.Same(req) {
		return
	}
	if d.tr == nil && req == nil {
		d.enc = nil
		return
	}
	d.enc = req
	if req == nil {
		d.tr = nil
		return
	}
	d.tr = req.newDecoder()
}

// CancelEOF lets reads continue after end of file.
func (d *Decoder) CancelEOF() {
	d.eof = false
	if d.tr != nil {
		d.tr.Reset()
	}
}

// SeekReset drops decoder state tied to the old position.
func (d *Decoder) SeekReset() {
	d.CancelEOF()
	d.carry = nil
	d.markCarry = nil
}

// Mark starts recording so Reset can replay from here.
func (d *Decoder) Mark() {
	d.src.Mark()
	d.markCarry = append(d.markCarry[:0], d.carry...)
}

// Unmark drops the mark.
func (d *Decoder) Unmark() {
	d.src.Unmark()
}

// Reset rewinds to the mark.
func (d *Decoder) Reset() {
	if d.src.Reset() {
		d.carry = append(d.carry[:0], d.markCarry...)
	}
	if d.tr != nil {
		d.tr.Reset()
	}
}

// PushBack puts r in front of the next read.
func (d *Decoder) PushBack(r rune) {
	d.carry = append([]rune{r}, d.carry...)
}

// Available reports characters or bytes ready without blocking.
func (d *Decoder) Available() (int, error) {
	n, err := d.src.Available()
	return len(d.carry) + n, err
}

// CarryBytes returns the encoded size of characters decoded but not yet read.
func (d *Decoder) CarryBytes() int {
	if len(d.carry) == 0 {
		return 0
	}
	if d.enc == nil {
		return len(d.carry)
	}
	b, err := d.enc.newEncoder().Bytes([]byte(string(d.carry)))
	if err != nil {
		return len(d.carry)
	}
	return len(b)
}

// maxCharBytes bounds the bytes a single character may take in any encoding.
const maxCharBytes = 16

// Ready reports whether a one-character peek would not block.
func (d *Decoder) Ready() bool {
	if len(d.carry) > 0 || d.eof || d.src.EOF() {
		return true
	}
	n, err := d.src.Available()
	if err != nil || n == 0 {
		return false
	}
	d.apply()
	if d.tr == nil {
		return true
	}

	// a multi-byte encoding needs a whole character, so trial-decode
	// what is already buffered and put it back
	raw := make([]byte, min(n, maxCharBytes))
	k, err := d.src.Read(context.Background(), raw)
	if k > 0 {
		defer d.src.Unread(raw[:k])
	}
	if err == io.EOF {
		return true
	}
	if err != nil || k == 0 {
		return false
	}
	var out [4 * maxCharBytes]byte
	nDst, _, _ := d.enc.newDecoder().Transform(out[:], raw[:k], false)
	return nDst > 0
}

// Peek returns the next character, or -1 at end of file, consuming it only
// when asked. It waits for a whole character regardless of blocking mode.
func (d *Decoder) Peek(ctx context.Context, consume bool) (int, error) {
	if len(d.carry) > 0 {
		r := d.carry[0]
		if consume {
			d.carry = d.carry[1:]
		}
		return int(r), nil
	}
	if d.eof {
		return -1, nil
	}
	d.apply()
	r, err := d.next(ctx)
	if err == io.EOF {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	if !consume {
		d.PushBack(r)
	}
	return int(r), nil
}

// next decodes exactly one character byte by byte. Characters decoded
// alongside it go to the carry.
func (d *Decoder) next(ctx context.Context) (rune, error) {
	if d.tr == nil {
		c, err := d.src.ReadByteContext(ctx)
		return rune(c), err
	}

	var (
		acc [maxCharBytes]byte
		out [4 * maxCharBytes]byte
	)
	n := 0
	for {
		c, err := d.src.ReadByteContext(ctx)
		atEOF := err == io.EOF
		if err != nil && !atEOF {
			d.src.Unread(acc[:n])
			return 0, err
		}
		if !atEOF {
			acc[n] = c
			n++
		}
		if atEOF && n == 0 {
			return 0, io.EOF
		}

		nDst, nSrc, terr := d.tr.Transform(out[:], acc[:n], atEOF)
		if nDst > 0 {
			d.src.Unread(acc[nSrc:n])
			utf := out[:nDst]
			r, size := utf8.DecodeRune(utf)
			utf = utf[size:]
			for len(utf) > 0 {
				extra, sz := utf8.DecodeRune(utf)
				utf = utf[sz:]
				d.carry = append(d.carry, extra)
			}
			return r, nil
		}
		if terr != nil && !errors.Is(terr, transform.ErrShortSrc) && !errors.Is(terr, transform.ErrShortDst) {
			d.src.Unread(acc[nSrc:n])
			return 0, terr
		}
		if atEOF {
			return 0, io.EOF
		}
		// bytes consumed without output, such as a byte order mark
		n = copy(acc[:], acc[nSrc:n])
		if n == len(acc) {
			d.src.Unread(acc[1:n])
			return utf8.RuneError, nil
		}
	}
}

// Read decodes into dst and returns io.EOF once input is exhausted.
// A zero count with a nil error means no bytes were ready.
func (d *Decoder) Read(ctx context.Context, dst []rune) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	d.apply()

	if len(d.carry) > 0 {
		n := copy(dst, d.carry)
		d.carry = d.carry[n:]
		return n, nil
	}

	if d.tr == nil {
		if cap(d.raw) < len(dst) {
			d.raw = make([]byte, len(dst))
		}
		raw := d.raw[:len(dst)]
		n, err := d.src.Read(ctx, raw)
		for i := 0; i < n; i++ {
			dst[i] = rune(raw[i])
		}
		if err == io.EOF {
			d.eof = true
			if n > 0 {
				return n, nil
			}
		}
		return n, err
	}

	if d.eof {
		return 0, io.EOF
	}

	size := max(len(dst), 16)
	if cap(d.raw) < size {
		d.raw = make([]byte, size)
	}
	pending := d.raw[:0]
	produced := 0

	for produced == 0 {
		want := min(len(dst), size-len(pending))
		n, err := d.src.Read(ctx, d.raw[len(pending):len(pending)+want])
		if err == io.EOF {
			d.eof = true
		} else if err != nil {
			d.src.Unread(pending)
			return 0, err
		}
		pending = d.raw[:len(pending)+n]

		if need := 4*len(pending) + utf8.UTFMax; cap(d.out) < need {
			d.out = make([]byte, need)
		}
		nDst, nSrc, terr := d.tr.Transform(d.out[:cap(d.out)], pending, d.eof)
		if terr != nil && !errors.Is(terr, transform.ErrShortSrc) && !errors.Is(terr, transform.ErrShortDst) {
			d.src.Unread(pending[nSrc:])
			return 0, terr
		}
		produced = d.emit(dst, d.out[:nDst])

		rest := copy(d.raw, pending[nSrc:])
		pending = d.raw[:rest]

		if d.eof || n == 0 || rest == size {
			break
		}
	}

	if len(pending) > 0 {
		d.eof = false
		d.src.Unread(pending)
	}
	if produced == 0 && d.eof {
		return 0, io.EOF
	}
	return produced, nil
}

// emit converts decoded UTF-8 into dst, keeping overflow for the next read.
func (d *Decoder) emit(dst []rune, utf []byte) int {
	n := 0
	for len(utf) > 0 {
		r, size := utf8.DecodeRune(utf)
		utf = utf[size:]
		if n < len(dst) {
			dst[n] = r
			n++
		} else {
			d.carry = append(d.carry, r)
		}
	}
	return n
}
