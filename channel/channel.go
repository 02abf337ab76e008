package channel

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

type input struct {
	eof  *stream.EOFFilter
	buf  *stream.InputBuffer
	mark *stream.MarkReader
	dec  *stream.Decoder
	eol  *stream.EOLReader
}

type output struct {
	eof *stream.EOFWriter
	bg  *stream.BackgroundWriter
	buf *stream.OutputBuffer
	enc *stream.Encoder
	eol *stream.EOLWriter
}

// Channel is a named, bidirectional byte stream over a backend.
//
// The input and output pipelines are built on first use and kept for the
// life of the channel. Each direction has a single owner at a time; an
// operation started by anyone else fails with a busy error.
type Channel struct {
	backend Backend
	mode    Mode
	own     ownership
	closed  atomic.Bool
	refs    atomic.Int32

	mu         sync.Mutex
	name       string
	blocking   bool
	buffering  stream.Buffering
	bufferSize int
	encoding   *stream.Encoding
	inTrans    stream.Translation
	outTrans   stream.Translation
	inEOF      byte
	outEOF     byte
	eofSeen    bool
	encChanged bool
	in         *input
	out        *output
}

// New wraps b in a channel. The name is usually assigned by a channel table.
func New(name string, mode Mode, b Backend, opts ...Option) *Channel {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	c := &Channel{
		backend:    b,
		mode:       mode,
		name:       name,
		blocking:   s.blocking,
		buffering:  s.buffering,
		bufferSize: s.bufferSize,
		encoding:   s.encoding,
		inTrans:    s.inTrans,
		inEOF:      s.inEOF,
		outEOF:     s.outEOF,
	}
	c.outTrans = c.resolveOutput(s.outTrans)
	return c
}

func (c *Channel) resolveOutput(t stream.Translation) stream.Translation {
	if t != stream.Auto {
		return t
	}
	if d, ok := c.backend.(OutputTranslationDefaulter); ok {
		return d.DefaultOutputTranslation()
	}
	return stream.Platform()
}

func (c *Channel) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// SetName renames the channel; used by tables when registering.
func (c *Channel) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

func (c *Channel) Mode() Mode { return c.mode }

// Type returns the backend kind, e.g. "file" or "tcp".
func (c *Channel) Type() string { return c.backend.Type() }

// Backend returns the backend the channel was created with.
func (c *Channel) Backend() Backend { return c.backend }

func (c *Channel) Closed() bool { return c.closed.Load() }

// Ref records one more table holding the channel.
func (c *Channel) Ref() int { return int(c.refs.Add(1)) }

// Unref drops a table reference and returns how many remain.
func (c *Channel) Unref() int { return int(c.refs.Add(-1)) }

// Refs returns the number of tables holding the channel.
func (c *Channel) Refs() int { return int(c.refs.Load()) }

// EOF reports whether the last read hit end of file.
func (c *Channel) EOF() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eofSeen
}

// Blocked reports whether the last non-blocking read came up short
// without reaching end of file.
func (c *Channel) Blocked() bool {
	c.mu.Lock()
	in, eof := c.in, c.eofSeen
	c.mu.Unlock()
	return in != nil && in.buf.WouldBlock() && !eof
}

// TryAcquire claims a direction for who without waiting.
func (c *Channel) TryAcquire(who Owner, d Direction) bool {
	return c.own.tryAcquire(d, who)
}

// Release gives up one claim of who on d.
func (c *Channel) Release(who Owner, d Direction) {
	c.own.release(d, who)
}

// WaitOwnership blocks until who holds d. Pair with Release.
func (c *Channel) WaitOwnership(ctx context.Context, who Owner, d Direction) error {
	return c.own.wait(ctx, d, who)
}

// Holder returns the current owner of d, or zero when it is free.
func (c *Channel) Holder(d Direction) Owner {
	return c.own.holder(d)
}

func (c *Channel) checkOpen(op chanerrors.Op) error {
	if c.closed.Load() {
		return chanerrors.Closed(op, c.Name())
	}
	return nil
}

func (c *Channel) checkRead() error {
	if err := c.checkOpen(chanerrors.OpRead); err != nil {
		return err
	}
	if !c.mode.Readable() {
		return chanerrors.NotReadable(c.Name())
	}
	return nil
}

func (c *Channel) checkWrite() error {
	if err := c.checkOpen(chanerrors.OpWrite); err != nil {
		return err
	}
	if !c.mode.Writable() {
		return chanerrors.NotWritable(c.Name())
	}
	return nil
}

// acquire claims d for who and returns its release.
func (c *Channel) acquire(who Owner, d Direction, op chanerrors.Op) (func(), error) {
	if !c.own.tryAcquire(d, who) {
		return nil, chanerrors.Busy(op, c.Name())
	}
	return func() { c.own.release(d, who) }, nil
}

// input returns the input pipeline, building it on first use.
func (c *Channel) input() (*input, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.in != nil {
		return c.in, nil
	}
	if c.closed.Load() {
		return nil, chanerrors.Closed(chanerrors.OpRead, c.name)
	}
	src, err := c.backend.Reader()
	if err != nil {
		return nil, chanerrors.IO(chanerrors.OpRead, c.name, err)
	}
	in := &input{}
	in.eof = stream.NewEOFFilter(src, c.inEOF)
	in.buf = stream.NewInputBuffer(in.eof, c.bufferSize, c.buffering, c.blocking)
	in.mark = stream.NewMarkReader(in.buf)
	in.dec = stream.NewDecoder(in.mark, c.encoding)
	in.eol = stream.NewEOLReader(in.dec, c.inTrans, c.blocking)
	c.in = in
	return in, nil
}

// output returns the output pipeline, building it on first use. Closing the
// pipeline closes the backend.
func (c *Channel) output() (*output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out != nil {
		return c.out, nil
	}
	if c.closed.Load() {
		return nil, chanerrors.Closed(chanerrors.OpWrite, c.name)
	}
	w, err := c.backend.Writer()
	if err != nil {
		return nil, chanerrors.IO(chanerrors.OpWrite, c.name, err)
	}
	hooks := stream.WriterHooks{Close: c.closeBackend}
	if c.mode&ModeAppend != 0 {
		if sk, ok := c.backend.(Seeker); ok {
			hooks.BeforeWrite = func() error {
				end, err := sk.End()
				if err != nil {
					return err
				}
				return sk.SeekTo(end)
			}
		}
	}
	out := &output{}
	out.eof = stream.NewEOFWriter(w, c.outEOF)
	out.bg = stream.NewBackgroundWriter(out.eof, c.blocking, hooks)
	out.buf = stream.NewOutputBuffer(out.bg, c.bufferSize, c.buffering)
	out.enc = stream.NewEncoder(out.buf, c.encoding)
	out.eol = stream.NewEOLWriter(out.enc, c.outTrans)
	c.out = out
	return out, nil
}

func (c *Channel) closeBackend() error {
	err := c.backend.Close()
	if err != nil {
		Logger().Debug("backend close failed", zapChannel(c), zap.Error(err))
	}
	return err
}

// pipelines returns whatever has been built so far.
func (c *Channel) pipelines() (*input, *output) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.in, c.out
}
