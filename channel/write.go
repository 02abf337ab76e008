package channel

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

// WriteString writes s through the end-of-line translation and encoding.
func (c *Channel) WriteString(ctx context.Context, s string) error {
	release, out, err := c.beginWrite(ctx, chanerrors.OpWrite)
	if err != nil {
		return err
	}
	defer release()

	if err := out.eol.WriteString(s); err != nil {
		return c.writeError(chanerrors.OpWrite, err)
	}
	return nil
}

// WriteBytes writes p. On a raw channel without translation the bytes go
// straight to the output buffer. On an encoded channel p must be valid
// UTF-8; it is decoded and re-encoded with the channel encoding.
func (c *Channel) WriteBytes(ctx context.Context, p []byte) error {
	release, out, err := c.beginWrite(ctx, chanerrors.OpWrite)
	if err != nil {
		return err
	}
	defer release()

	c.mu.Lock()
	enc, trans := c.encoding, c.outTrans
	c.mu.Unlock()

	if enc == nil && (trans == stream.Binary || trans == stream.LF) {
		if _, err := out.buf.Write(p); err != nil {
			return c.writeError(chanerrors.OpWrite, err)
		}
		return nil
	}

	var s string
	if enc != nil {
		if !utf8.Valid(p) {
			return chanerrors.New(chanerrors.OpWrite, chanerrors.KindInvalidArgument).
				Channel(c.Name()).
				Code(chanerrors.EINVAL).
				Detail("error writing %q: invalid argument", c.Name()).
				Build()
		}
		s = string(p)
	} else {
		var sb strings.Builder
		sb.Grow(len(p))
		for _, b := range p {
			sb.WriteRune(rune(b))
		}
		s = sb.String()
	}
	if err := out.eol.WriteString(s); err != nil {
		return c.writeError(chanerrors.OpWrite, err)
	}
	return nil
}

// Flush pushes buffered output to the backend. A blocking channel waits
// for the backend write; a non-blocking one only queues it.
func (c *Channel) Flush(ctx context.Context) error {
	if err := c.checkWrite(); err != nil {
		return err
	}
	release, err := c.acquire(OwnerFrom(ctx), DirWrite, chanerrors.OpFlush)
	if err != nil {
		return err
	}
	defer release()

	_, out := c.pipelines()
	if out == nil {
		return nil
	}
	if err := out.buf.Flush(); err != nil {
		return c.writeError(chanerrors.OpFlush, err)
	}
	return nil
}

// Sync flushes and commits written data to stable storage when the
// backend supports it.
func (c *Channel) Sync(ctx context.Context) error {
	if err := c.Flush(ctx); err != nil {
		return err
	}
	s, ok := c.backend.(Syncer)
	if !ok {
		return nil
	}
	if err := s.Sync(); err != nil {
		return c.writeError(chanerrors.OpFlush, err)
	}
	return nil
}

func (c *Channel) beginWrite(ctx context.Context, op chanerrors.Op) (func(), *output, error) {
	release, err := c.acquire(OwnerFrom(ctx), DirWrite, op)
	if err != nil {
		return nil, nil, err
	}
	if err := c.checkWrite(); err != nil {
		release()
		return nil, nil, err
	}
	out, err := c.output()
	if err != nil {
		release()
		return nil, nil, err
	}
	return release, out, nil
}

func (c *Channel) writeError(op chanerrors.Op, err error) error {
	var ce *chanerrors.Error
	switch {
	case errors.As(err, &ce):
		return err
	case errors.Is(err, stream.ErrWriterClosed):
		return chanerrors.Closed(op, c.Name())
	default:
		return chanerrors.IO(op, c.Name(), err)
	}
}
