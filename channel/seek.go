package channel

import (
	"context"
	"errors"
	"io"

	chanerrors "github.com/wippyai/chanio/errors"
)

// Seek moves the channel position. whence is io.SeekStart, io.SeekCurrent
// or io.SeekEnd. Buffered input is discarded and buffered output flushed
// first; a relative seek accounts for the input that was discarded.
// Seeking is refused while both directions hold buffered data.
func (c *Channel) Seek(ctx context.Context, offset int64, whence int) error {
	who := OwnerFrom(ctx)
	releaseRead, err := c.acquire(who, DirRead, chanerrors.OpSeek)
	if err != nil {
		return err
	}
	defer releaseRead()
	releaseWrite, err := c.acquire(who, DirWrite, chanerrors.OpSeek)
	if err != nil {
		return err
	}
	defer releaseWrite()

	if err := c.checkOpen(chanerrors.OpSeek); err != nil {
		return err
	}
	sk, ok := c.backend.(Seeker)
	if !ok {
		return chanerrors.Seek(c.Name(), chanerrors.EINVAL, nil)
	}
	if whence != io.SeekStart && whence != io.SeekCurrent && whence != io.SeekEnd {
		return chanerrors.Seek(c.Name(), chanerrors.EINVAL, nil)
	}

	in, out := c.pipelines()
	if in != nil {
		if err := in.buf.WaitIdle(ctx); err != nil {
			return c.readError(err)
		}
	}
	inBuffered, outBuffered := buffered(in, out)
	if inBuffered > 0 && outBuffered > 0 {
		return chanerrors.Seek(c.Name(), chanerrors.EFAULT, nil)
	}
	if whence == io.SeekCurrent {
		offset -= int64(inBuffered)
	}

	if in != nil {
		in.eof.SeekReset()
		in.buf.SeekReset()
		in.mark.SeekReset()
		in.dec.SeekReset()
		in.eol.SeekReset()
	}
	if out != nil {
		c.mu.Lock()
		blocking := c.blocking
		c.mu.Unlock()
		out.bg.SetBlocking(true)
		err := out.buf.Flush()
		out.bg.SetBlocking(blocking)
		if err != nil {
			return c.writeError(chanerrors.OpSeek, err)
		}
	}

	var base int64
	switch whence {
	case io.SeekCurrent:
		if base, err = sk.Tell(); err != nil {
			return c.seekError(err)
		}
	case io.SeekEnd:
		if base, err = sk.End(); err != nil {
			return c.seekError(err)
		}
	}
	target := base + offset
	if target < 0 {
		return chanerrors.Seek(c.Name(), chanerrors.EINVAL, nil)
	}
	if err := sk.SeekTo(target); err != nil {
		return c.seekError(err)
	}
	c.setEOF(false)
	return nil
}

// Tell returns the logical position: the backend position less unread
// input, or plus unflushed output. It returns -1 when the channel cannot
// seek or both directions hold buffered data.
func (c *Channel) Tell() int64 {
	sk, ok := c.backend.(Seeker)
	if !ok || c.closed.Load() {
		return -1
	}
	in, out := c.pipelines()
	inBuffered, outBuffered := buffered(in, out)
	if inBuffered > 0 && outBuffered > 0 {
		return -1
	}
	pos, err := sk.Tell()
	if err != nil {
		return -1
	}
	if inBuffered > 0 {
		return pos - int64(inBuffered)
	}
	return pos + int64(outBuffered)
}

// buffered counts bytes taken from the backend but not yet delivered,
// at every input stage, and bytes written but not yet flushed.
func buffered(in *input, out *output) (inBuffered, outBuffered int) {
	if in != nil {
		inBuffered = in.eof.Held() + in.buf.Remaining() + in.mark.Buffered() + in.dec.CarryBytes()
	}
	if out != nil {
		outBuffered = out.buf.Buffered()
	}
	return inBuffered, outBuffered
}

// seekError names the channel in backend seek failures. A backend may
// return a bare *chanerrors.Error carrying only the POSIX code.
func (c *Channel) seekError(err error) error {
	var ce *chanerrors.Error
	if errors.As(err, &ce) && ce.Code != "" {
		return chanerrors.Seek(c.Name(), ce.Code, ce.Cause)
	}
	return chanerrors.Seek(c.Name(), chanerrors.EINVAL, err)
}
