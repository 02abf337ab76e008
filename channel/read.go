package channel

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

// ReadKind selects how much a Read consumes.
type ReadKind uint8

const (
	// ReadAll reads until end of file, or until no more input is ready on
	// a non-blocking channel.
	ReadAll ReadKind = iota
	// ReadLine reads one line and drops its terminator.
	ReadLine
	// ReadChars reads up to n characters, or bytes on a raw channel.
	ReadChars
)

const readChunk = 8192

// Read reads according to kind. It returns the data, the number of
// characters read, and -1 in place of the count when nothing was read
// because of end of file or, for lines, because no complete line was ready.
func (c *Channel) Read(ctx context.Context, kind ReadKind, n int) (string, int, error) {
	release, err := c.acquire(OwnerFrom(ctx), DirRead, chanerrors.OpRead)
	if err != nil {
		return "", 0, err
	}
	defer release()

	if err := c.checkRead(); err != nil {
		return "", 0, err
	}
	in, err := c.input()
	if err != nil {
		return "", 0, err
	}

	c.mu.Lock()
	c.encChanged = false
	eofSeen := c.eofSeen
	blocking := c.blocking
	raw := c.encoding == nil && (c.inTrans == stream.Binary || c.inTrans == stream.LF)
	c.mu.Unlock()

	if eofSeen {
		return "", -1, nil
	}

	if kind == ReadLine {
		return c.readLine(ctx, in, blocking)
	}
	if kind == ReadAll {
		n = math.MaxInt
	}
	if n <= 0 {
		return "", 0, nil
	}
	if raw {
		return c.readBytes(ctx, in, n, blocking)
	}
	return c.readRunes(ctx, in, n, blocking)
}

// Gets reads one line.
func (c *Channel) Gets(ctx context.Context) (string, int, error) {
	return c.Read(ctx, ReadLine, 0)
}

// ReadAll reads everything available.
func (c *Channel) ReadAll(ctx context.Context) (string, int, error) {
	return c.Read(ctx, ReadAll, 0)
}

// ReadN reads up to n characters.
func (c *Channel) ReadN(ctx context.Context, n int) (string, int, error) {
	return c.Read(ctx, ReadChars, n)
}

func (c *Channel) readLine(ctx context.Context, in *input, blocking bool) (string, int, error) {
	var sb strings.Builder
	status, err := in.eol.ReadLine(ctx, &sb, blocking)
	if err != nil {
		return "", 0, c.readError(err)
	}
	switch status {
	case stream.LineComplete:
		c.setEOF(in.eol.EOF())
		s := sb.String()
		return s, utf8.RuneCountInString(s), nil
	case stream.LineEOF:
		c.setEOF(true)
	default:
		c.noteShortRead(in)
	}
	return "", -1, nil
}

func (c *Channel) readBytes(ctx context.Context, in *input, n int, blocking bool) (string, int, error) {
	buf := make([]byte, min(n, readChunk))
	var sb strings.Builder
	total := 0
	eof := false
	for total < n {
		cnt, err := in.mark.Read(ctx, buf[:min(len(buf), n-total)])
		if cnt > 0 {
			// raw bytes map to characters one to one
			for _, b := range buf[:cnt] {
				sb.WriteRune(rune(b))
			}
			total += cnt
		}
		if err == io.EOF {
			eof = true
			break
		}
		if err != nil {
			return sb.String(), total, c.readError(err)
		}
		if cnt == 0 && !blocking {
			c.noteShortRead(in)
			break
		}
	}
	return c.finishRead(sb.String(), total, eof)
}

func (c *Channel) readRunes(ctx context.Context, in *input, n int, blocking bool) (string, int, error) {
	buf := make([]rune, min(n, readChunk))
	var sb strings.Builder
	total := 0
	eof := false
	for total < n {
		cnt, err := in.eol.Read(ctx, buf[:min(len(buf), n-total)])
		for _, r := range buf[:cnt] {
			sb.WriteRune(r)
		}
		total += cnt
		if err == io.EOF {
			eof = true
			break
		}
		if err != nil {
			return sb.String(), total, c.readError(err)
		}
		if cnt == 0 && !blocking {
			c.noteShortRead(in)
			break
		}
	}
	return c.finishRead(sb.String(), total, eof)
}

func (c *Channel) finishRead(s string, total int, eof bool) (string, int, error) {
	if eof {
		c.setEOF(true)
		if total == 0 {
			return "", -1, nil
		}
	}
	return s, total, nil
}

func (c *Channel) setEOF(eof bool) {
	c.mu.Lock()
	c.eofSeen = eof
	c.mu.Unlock()
}

// noteShortRead handles a non-blocking read that returned nothing. On a
// seekable backend positioned at its end with nothing buffered, that is
// end of file even though no read saw it.
func (c *Channel) noteShortRead(in *input) {
	sk, ok := c.backend.(Seeker)
	if !ok || in.buf.Remaining() > 0 || in.mark.Buffered() > 0 {
		return
	}
	pos, err := sk.Tell()
	if err != nil {
		return
	}
	end, err := sk.End()
	if err != nil {
		return
	}
	if pos >= end {
		c.setEOF(true)
	}
}

func (c *Channel) readError(err error) error {
	var ce *chanerrors.Error
	switch {
	case errors.As(err, &ce):
		return err
	case errors.Is(err, stream.ErrBufferClosed):
		return chanerrors.Closed(chanerrors.OpRead, c.Name())
	default:
		return chanerrors.IO(chanerrors.OpRead, c.Name(), err)
	}
}
