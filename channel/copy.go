package channel

import (
	"context"
	"io"

	"go.uber.org/zap"

	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

// Poster delivers work onto the goroutine that owns the channels, usually
// an event queue.
type Poster interface {
	Post(fn func())
}

// CopyDone receives the result of an asynchronous copy: the number of bytes
// written to the destination and the error that stopped the copy, if any.
type CopyDone func(written int64, err error)

type copier struct {
	src, dst *Channel
	limit    int64
	owner    Owner

	srcBlocking, dstBlocking   bool
	srcBuffering, dstBuffering stream.Buffering
	bytes                      bool
	utf8In, utf8Out            bool
	bufSize                    int

	written int64
}

// Copy moves data from src to dst until end of file or until limit bytes
// have been written; a negative limit means no limit. Both channels run
// blocking for the duration and full buffering is switched off; their
// settings are restored afterwards. Text is re-encoded unless both sides
// share encoding and translation.
func Copy(ctx context.Context, src, dst *Channel, limit int64) (int64, error) {
	cp, err := newCopier(src, dst, limit, OwnerFrom(ctx))
	if err != nil {
		return 0, err
	}
	if err := cp.acquire(); err != nil {
		return 0, err
	}
	defer cp.release()

	if err := cp.setup(); err != nil {
		cp.restore()
		return 0, err
	}
	err = cp.run(ctx)
	cp.restore()
	return cp.written, err
}

// CopyAsync starts a copy on its own goroutine and returns at once. Both
// directions stay claimed until it finishes, so other reads of src and
// writes of dst fail as busy. done is posted through p unless either
// channel was closed in the meantime.
func CopyAsync(p Poster, src, dst *Channel, limit int64, done CopyDone) error {
	cp, err := newCopier(src, dst, limit, NewOwner())
	if err != nil {
		return err
	}
	if err := cp.acquire(); err != nil {
		return err
	}

	Logger().Debug("copy started",
		zap.String("src", src.Name()), zap.String("dst", dst.Name()), zap.Int64("limit", limit))

	go func() {
		err := cp.setup()
		if err == nil {
			err = cp.run(context.Background())
		}
		cp.restore()
		cp.release()

		Logger().Debug("copy finished",
			zap.String("src", src.Name()), zap.String("dst", dst.Name()),
			zap.Int64("written", cp.written), zap.Error(err))

		if src.Closed() || dst.Closed() || done == nil {
			return
		}
		written := cp.written
		p.Post(func() { done(written, err) })
	}()
	return nil
}

func newCopier(src, dst *Channel, limit int64, owner Owner) (*copier, error) {
	if err := src.checkRead(); err != nil {
		return nil, err
	}
	if err := dst.checkWrite(); err != nil {
		return nil, err
	}
	return &copier{src: src, dst: dst, limit: limit, owner: owner}, nil
}

func (cp *copier) acquire() error {
	if !cp.src.own.tryAcquire(DirRead, cp.owner) {
		return chanerrors.Busy(chanerrors.OpCopy, cp.src.Name())
	}
	if !cp.dst.own.tryAcquire(DirWrite, cp.owner) {
		cp.src.own.release(DirRead, cp.owner)
		return chanerrors.Busy(chanerrors.OpCopy, cp.dst.Name())
	}
	return nil
}

func (cp *copier) release() {
	cp.src.own.release(DirRead, cp.owner)
	cp.dst.own.release(DirWrite, cp.owner)
}

func (cp *copier) setup() error {
	if _, err := cp.src.input(); err != nil {
		return err
	}
	if _, err := cp.dst.output(); err != nil {
		return err
	}

	cp.srcBlocking, cp.dstBlocking = cp.src.Blocking(), cp.dst.Blocking()
	cp.src.SetBlocking(true)
	cp.dst.SetBlocking(true)

	cp.srcBuffering, cp.dstBuffering = cp.src.Buffering(), cp.dst.Buffering()
	if cp.srcBuffering == stream.Full {
		cp.src.SetBuffering(stream.None)
	}
	if cp.dstBuffering == stream.Full {
		cp.dst.SetBuffering(stream.None)
	}

	srcEnc, dstEnc := cp.src.Encoding(), cp.dst.Encoding()
	cp.bytes = srcEnc.Same(dstEnc) && cp.src.InputTranslation() == cp.dst.OutputTranslation()
	switch {
	case srcEnc != nil && dstEnc == nil:
		cp.utf8Out = true
		cp.dst.SetEncoding(stream.MustEncoding("utf-8"))
	case srcEnc == nil && dstEnc != nil:
		cp.utf8In = true
		cp.src.SetEncoding(stream.MustEncoding("utf-8"))
	}

	cp.bufSize = cp.src.BufferSize()
	if cp.srcBuffering == stream.None || cp.bufSize == 0 {
		cp.bufSize = 1
	}
	return nil
}

func (cp *copier) restore() {
	cp.src.SetBlocking(cp.srcBlocking)
	cp.dst.SetBlocking(cp.dstBlocking)
	cp.src.SetBuffering(cp.srcBuffering)
	cp.dst.SetBuffering(cp.dstBuffering)
	if cp.utf8Out {
		cp.dst.SetEncoding(nil)
	}
	if cp.utf8In {
		cp.src.SetEncoding(nil)
	}
}

func (cp *copier) run(ctx context.Context) error {
	in, _ := cp.src.pipelines()
	_, out := cp.dst.pipelines()
	start := out.buf.Received()

	var (
		bbuf []byte
		cbuf []rune
	)
	if cp.bytes {
		bbuf = make([]byte, cp.bufSize)
	} else {
		cbuf = make([]rune, cp.bufSize)
	}

	for !cp.src.EOF() {
		size := cp.bufSize
		if cp.limit >= 0 {
			remaining := cp.limit - cp.written
			if remaining <= 0 {
				break
			}
			if !cp.bytes && remaining <= 16 {
				// a character may encode to several bytes; go one at a time
				remaining = 1
			}
			size = int(min(remaining, int64(size)))
		}
		if cp.src.Closed() {
			break
		}

		var (
			n   int
			err error
		)
		if cp.bytes {
			n, err = in.mark.Read(ctx, bbuf[:size])
		} else {
			n, err = in.eol.Read(ctx, cbuf[:size])
		}
		if err == io.EOF {
			cp.src.setEOF(true)
			break
		}
		if err != nil {
			return cp.src.readError(err)
		}
		if cp.dst.Closed() {
			break
		}
		if cp.bytes {
			_, err = out.buf.Write(bbuf[:n])
		} else {
			err = out.eol.WriteString(string(cbuf[:n]))
		}
		if err != nil {
			return cp.dst.writeError(chanerrors.OpCopy, err)
		}
		cp.written = out.buf.Received() - start
	}
	if cp.dst.Closed() {
		return nil
	}
	if err := out.buf.Flush(); err != nil {
		return cp.dst.writeError(chanerrors.OpCopy, err)
	}
	return nil
}
