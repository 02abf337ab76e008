package channel

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	chanerrors "github.com/wippyai/chanio/errors"
)

// Close tears the channel down: the refiller stops, buffered output is
// flushed and the backend is closed. Every step runs even if an earlier
// one failed. On a non-blocking channel the final flush and backend close
// finish in the background. Closing twice reports a closed error.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return chanerrors.Closed(chanerrors.OpClose, c.Name())
	}
	in, out := c.pipelines()

	var err error
	if in != nil {
		err = multierr.Append(err, in.buf.Close())
	}
	if out != nil {
		err = multierr.Append(err, out.eol.Close())
	} else {
		err = multierr.Append(err, c.closeBackend())
	}
	if err != nil {
		Logger().Debug("close failed", zapChannel(c), zap.Error(err))
		if errs := multierr.Errors(err); len(errs) == 1 {
			if ce, ok := errs[0].(*chanerrors.Error); ok {
				// child status and similar errors carry their own message
				return ce
			}
		}
		return chanerrors.IO(chanerrors.OpClose, c.Name(), err)
	}
	return nil
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done returns a channel that is closed once the output side has released
// the backend. It is already closed for channels that never wrote.
func (c *Channel) Done() <-chan struct{} {
	_, out := c.pipelines()
	if out == nil {
		return closedDone
	}
	return out.bg.Done()
}
