// Package wrapped exposes an externally owned io.Reader, such as an embedded
// resource, as a read-only channel.
package wrapped

import (
	"io"

	"github.com/wippyai/chanio/channel"
	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

// Backend reads from a reader it does not own.
type Backend struct {
	src stream.Source
}

// New returns a read-only channel named name over r. Closing the channel
// leaves r open.
func New(name string, r io.Reader, opts ...channel.Option) *channel.Channel {
	return channel.New(name, channel.ModeRead, &Backend{src: stream.NewSource(r)}, opts...)
}

func (b *Backend) Type() string                   { return "resource" }
func (b *Backend) Reader() (stream.Source, error) { return b.src, nil }

func (b *Backend) Writer() (io.Writer, error) {
	return nil, chanerrors.Unsupported(chanerrors.OpWrite, "resource channel is read-only")
}

func (b *Backend) Close() error { return nil }
