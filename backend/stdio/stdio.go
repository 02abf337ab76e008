// Package stdio provides channels over the process's standard streams.
package stdio

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/wippyai/chanio/channel"
	"github.com/wippyai/chanio/stream"
)

// Backend wraps a descriptor the process does not own. Closing the channel
// leaves the descriptor open.
type Backend struct {
	f   *os.File
	tty bool
}

var _ channel.Backend = (*Backend)(nil)

// New returns a channel over f. buffering is the default for the stream;
// opts may override it.
func New(name string, f *os.File, mode channel.Mode, buffering stream.Buffering, opts ...channel.Option) *channel.Channel {
	b := &Backend{f: f, tty: term.IsTerminal(int(f.Fd()))}
	opts = append([]channel.Option{channel.WithBuffering(buffering)}, opts...)
	return channel.New(name, mode, b, opts...)
}

// Stdin is line buffered.
func Stdin(opts ...channel.Option) *channel.Channel {
	return New("stdin", os.Stdin, channel.ModeRead, stream.Line, opts...)
}

// Stdout is line buffered.
func Stdout(opts ...channel.Option) *channel.Channel {
	return New("stdout", os.Stdout, channel.ModeWrite, stream.Line, opts...)
}

// Stderr is unbuffered.
func Stderr(opts ...channel.Option) *channel.Channel {
	return New("stderr", os.Stderr, channel.ModeWrite, stream.None, opts...)
}

// Type is "tty" for terminals and "file" otherwise.
func (b *Backend) Type() string {
	if b.tty {
		return "tty"
	}
	return "file"
}

// IsTerminal reports whether the descriptor is a terminal.
func (b *Backend) IsTerminal() bool { return b.tty }

func (b *Backend) Reader() (stream.Source, error) { return stream.NewSource(b.f), nil }
func (b *Backend) Writer() (io.Writer, error)     { return b.f, nil }

func (b *Backend) Close() error { return nil }
