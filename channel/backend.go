package channel

import (
	"io"

	"github.com/wippyai/chanio/stream"
)

// Backend is the byte source and sink under a channel.
//
// Reader and Writer are called at most once each, the first time the
// channel needs that direction. Close releases the backend; the channel
// calls it exactly once, after the output chain has been flushed.
type Backend interface {
	Type() string
	Reader() (stream.Source, error)
	Writer() (io.Writer, error)
	Close() error
}

// Seeker is implemented by backends with a file position.
type Seeker interface {
	// SeekTo moves to an absolute offset.
	SeekTo(pos int64) error
	Tell() (int64, error)
	// End returns the current size.
	End() (int64, error)
}

// Syncer is implemented by backends that can commit data to stable storage.
type Syncer interface {
	Sync() error
}

// Address describes one end of a socket.
type Address struct {
	Addr string
	Host string
	Port int
}

// SocketInfo is implemented by socket backends.
type SocketInfo interface {
	PeerName() (Address, error)
	SockName() (Address, error)
	// ConnectError returns the asynchronous connect failure, or "".
	ConnectError() string
}

// OutputTranslationDefaulter lets a backend choose what "auto" means for output.
type OutputTranslationDefaulter interface {
	DefaultOutputTranslation() stream.Translation
}

// Waiter is implemented by backends that must finish something before
// their first read or write, such as an asynchronous connect.
type Waiter interface {
	Ready() bool
}
