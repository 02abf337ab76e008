// Package memory provides channels over in-memory byte arrays.
package memory

import (
	"bytes"
	"io"
	"sync"

	"github.com/wippyai/chanio/channel"
	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

const chanType = "bytearray"

// Reader is a read-only backend over a fixed byte slice.
type Reader struct {
	src *stream.ByteSource
}

// NewReader returns a read-only channel over data. The channel reads raw
// bytes unless opts choose an encoding. data is not copied.
func NewReader(data []byte, opts ...channel.Option) *channel.Channel {
	opts = append([]channel.Option{channel.WithEncoding(nil)}, opts...)
	return channel.New("", channel.ModeRead, &Reader{src: stream.NewByteSource(data)}, opts...)
}

func (r *Reader) Type() string                   { return chanType }
func (r *Reader) Reader() (stream.Source, error) { return r.src, nil }

func (r *Reader) Writer() (io.Writer, error) {
	return nil, chanerrors.Unsupported(chanerrors.OpWrite, "byte array channel is read-only")
}

func (r *Reader) Close() error { return nil }

// Writer is a write-only backend that collects everything written to it.
// It is also a plain io.Writer, safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewWriter returns a write-only channel and the sink behind it.
func NewWriter(opts ...channel.Option) (*channel.Channel, *Writer) {
	w := &Writer{}
	return channel.New("", channel.ModeWrite, w, opts...), w
}

func (w *Writer) Type() string { return chanType }

func (w *Writer) Reader() (stream.Source, error) {
	return nil, chanerrors.Unsupported(chanerrors.OpRead, "byte array channel is write-only")
}

func (w *Writer) Writer() (io.Writer, error) { return w, nil }

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

// Bytes returns a copy of the collected bytes.
func (w *Writer) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return bytes.Clone(w.buf.Bytes())
}

func (w *Writer) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Len()
}

// Close keeps the collected bytes readable.
func (w *Writer) Close() error { return nil }
