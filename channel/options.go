package channel

import (
	"github.com/wippyai/chanio/config"
	"github.com/wippyai/chanio/stream"
)

type settings struct {
	blocking   bool
	buffering  stream.Buffering
	bufferSize int
	encoding   *stream.Encoding
	inTrans    stream.Translation
	outTrans   stream.Translation
	inEOF      byte
	outEOF     byte
}

func defaultSettings() settings {
	return settings{
		blocking:   true,
		buffering:  stream.Full,
		bufferSize: stream.DefaultBufferSize,
		encoding:   stream.MustEncoding(stream.SystemEncoding),
		inTrans:    stream.Auto,
		outTrans:   stream.Auto,
	}
}

// Option adjusts the initial settings of a channel.
type Option func(*settings)

func WithBlocking(blocking bool) Option {
	return func(s *settings) { s.blocking = blocking }
}

func WithBuffering(b stream.Buffering) Option {
	return func(s *settings) { s.buffering = b }
}

// WithBufferSize is ignored outside [stream.MinBufferSize, stream.MaxBufferSize].
func WithBufferSize(n int) Option {
	return func(s *settings) {
		if n >= stream.MinBufferSize && n <= stream.MaxBufferSize {
			s.bufferSize = n
		}
	}
}

// WithEncoding sets the text encoding; nil means raw bytes.
func WithEncoding(e *stream.Encoding) Option {
	return func(s *settings) { s.encoding = e }
}

// WithTranslation sets the input and output end-of-line translations.
// Binary on either side also selects the raw encoding.
func WithTranslation(in, out stream.Translation) Option {
	return func(s *settings) {
		s.inTrans, s.outTrans = in, out
		if in == stream.Binary || out == stream.Binary {
			s.encoding = nil
		}
	}
}

func WithEOFChar(in, out byte) Option {
	return func(s *settings) { s.inEOF, s.outEOF = in, out }
}

// FromConfig turns configured defaults into options. Unknown names in the
// defaults are skipped; config.Validate reports them.
func FromConfig(d config.ChannelDefaults) []Option {
	opts := []Option{WithBlocking(d.Blocking)}
	if b, ok := stream.ParseBuffering(d.Buffering); ok {
		opts = append(opts, WithBuffering(b))
	}
	if d.BufferSize > 0 {
		opts = append(opts, WithBufferSize(d.BufferSize))
	}
	if d.Encoding != "" {
		if e, err := stream.LookupEncoding(d.Encoding); err == nil {
			opts = append(opts, WithEncoding(e))
		}
	}
	in, okIn := stream.ParseTranslation(d.InputTranslation)
	out, okOut := stream.ParseTranslation(d.OutputTranslation)
	if okIn || okOut {
		if !okIn {
			in = stream.Auto
		}
		if !okOut {
			out = stream.Auto
		}
		opts = append(opts, WithTranslation(in, out))
	}
	return opts
}
