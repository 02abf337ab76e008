// Package host is the owner of a set of channels: the event queue they post
// to, the table that names them and their readiness callbacks.
package host

import (
	"context"
	"io"
	"os"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/chanio/backend/file"
	"github.com/wippyai/chanio/backend/memory"
	"github.com/wippyai/chanio/backend/pipeline"
	"github.com/wippyai/chanio/backend/socket"
	"github.com/wippyai/chanio/backend/stdio"
	"github.com/wippyai/chanio/backend/wrapped"
	"github.com/wippyai/chanio/channel"
	"github.com/wippyai/chanio/config"
	"github.com/wippyai/chanio/event"
	"github.com/wippyai/chanio/fileevent"
	"github.com/wippyai/chanio/registry"
	"github.com/wippyai/chanio/stream"
)

// Host owns channels on behalf of one interpreter-like user. Events,
// fileevent callbacks and async copy completions run on whichever
// goroutine drives Queue.
type Host struct {
	Config   config.Config
	Queue    *event.Queue
	Channels *registry.Table
	Events   *fileevent.Registry

	opts        []channel.Option
	socketTrans stream.Translation
	unsubscribe func()
}

// Option configures a Host.
type Option func(*hostOptions)

type hostOptions struct {
	std      []*channel.Channel
	queueOpt []event.Option
}

// WithStdChannels replaces the process stdio channels.
func WithStdChannels(stdin, stdout, stderr *channel.Channel) Option {
	return func(o *hostOptions) { o.std = []*channel.Channel{stdin, stdout, stderr} }
}

// WithErrorHandler sets where background errors go.
func WithErrorHandler(h event.ErrorHandler) Option {
	return func(o *hostOptions) { o.queueOpt = append(o.queueOpt, event.WithErrorHandler(h)) }
}

// New creates a host and registers the standard channels.
func New(cfg config.Config, opts ...Option) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := stream.LookupEncoding(cfg.Channel.Encoding); err != nil {
		return nil, err
	}
	socketTrans, _ := stream.ParseTranslation(cfg.Runtime.SocketTranslation)

	var o hostOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.std == nil {
		o.std = []*channel.Channel{stdio.Stdin(), stdio.Stdout(), stdio.Stderr()}
	}

	q := event.New(o.queueOpt...)
	h := &Host{
		Config:      cfg,
		Queue:       q,
		Channels:    registry.New(),
		Events:      fileevent.New(q, cfg.Runtime.FileEventDelay),
		opts:        channel.FromConfig(cfg.Channel),
		socketTrans: socketTrans,
	}
	// a dropped channel loses its readiness callbacks
	h.unsubscribe = h.Channels.Subscribe(registry.ObserverFunc(func(e registry.Event) {
		if e.Type == registry.EventDropped {
			h.Events.DisposeChannel(e.Channel)
		}
	}))
	for _, ch := range o.std {
		if _, err := h.Channels.Register(ch); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// ChannelOptions returns the options derived from the configured defaults.
func (h *Host) ChannelOptions() []channel.Option {
	return append([]channel.Option(nil), h.opts...)
}

func (h *Host) register(ch *channel.Channel, prefix string) (*channel.Channel, error) {
	ch.SetName(h.Channels.NextName(prefix))
	if _, err := h.Channels.Register(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

// OpenFile opens path with an access string such as "r", "a+" or
// "WRONLY CREAT".
func (h *Host) OpenFile(path, access string, perm os.FileMode) (*channel.Channel, error) {
	mode, err := channel.ParseAccess(access)
	if err != nil {
		return nil, err
	}
	ch, err := file.Open(path, mode, perm, h.opts...)
	if err != nil {
		return nil, err
	}
	return h.register(ch, "file")
}

// Dial opens a client socket. With async set it returns before the
// connection is established.
func (h *Host) Dial(ctx context.Context, host string, port int, async bool) (*channel.Channel, error) {
	ch, err := socket.Dial(ctx, host, port, socket.DialOptions{
		Async:       async,
		Translation: h.socketTrans,
		Options:     h.opts,
	})
	if err != nil {
		return nil, err
	}
	return h.register(ch, "sock")
}

// AcceptFunc is called on the queue goroutine for every accepted connection.
type AcceptFunc func(ch *channel.Channel, addr string, port int)

// Listen opens a server socket. Connections are registered and handed to
// onAccept as events.
func (h *Host) Listen(host string, port int, onAccept AcceptFunc) (*channel.Channel, error) {
	ch, err := socket.Listen(host, port, socket.ServerOptions{
		Poster: h.Queue,
		Register: func(c *channel.Channel) error {
			_, err := h.register(c, "sock")
			return err
		},
		OnAccept:     onAccept,
		PollInterval: h.Config.Runtime.AcceptPollInterval,
		Translation:  h.socketTrans,
		Options:      h.opts,
	})
	if err != nil {
		return nil, err
	}
	return h.register(ch, "sock")
}

// OpenPipeline starts argv; access selects which of its standard streams
// the channel connects to.
func (h *Host) OpenPipeline(argv []string, access string) (*channel.Channel, error) {
	mode, err := channel.ParseAccess(access)
	if err != nil {
		return nil, err
	}
	ch, err := pipeline.Open(argv, mode&channel.ModeReadWrite, pipeline.Options{Channel: h.opts})
	if err != nil {
		return nil, err
	}
	return h.register(ch, "file")
}

// OpenBytes returns a read-only channel over data.
func (h *Host) OpenBytes(data []byte) (*channel.Channel, error) {
	return h.register(memory.NewReader(data), "bytearray")
}

// CollectBytes returns a write-only channel and the sink it writes to.
func (h *Host) CollectBytes() (*channel.Channel, *memory.Writer, error) {
	ch, w := memory.NewWriter(h.opts...)
	ch, err := h.register(ch, "bytearray")
	return ch, w, err
}

// OpenResource wraps r without taking ownership of it.
func (h *Host) OpenResource(r io.Reader) (*channel.Channel, error) {
	return h.register(wrapped.New("", r, h.opts...), "resource")
}

// Get returns the channel named name.
func (h *Host) Get(name string) (*channel.Channel, error) {
	return h.Channels.Lookup(name)
}

// CloseChannel unregisters the named channel, closing it when no other
// table holds it.
func (h *Host) CloseChannel(name string) error {
	ch, err := h.Channels.Lookup(name)
	if err != nil {
		return err
	}
	return h.Channels.Unregister(ch)
}

// Copy runs a synchronous copy.
func (h *Host) Copy(ctx context.Context, src, dst *channel.Channel, limit int64) (int64, error) {
	return channel.Copy(ctx, src, dst, limit)
}

// CopyAsync starts a background copy whose completion runs on the queue.
func (h *Host) CopyAsync(src, dst *channel.Channel, limit int64, done channel.CopyDone) error {
	return channel.CopyAsync(h.Queue, src, dst, limit, done)
}

// Run drives the event queue until ctx ends.
func (h *Host) Run(ctx context.Context) error {
	return h.Queue.Run(ctx)
}

// Close flushes pending output, drops every callback and closes all
// channels in parallel.
func (h *Host) Close() error {
	ctx := context.Background()
	h.Channels.FlushAll(ctx)
	h.Events.Close()
	h.Queue.Close()

	var g errgroup.Group
	for _, name := range h.Channels.Names("") {
		ch, ok := h.Channels.Get(name)
		if !ok {
			continue
		}
		g.Go(func() error { return h.Channels.Unregister(ch) })
	}
	err := g.Wait()
	h.unsubscribe()
	return multierr.Append(err, h.Channels.Close())
}
