// Package socket provides TCP client and server channels.
package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/wippyai/chanio/channel"
	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

// DialOptions configures a client socket.
type DialOptions struct {
	// Async returns the channel before the connection is established.
	// Reads and writes wait for the connect to finish.
	Async bool

	// LocalAddr and LocalPort bind the local end when set.
	LocalAddr string
	LocalPort int

	// Translation is what "auto" output translation means; CRLF when unset.
	Translation stream.Translation

	Options []channel.Option
}

// Conn is a connected (or connecting) TCP socket backend.
type Conn struct {
	mu      sync.Mutex
	conn    net.Conn
	err     error
	closed  bool
	ready   chan struct{}
	cancel  context.CancelFunc
	outDflt stream.Translation
}

var (
	_ channel.Backend                    = (*Conn)(nil)
	_ channel.SocketInfo                 = (*Conn)(nil)
	_ channel.Waiter                     = (*Conn)(nil)
	_ channel.OutputTranslationDefaulter = (*Conn)(nil)
)

// Dial connects to host:port and returns a read-write channel.
func Dial(ctx context.Context, host string, port int, opts DialOptions) (*channel.Channel, error) {
	c, err := DialBackend(ctx, host, port, opts)
	if err != nil {
		return nil, err
	}
	return channel.New("", channel.ModeReadWrite, c, opts.Options...), nil
}

// DialBackend connects without wrapping the socket in a channel.
func DialBackend(ctx context.Context, host string, port int, opts DialOptions) (*Conn, error) {
	dialer := net.Dialer{}
	if opts.LocalAddr != "" || opts.LocalPort != 0 {
		local := net.JoinHostPort(opts.LocalAddr, strconv.Itoa(opts.LocalPort))
		addr, err := net.ResolveTCPAddr("tcp", local)
		if err != nil {
			return nil, connectError(err)
		}
		dialer.LocalAddr = addr
	}
	remote := net.JoinHostPort(host, strconv.Itoa(port))
	c := &Conn{ready: make(chan struct{}), outDflt: opts.Translation}

	if !opts.Async {
		conn, err := dialer.DialContext(ctx, "tcp", remote)
		if err != nil {
			return nil, connectError(err)
		}
		c.conn = conn
		close(c.ready)
		return c, nil
	}

	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	go func() {
		defer close(c.ready)
		conn, err := dialer.DialContext(dctx, "tcp", remote)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			if conn != nil {
				_ = conn.Close()
			}
			c.err = net.ErrClosed
			return
		}
		if err != nil {
			Logger().Debug("async connect failed", zap.String("remote", remote), zap.Error(err))
			c.err = err
			return
		}
		c.conn = conn
	}()
	return c, nil
}

func newAccepted(conn net.Conn, t stream.Translation) *Conn {
	c := &Conn{conn: conn, ready: make(chan struct{}), outDflt: t}
	close(c.ready)
	return c
}

func connectError(err error) error {
	return chanerrors.New(chanerrors.OpConnect, chanerrors.KindIO).
		Code(chanerrors.EIO).
		Detail("couldn't open socket: %s", reason(err)).
		Build()
}

// reason reduces a net error to the OS message, e.g. "connection refused".
func reason(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno.Error()
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "host is unreachable"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "connection timed out"
	}
	return err.Error()
}

func (c *Conn) Type() string { return "tcp" }

// Ready reports whether the connect attempt has finished, successfully or not.
func (c *Conn) Ready() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

// ConnectError returns the asynchronous connect failure, or "".
func (c *Conn) ConnectError() string {
	if !c.Ready() {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil || errors.Is(c.err, net.ErrClosed) {
		return ""
	}
	return reason(c.err)
}

func (c *Conn) DefaultOutputTranslation() stream.Translation {
	if c.outDflt == stream.Auto {
		return stream.CRLF
	}
	return c.outDflt
}

// wait blocks until the connect attempt is over.
func (c *Conn) wait() (net.Conn, error) {
	<-c.ready
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.conn, nil
}

func (c *Conn) Reader() (stream.Source, error) { return &connSource{c: c}, nil }

func (c *Conn) Writer() (io.Writer, error) { return connWriter{c: c}, nil }

// Close cancels a pending connect and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-c.ready
		c.mu.Lock()
		conn = c.conn
		c.mu.Unlock()
	}
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Conn) PeerName() (channel.Address, error) {
	conn, err := c.connected()
	if err != nil {
		return channel.Address{}, err
	}
	return address(conn.RemoteAddr())
}

func (c *Conn) SockName() (channel.Address, error) {
	conn, err := c.connected()
	if err != nil {
		return channel.Address{}, err
	}
	return address(conn.LocalAddr())
}

func (c *Conn) connected() (net.Conn, error) {
	if !c.Ready() {
		return nil, chanerrors.New(chanerrors.OpConfigure, chanerrors.KindNotConnected).
			Detail("socket is not connected").Build()
	}
	conn, err := c.wait()
	if err != nil {
		return nil, chanerrors.New(chanerrors.OpConfigure, chanerrors.KindNotConnected).
			Detail("socket is not connected").Cause(err).Build()
	}
	return conn, nil
}

// address resolves the host name of a, falling back to the numeric address.
func address(a net.Addr) (channel.Address, error) {
	tcp, ok := a.(*net.TCPAddr)
	if !ok {
		return channel.Address{}, fmt.Errorf("unexpected address type %T", a)
	}
	ip := tcp.IP.String()
	host := ip
	if names, err := net.LookupAddr(ip); err == nil && len(names) > 0 {
		host = strings.TrimSuffix(names[0], ".")
	}
	return channel.Address{Addr: ip, Host: host, Port: tcp.Port}, nil
}

type connSource struct {
	c *Conn
}

func (s *connSource) Read(p []byte) (int, error) {
	conn, err := s.c.wait()
	if err != nil {
		return 0, err
	}
	return conn.Read(p)
}

// Available reports nothing until connected, then asks the descriptor.
func (s *connSource) Available() (int, error) {
	if !s.c.Ready() {
		return 0, nil
	}
	conn, err := s.c.wait()
	if err != nil {
		return 0, nil
	}
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return 0, nil
	}
	return stream.FDAvailable(rc)
}

type connWriter struct {
	c *Conn
}

func (w connWriter) Write(p []byte) (int, error) {
	conn, err := w.c.wait()
	if err != nil {
		return 0, err
	}
	return conn.Write(p)
}
