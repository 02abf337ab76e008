package socket

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/chanio/channel"
	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

// DefaultPollInterval bounds how long accept blocks between checks for a
// closed server.
const DefaultPollInterval = 500 * time.Millisecond

// ServerOptions configures a listening socket.
type ServerOptions struct {
	// Poster runs accept events on the owner's event loop. Without one,
	// connections are handled on the accept goroutine.
	Poster channel.Poster

	// Register names and records each accepted channel. A failing
	// Register closes the connection.
	Register func(*channel.Channel) error

	// OnAccept is called with the new channel and the peer address.
	OnAccept func(ch *channel.Channel, addr string, port int)

	PollInterval time.Duration

	// Translation is the "auto" output translation of accepted channels.
	Translation stream.Translation

	// Options apply to every accepted channel.
	Options []channel.Option
}

// Server is a listening socket backend. Its channel has no read or write
// access; connections arrive through ServerOptions.OnAccept.
type Server struct {
	ln     *net.TCPListener
	opts   ServerOptions
	closed atomic.Bool
	done   chan struct{}
}

var (
	_ channel.Backend    = (*Server)(nil)
	_ channel.Seeker     = (*Server)(nil)
	_ channel.SocketInfo = (*Server)(nil)
)

// Listen opens a server socket on host:port. An empty host listens on all
// interfaces; port 0 picks a free port.
func Listen(host string, port int, opts ServerOptions) (*channel.Channel, error) {
	s, err := ListenBackend(host, port, opts)
	if err != nil {
		return nil, err
	}
	return channel.New("", 0, s), nil
}

// ListenBackend starts the accept goroutine without creating a channel.
func ListenBackend(host string, port int, opts ServerOptions) (*Server, error) {
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, connectError(err)
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, connectError(err)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	s := &Server{ln: ln, opts: opts, done: make(chan struct{})}
	go s.acceptLoop()
	return s, nil
}

func (s *Server) acceptLoop() {
	defer close(s.done)
	for {
		if err := s.ln.SetDeadline(time.Now().Add(s.opts.PollInterval)); err != nil && !s.closed.Load() {
			Logger().Warn("set accept deadline", zap.Error(err))
		}
		conn, err := s.ln.AcceptTCP()
		if s.closed.Load() {
			if conn != nil {
				_ = conn.Close()
			}
			return
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			Logger().Warn("accept failed", zap.Stringer("addr", s.ln.Addr()), zap.Error(err))
			return
		}
		Logger().Debug("accepted", zap.Stringer("remote", conn.RemoteAddr()))
		if s.opts.Poster == nil {
			s.handle(conn)
			continue
		}
		s.opts.Poster.Post(func() { s.handle(conn) })
	}
}

// handle runs as the accept event. Connections that arrive after the
// server was closed are dropped.
func (s *Server) handle(conn *net.TCPConn) {
	if s.closed.Load() {
		_ = conn.Close()
		return
	}
	ch := channel.New("", channel.ModeReadWrite, newAccepted(conn, s.opts.Translation), s.opts.Options...)
	if s.opts.Register != nil {
		if err := s.opts.Register(ch); err != nil {
			Logger().Warn("register accepted channel", zap.Error(err))
			_ = ch.Close()
			return
		}
	}
	if s.opts.OnAccept != nil {
		remote := conn.RemoteAddr().(*net.TCPAddr)
		s.opts.OnAccept(ch, remote.IP.String(), remote.Port)
	}
}

// Port returns the bound port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *Server) Type() string { return "tcp" }

func (s *Server) Reader() (stream.Source, error) {
	return nil, chanerrors.Unsupported(chanerrors.OpRead, "server sockets cannot be read")
}

func (s *Server) Writer() (io.Writer, error) {
	return nil, chanerrors.Unsupported(chanerrors.OpWrite, "server sockets cannot be written")
}

// Close stops accepting and waits for the accept goroutine to exit.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.ln.Close()
	<-s.done
	return err
}

var errNoSeek = &chanerrors.Error{Kind: chanerrors.KindPermission, Code: chanerrors.EACCES}

func (s *Server) SeekTo(int64) error   { return errNoSeek }
func (s *Server) Tell() (int64, error) { return 0, errNoSeek }
func (s *Server) End() (int64, error)  { return 0, errNoSeek }

func (s *Server) PeerName() (channel.Address, error) {
	return channel.Address{}, chanerrors.New(chanerrors.OpConfigure, chanerrors.KindNotConnected).
		Detail("can't get peername: socket is not connected").Build()
}

func (s *Server) SockName() (channel.Address, error) {
	return address(s.ln.Addr())
}

func (s *Server) ConnectError() string { return "" }
