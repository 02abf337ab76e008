package stream

import (
	"io"
	"syscall"
)

// Source is an upstream byte source that can report how many bytes
// a Read would return without blocking.
type Source interface {
	io.Reader
	Available() (int, error)
}

type availabler interface {
	Available() (int, error)
}

type syscallConner interface {
	SyscallConn() (syscall.RawConn, error)
}

// NewSource adapts r into a Source.
// Readers backed by a descriptor report pending bytes via the OS;
// others report zero, which makes every refill a blocking one-byte read.
func NewSource(r io.Reader) Source {
	if s, ok := r.(Source); ok {
		return s
	}
	if sc, ok := r.(syscallConner); ok {
		return &fdSource{Reader: r, conn: sc}
	}
	return &plainSource{Reader: r}
}

type plainSource struct {
	io.Reader
}

func (s *plainSource) Available() (int, error) {
	return 0, nil
}

type fdSource struct {
	io.Reader
	conn syscallConner
}

func (s *fdSource) Available() (int, error) {
	rc, err := s.conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	return FDAvailable(rc)
}

// ByteSource reads from an in-memory slice and always reports the remaining length.
type ByteSource struct {
	data []byte
	pos  int
}

// NewByteSource returns a Source over data. The slice is not copied.
func NewByteSource(data []byte) *ByteSource {
	return &ByteSource{data: data}
}

func (s *ByteSource) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}

func (s *ByteSource) Available() (int, error) {
	return len(s.data) - s.pos, nil
}
