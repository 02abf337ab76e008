// Package file provides seekable channels over operating system files.
package file

import (
	"errors"
	"io"
	"os"
	"syscall"

	"github.com/wippyai/chanio/channel"
	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

// Backend is a channel backend over an open *os.File.
type Backend struct {
	f    *os.File
	path string
}

var (
	_ channel.Backend = (*Backend)(nil)
	_ channel.Seeker  = (*Backend)(nil)
	_ channel.Syncer  = (*Backend)(nil)
)

// Open opens path with the given mode and creates a channel over it.
// perm applies when the file is created.
func Open(path string, mode channel.Mode, perm os.FileMode, opts ...channel.Option) (*channel.Channel, error) {
	b, err := OpenBackend(path, mode, perm)
	if err != nil {
		return nil, err
	}
	return channel.New("", mode, b, opts...), nil
}

// OpenBackend opens path without wrapping it in a channel.
func OpenBackend(path string, mode channel.Mode, perm os.FileMode) (*Backend, error) {
	flag := os.O_RDONLY
	switch {
	case mode.Readable() && mode.Writable():
		flag = os.O_RDWR
	case mode.Writable():
		flag = os.O_WRONLY
	}
	if mode&channel.ModeCreate != 0 {
		flag |= os.O_CREATE
	}
	if mode&channel.ModeExclusive != 0 {
		flag |= os.O_EXCL
	}
	if mode&channel.ModeTruncate != 0 {
		flag |= os.O_TRUNC
	}

	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return nil, chanerrors.Open(path, chanerrors.KindIsDirectory, chanerrors.EISDIR, nil)
	}
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, mapOpenError(path, err)
	}
	// append mode positions at the end; the channel re-seeks before each write
	if mode&channel.ModeAppend != 0 {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, mapOpenError(path, err)
		}
	}
	return &Backend{f: f, path: path}, nil
}

func mapOpenError(path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return chanerrors.Open(path, chanerrors.KindNotFound, chanerrors.ENOENT, nil)
	case os.IsExist(err):
		return chanerrors.Open(path, chanerrors.KindExists, chanerrors.EEXIST, nil)
	case os.IsPermission(err):
		return chanerrors.Open(path, chanerrors.KindPermission, chanerrors.EACCES, nil)
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && errno == syscall.EISDIR {
		return chanerrors.Open(path, chanerrors.KindIsDirectory, chanerrors.EISDIR, nil)
	}
	return chanerrors.Open(path, chanerrors.KindIO, chanerrors.EIO, err)
}

func (b *Backend) Type() string { return "file" }

// Path returns the name the file was opened with.
func (b *Backend) Path() string { return b.path }

// Reader reports the bytes between the position and the end of file as
// available, so refills never block on a regular file.
func (b *Backend) Reader() (stream.Source, error) {
	return &source{f: b.f}, nil
}

func (b *Backend) Writer() (io.Writer, error) { return b.f, nil }

func (b *Backend) Close() error { return b.f.Close() }

func (b *Backend) SeekTo(pos int64) error {
	_, err := b.f.Seek(pos, io.SeekStart)
	return err
}

func (b *Backend) Tell() (int64, error) {
	return b.f.Seek(0, io.SeekCurrent)
}

func (b *Backend) End() (int64, error) {
	fi, err := b.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Sync commits the file contents to stable storage.
func (b *Backend) Sync() error { return b.f.Sync() }

type source struct {
	f *os.File
}

func (s *source) Read(p []byte) (int, error) { return s.f.Read(p) }

func (s *source) Available() (int, error) {
	pos, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		// not seekable, e.g. a fifo
		rc, rerr := s.f.SyscallConn()
		if rerr != nil {
			return 0, nil
		}
		return stream.FDAvailable(rc)
	}
	fi, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	if fi.Mode().IsRegular() {
		if n := fi.Size() - pos; n > 0 {
			return int(n), nil
		}
		return 0, nil
	}
	rc, err := s.f.SyscallConn()
	if err != nil {
		return 0, nil
	}
	return stream.FDAvailable(rc)
}
