// Package pipeline runs a child process and exposes its standard input and
// output as a channel.
package pipeline

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"go.uber.org/multierr"

	"github.com/wippyai/chanio/backend/memory"
	"github.com/wippyai/chanio/channel"
	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

// Options configures a pipeline.
type Options struct {
	Dir string
	Env []string

	// Stdin feeds a read-only pipeline; defaults to os.Stdin.
	Stdin io.Reader
	// Stdout receives the output of a write-only pipeline; defaults to os.Stdout.
	Stdout io.Writer

	Channel []channel.Option
}

// Backend owns a running child process.
type Backend struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *memory.Writer

	closeOnce sync.Once
	closeErr  error
}

var _ channel.Backend = (*Backend)(nil)

// Open starts argv with pipes for the directions in mode. Standard error is
// captured and reported when the channel is closed. A write-only pipeline is
// unbuffered.
func Open(argv []string, mode channel.Mode, opts Options) (*channel.Channel, error) {
	b, err := Start(argv, mode, opts)
	if err != nil {
		return nil, err
	}
	chOpts := opts.Channel
	if !mode.Readable() {
		chOpts = append(chOpts, channel.WithBuffering(stream.None))
	}
	return channel.New("", mode, b, chOpts...), nil
}

// Start launches the process without creating a channel.
func Start(argv []string, mode channel.Mode, opts Options) (*Backend, error) {
	if len(argv) == 0 {
		return nil, chanerrors.InvalidArgument(chanerrors.OpOpen, "illegal use of | or |& in command")
	}
	if !mode.Readable() && !mode.Writable() {
		return nil, chanerrors.InvalidArgument(chanerrors.OpOpen, "pipeline must be opened for reading or writing")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	b := &Backend{cmd: cmd}
	_, b.stderr = memory.NewWriter()
	cmd.Stderr = b.stderr

	var err error
	if mode.Writable() {
		if b.stdin, err = cmd.StdinPipe(); err != nil {
			return nil, startError(argv[0], err)
		}
	} else {
		cmd.Stdin = opts.Stdin
		if cmd.Stdin == nil {
			cmd.Stdin = os.Stdin
		}
	}
	if mode.Readable() {
		if b.stdout, err = cmd.StdoutPipe(); err != nil {
			return nil, startError(argv[0], err)
		}
	} else {
		cmd.Stdout = opts.Stdout
		if cmd.Stdout == nil {
			cmd.Stdout = os.Stdout
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, startError(argv[0], err)
	}
	return b, nil
}

func startError(prog string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return chanerrors.New(chanerrors.OpOpen, chanerrors.KindNotFound).
			Code(chanerrors.ENOENT).
			Detail("couldn't execute %q: no such file or directory", prog).
			Build()
	case errors.Is(err, os.ErrPermission):
		return chanerrors.New(chanerrors.OpOpen, chanerrors.KindPermission).
			Code(chanerrors.EACCES).
			Detail("couldn't execute %q: permission denied", prog).
			Build()
	}
	return chanerrors.New(chanerrors.OpOpen, chanerrors.KindIO).
		Code(chanerrors.EIO).
		Detail("couldn't execute %q", prog).
		Cause(err).
		Build()
}

func (b *Backend) Type() string { return "pipeline" }

// Pid returns the process id of the child.
func (b *Backend) Pid() int { return b.cmd.Process.Pid }

// Stderr returns what the child has written to standard error so far.
func (b *Backend) Stderr() string { return b.stderr.String() }

func (b *Backend) Reader() (stream.Source, error) {
	if b.stdout == nil {
		return nil, chanerrors.Unsupported(chanerrors.OpRead, "pipeline output is not readable")
	}
	return stream.NewSource(b.stdout), nil
}

func (b *Backend) Writer() (io.Writer, error) {
	if b.stdin == nil {
		return nil, chanerrors.Unsupported(chanerrors.OpWrite, "pipeline input is not writable")
	}
	return b.stdin, nil
}

// Close closes both pipes and waits for the child. A non-zero exit status
// or output on standard error is returned as a child status error.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		var err error
		if b.stdin != nil {
			err = multierr.Append(err, ignoreClosed(b.stdin.Close()))
		}
		if b.stdout != nil {
			err = multierr.Append(err, ignoreClosed(b.stdout.Close()))
		}
		b.closeErr = multierr.Append(err, b.wait())
	})
	return b.closeErr
}

func (b *Backend) wait() error {
	err := b.cmd.Wait()
	stderr := b.stderr.String()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() && stderr == "" {
			stderr = "child killed: " + ws.Signal().String()
		}
		return chanerrors.ChildStatus(code, stderr)
	}
	if err != nil {
		return chanerrors.Wrap(chanerrors.OpClose, chanerrors.KindIO, err, "error waiting for child process")
	}
	if stderr != "" {
		return chanerrors.ChildStatus(0, stderr)
	}
	return nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
