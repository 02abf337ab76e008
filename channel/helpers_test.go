package channel

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/wippyai/chanio/stream"
)

// fileBackend is a seekable backend over an *os.File.
type fileBackend struct {
	f *os.File
}

func (b *fileBackend) Type() string                   { return "file" }
func (b *fileBackend) Reader() (stream.Source, error) { return stream.NewSource(b.f), nil }
func (b *fileBackend) Writer() (io.Writer, error)     { return b.f, nil }
func (b *fileBackend) Close() error                   { return b.f.Close() }

func (b *fileBackend) SeekTo(pos int64) error {
	_, err := b.f.Seek(pos, io.SeekStart)
	return err
}

func (b *fileBackend) Tell() (int64, error) {
	return b.f.Seek(0, io.SeekCurrent)
}

func (b *fileBackend) End() (int64, error) {
	fi, err := b.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func openTestFile(t *testing.T, content string, mode Mode, opts ...Option) (*Channel, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	flag := os.O_RDONLY
	switch {
	case mode.Readable() && mode.Writable():
		flag = os.O_RDWR
	case mode.Writable():
		flag = os.O_WRONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		t.Fatal(err)
	}
	return New("file3", mode, &fileBackend{f: f}, opts...), path
}

// feed is a pipe-like source the test fills by hand.
type feed struct {
	mu   sync.Mutex
	cond *sync.Cond
	data []byte
	done bool
}

func newFeed() *feed {
	f := &feed{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *feed) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.data) == 0 && !f.done {
		f.cond.Wait()
	}
	if len(f.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func (f *feed) Available() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data), nil
}

func (f *feed) Feed(s string) {
	f.mu.Lock()
	f.data = append(f.data, s...)
	f.cond.Broadcast()
	f.mu.Unlock()
}

func (f *feed) End() {
	f.mu.Lock()
	f.done = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

// pipeBackend reads from a feed and collects writes in memory.
type pipeBackend struct {
	in *feed

	mu     sync.Mutex
	out    bytes.Buffer
	closed bool
}

func newPipeBackend() *pipeBackend {
	return &pipeBackend{in: newFeed()}
}

func (b *pipeBackend) Type() string                   { return "pipe" }
func (b *pipeBackend) Reader() (stream.Source, error) { return b.in, nil }
func (b *pipeBackend) Writer() (io.Writer, error)     { return b, nil }

func (b *pipeBackend) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.out.Write(p)
}

func (b *pipeBackend) Close() error {
	b.in.End()
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *pipeBackend) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.out.String()
}

func (b *pipeBackend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type chanPoster chan func()

func (p chanPoster) Post(fn func()) { p <- fn }

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func closeChannel(t *testing.T, c *Channel) {
	t.Helper()
	if c.Closed() {
		return
	}
	if err := c.Close(); err != nil {
		t.Errorf("close %s: %v", c.Name(), err)
	}
	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Errorf("close %s did not finish", c.Name())
	}
}

var bg = context.Background()
