package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/chanio/backend/memory"
	"github.com/wippyai/chanio/channel"
	"github.com/wippyai/chanio/config"
)

func newHost(t *testing.T) *Host {
	t.Helper()
	in := memory.NewReader(nil)
	out, _ := memory.NewWriter()
	errc, _ := memory.NewWriter()
	in.SetName("stdin")
	out.SetName("stdout")
	errc.SetName("stderr")

	cfg := config.Default()
	cfg.Runtime.FileEventDelay = 5 * time.Millisecond
	cfg.Runtime.AcceptPollInterval = 20 * time.Millisecond
	h, err := New(cfg, WithStdChannels(in, out, errc))
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func runUntil(t *testing.T, h *Host, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for !done() {
		if !h.Queue.DoOneEvent(ctx, true) {
			t.Fatal("timed out")
		}
	}
}

func TestNamesAndClose(t *testing.T) {
	h := newHost(t)
	dir := t.TempDir()

	f1, err := h.OpenFile(filepath.Join(dir, "a"), "w", 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f2, err := h.OpenFile(filepath.Join(dir, "b"), "WRONLY CREAT", 0o644)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.OpenBytes([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"file3", "file4", "bytearray0"}, []string{f1.Name(), f2.Name(), b.Name()}); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if got, err := h.Get("file4"); err != nil || got != f2 {
		t.Errorf("Get = %v, %v", got, err)
	}

	if err := h.CloseChannel("file3"); err != nil {
		t.Fatal(err)
	}
	if !f1.Closed() {
		t.Error("file3 not closed")
	}
	if _, err := h.Get("file3"); err == nil {
		t.Error("file3 still registered")
	}

	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if !f2.Closed() || !b.Closed() || h.Channels.Len() != 0 {
		t.Error("host close left channels open")
	}
}

func TestConfigDefaultsApply(t *testing.T) {
	in := memory.NewReader(nil)
	out, _ := memory.NewWriter()
	errc, _ := memory.NewWriter()
	in.SetName("stdin")
	out.SetName("stdout")
	errc.SetName("stderr")

	cfg := config.Default()
	cfg.Channel.Buffering = "line"
	cfg.Channel.Encoding = "iso8859-1"
	h, err := New(cfg, WithStdChannels(in, out, errc))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	c, _, err := h.CollectBytes()
	if err != nil {
		t.Fatal(err)
	}
	opts, err := c.Options()
	if err != nil {
		t.Fatal(err)
	}
	if opts[channel.OptBuffering] != "line" || opts[channel.OptEncoding] != "iso8859-1" {
		t.Errorf("options = %v", opts)
	}

	cfg.Channel.Encoding = "klingon"
	if _, err := New(cfg, WithStdChannels(in, out, errc)); err == nil {
		t.Error("unknown encoding accepted")
	}
}

func TestServerFlow(t *testing.T) {
	defer leaktest.Check(t)()
	ctx := context.Background()
	h := newHost(t)
	defer h.Close()

	var lines []string
	var server *channel.Channel
	var acceptedName string
	srv, err := h.Listen("127.0.0.1", 0, func(ch *channel.Channel, addr string, port int) {
		server = ch
		acceptedName = ch.Name()
		h.Events.Register(ch, channel.DirRead, func() error {
			line, n, err := ch.Gets(ctx)
			if err != nil {
				return err
			}
			if n < 0 {
				if ch.EOF() {
					return h.CloseChannel(ch.Name())
				}
				return nil
			}
			lines = append(lines, line)
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	sockname, err := srv.Option(channel.OptSockName)
	if err != nil {
		t.Fatal(err)
	}
	var addr, hostname string
	var port int
	if _, err := fmt.Sscan(sockname, &addr, &hostname, &port); err != nil {
		t.Fatalf("sockname %q: %v", sockname, err)
	}

	client, err := h.Dial(ctx, "127.0.0.1", port, false)
	if err != nil {
		t.Fatal(err)
	}
	if client.Name() != "sock1" {
		t.Errorf("client name = %q", client.Name())
	}
	if err := client.WriteString(ctx, "one\ntwo\n"); err != nil {
		t.Fatal(err)
	}
	if err := h.CloseChannel(client.Name()); err != nil {
		t.Fatal(err)
	}

	runUntil(t, h, func() bool { return server != nil && server.Closed() })
	if diff := cmp.Diff([]string{"one", "two"}, lines); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}
	// the client's name is free again by the time the accept runs
	if !strings.HasPrefix(acceptedName, "sock") || acceptedName == srv.Name() {
		t.Errorf("accepted channel name = %q, server %q", acceptedName, srv.Name())
	}
	if _, err := h.Get(acceptedName); err == nil {
		t.Errorf("closed channel %q still registered", acceptedName)
	}
	if _, ok := h.Events.Lookup(server, channel.DirRead); ok {
		t.Error("fileevent survived the channel")
	}
}

func TestCopyAsyncCompletesOnQueue(t *testing.T) {
	h := newHost(t)
	defer h.Close()

	src, err := h.OpenBytes([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "copy")
	dst, err := h.OpenFile(path, "w", 0o644)
	if err != nil {
		t.Fatal(err)
	}

	var written int64 = -1
	if err := h.CopyAsync(src, dst, -1, func(n int64, err error) {
		if err != nil {
			t.Error(err)
		}
		written = n
	}); err != nil {
		t.Fatal(err)
	}
	runUntil(t, h, func() bool { return written >= 0 })
	if written != 7 {
		t.Errorf("written = %d", written)
	}
	if err := h.CloseChannel(dst.Name()); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "payload" {
		t.Errorf("file = %q", data)
	}
}
