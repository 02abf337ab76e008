package channel

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/chanio/config"
	chanerrors "github.com/wippyai/chanio/errors"
	"github.com/wippyai/chanio/stream"
)

func TestConfigureRoundTrip(t *testing.T) {
	c := New("pipe0", ModeReadWrite, newPipeBackend())
	defer closeChannel(t, c)

	tests := []struct {
		name, value, want string
	}{
		{OptBlocking, "no", "0"},
		{OptBlocking, "true", "1"},
		{OptBuffering, "line", "line"},
		{OptBufferSize, "512", "512"},
		{OptBufferSize, "0", "512"},
		{OptEncoding, "iso8859-1", "iso8859-1"},
		{OptEncoding, "binary", "binary"},
		{OptTranslation, "lf crlf", "lf crlf"},
		{OptTranslation, "cr", "cr cr"},
		{OptEOFChar, "\x1a", "\x1a \x1a"},
		{OptEOFChar, "{} {}", "{} {}"},
	}
	for _, tt := range tests {
		if err := c.Configure(tt.name, tt.value); err != nil {
			t.Fatalf("Configure(%s, %q): %v", tt.name, tt.value, err)
		}
		got, err := c.Option(tt.name)
		if err != nil {
			t.Fatalf("Option(%s): %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("after %s %q: got %q, want %q", tt.name, tt.value, got, tt.want)
		}
	}
}

func TestConfigureBinarySelectsRawEncoding(t *testing.T) {
	c := New("pipe0", ModeReadWrite, newPipeBackend())
	defer closeChannel(t, c)

	if err := c.Configure(OptTranslation, "binary"); err != nil {
		t.Fatal(err)
	}
	if c.Encoding() != nil {
		t.Errorf("encoding = %s, want binary", c.Encoding().Name())
	}
	if got, _ := c.Option(OptTranslation); got != "lf lf" {
		t.Errorf("translation reported as %q", got)
	}
}

func TestConfigureErrors(t *testing.T) {
	c := New("pipe0", ModeRead, newPipeBackend())
	defer closeChannel(t, c)

	tests := []struct {
		name, value, msg string
	}{
		{OptBuffering, "huge", "bad value for -buffering: must be one of full, line, or none"},
		{OptBlocking, "maybe", `expected boolean value but got "maybe"`},
		{OptBufferSize, "lots", `expected integer but got "lots"`},
		{OptEncoding, "klingon", `unknown encoding "klingon"`},
		{OptTranslation, "sideways", "bad value for -translation"},
		{OptTranslation, "lf crlf", "should be a list of one or two elements"},
		{OptEOFChar, "ab", "bad value for -eofchar"},
		{"-color", "red", `bad option "-color"`},
		{OptPeerName, "x", `bad option "-peername"`},
	}
	for _, tt := range tests {
		err := c.Configure(tt.name, tt.value)
		if !errors.Is(err, chanerrors.ErrInvalidArgument) {
			t.Errorf("Configure(%s, %q) = %v, want invalid argument", tt.name, tt.value, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.msg) {
			t.Errorf("Configure(%s, %q) message %q, want %q", tt.name, tt.value, err, tt.msg)
		}
	}
}

func TestSingleDirectionOptions(t *testing.T) {
	c := New("pipe0", ModeWrite, newPipeBackend())
	defer closeChannel(t, c)

	if err := c.Configure(OptTranslation, "crlf"); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Option(OptTranslation); got != "crlf" {
		t.Errorf("translation = %q", got)
	}
	if got := c.InputTranslation(); got != stream.Auto {
		t.Errorf("input translation changed on a write-only channel: %v", got)
	}
}

type socketish struct {
	*pipeBackend
}

func (socketish) PeerName() (Address, error) {
	return Address{Addr: "127.0.0.1", Host: "localhost", Port: 8080}, nil
}
func (socketish) SockName() (Address, error) {
	return Address{Addr: "127.0.0.1", Host: "localhost", Port: 50000}, nil
}
func (socketish) ConnectError() string { return "" }

func TestSocketOptions(t *testing.T) {
	c := New("sock0", ModeReadWrite, socketish{newPipeBackend()})
	defer closeChannel(t, c)

	opts, err := c.Options()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		OptBlocking:    "1",
		OptBuffering:   "full",
		OptBufferSize:  "4096",
		OptEncoding:    "utf-8",
		OptEOFChar:     "{} {}",
		OptTranslation: "auto " + stream.Platform().String(),
		OptError:       "",
		OptPeerName:    "127.0.0.1 localhost 8080",
		OptSockName:    "127.0.0.1 localhost 50000",
	}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("options (-want +got):\n%s", diff)
	}
	if err := c.Configure(OptPeerName, "x"); !errors.Is(err, chanerrors.ErrInvalidArgument) {
		t.Errorf("setting -peername: %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	d := config.Default().Channel
	d.Buffering = "none"
	d.BufferSize = 100
	d.Encoding = "iso8859-1"
	d.InputTranslation = "crlf"
	d.Blocking = false

	c := New("pipe0", ModeReadWrite, newPipeBackend(), FromConfig(d)...)
	defer closeChannel(t, c)

	if c.Buffering() != stream.None || c.BufferSize() != 100 || c.Blocking() {
		t.Errorf("buffering %v size %d blocking %v", c.Buffering(), c.BufferSize(), c.Blocking())
	}
	if c.Encoding().Name() != "iso8859-1" {
		t.Errorf("encoding = %s", c.Encoding().Name())
	}
	if c.InputTranslation() != stream.CRLF {
		t.Errorf("input translation = %v", c.InputTranslation())
	}
}
