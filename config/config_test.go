package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse(`
[channel]
buffering = "line"
buffer-size = 1024
encoding = "iso8859-1"

[runtime]
fileevent-delay = "10ms"
`)
	if err != nil {
		t.Fatal(err)
	}

	want := Default()
	want.Channel.Buffering = "line"
	want.Channel.BufferSize = 1024
	want.Channel.Encoding = "iso8859-1"
	want.Runtime.FileEventDelay = 10 * time.Millisecond
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name, data, msg string
	}{
		{"syntax", `[channel`, "parse error"},
		{"unknown key", "[channel]\ncolour = \"red\"", "unknown keys: channel.colour"},
		{"buffering", "[channel]\nbuffering = \"some\"", "channel.buffering"},
		{"size", "[channel]\nbuffer-size = 0", "channel.buffer-size"},
		{"translation", "[channel]\ninput-translation = \"dos\"", "channel.input-translation"},
		{"socket auto", "[runtime]\nsocket-output-translation = \"auto\"", "not a concrete translation"},
		{"delay", "[runtime]\nfileevent-delay = \"0s\"", "fileevent-delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", err, tt.msg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chanio.toml")
	if err := os.WriteFile(path, []byte("[channel]\nblocking = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Channel.Blocking {
		t.Error("blocking should be false")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file should fail")
	}
}
