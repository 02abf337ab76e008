// Package config handles chanio.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the runtime configuration.
type Config struct {
	Channel ChannelDefaults `toml:"channel"`
	Runtime Runtime         `toml:"runtime"`
}

// ChannelDefaults are applied to every channel a host opens.
type ChannelDefaults struct {
	Blocking          bool   `toml:"blocking"`
	Buffering         string `toml:"buffering"`
	BufferSize        int    `toml:"buffer-size"`
	Encoding          string `toml:"encoding"`
	InputTranslation  string `toml:"input-translation"`
	OutputTranslation string `toml:"output-translation"`
}

// Runtime holds timing and socket settings.
type Runtime struct {
	// FileEventDelay is how long a readiness check waits before looking again.
	FileEventDelay time.Duration `toml:"fileevent-delay"`
	// AcceptPollInterval bounds how long a server socket blocks in accept
	// before checking whether it was closed.
	AcceptPollInterval time.Duration `toml:"accept-poll-interval"`
	// SocketTranslation is what "auto" output translation means on sockets.
	SocketTranslation string `toml:"socket-output-translation"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Channel: ChannelDefaults{
			Blocking:          true,
			Buffering:         "full",
			BufferSize:        4096,
			Encoding:          "utf-8",
			InputTranslation:  "auto",
			OutputTranslation: "auto",
		},
		Runtime: Runtime{
			FileEventDelay:     30 * time.Millisecond,
			AcceptPollInterval: 500 * time.Millisecond,
			SocketTranslation:  "crlf",
		},
	}
}

// Parse decodes TOML on top of the defaults.
func Parse(data string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Load reads a TOML file on top of the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

var (
	bufferings   = []string{"full", "line", "none"}
	translations = []string{"auto", "binary", "lf", "cr", "crlf", "platform"}
)

// Validate checks names and ranges. Encoding names are checked when a
// channel is opened.
func (c Config) Validate() error {
	ch := c.Channel
	if !oneOf(ch.Buffering, bufferings) {
		return fmt.Errorf("channel.buffering: %q is not one of %s", ch.Buffering, strings.Join(bufferings, ", "))
	}
	if ch.BufferSize < 1 || ch.BufferSize > 1<<20 {
		return fmt.Errorf("channel.buffer-size: %d out of range [1, %d]", ch.BufferSize, 1<<20)
	}
	if !oneOf(ch.InputTranslation, translations) {
		return fmt.Errorf("channel.input-translation: %q is not one of %s", ch.InputTranslation, strings.Join(translations, ", "))
	}
	if !oneOf(ch.OutputTranslation, translations) {
		return fmt.Errorf("channel.output-translation: %q is not one of %s", ch.OutputTranslation, strings.Join(translations, ", "))
	}
	rt := c.Runtime
	if rt.FileEventDelay <= 0 {
		return fmt.Errorf("runtime.fileevent-delay must be positive")
	}
	if rt.AcceptPollInterval <= 0 {
		return fmt.Errorf("runtime.accept-poll-interval must be positive")
	}
	if !oneOf(rt.SocketTranslation, translations) || rt.SocketTranslation == "auto" {
		return fmt.Errorf("runtime.socket-output-translation: %q is not a concrete translation", rt.SocketTranslation)
	}
	return nil
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
