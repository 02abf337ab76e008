// Command chanrun copies data between channels and can monitor a channel
// interactively.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/chanio/backend/socket"
	"github.com/wippyai/chanio/channel"
	"github.com/wippyai/chanio/config"
	"github.com/wippyai/chanio/event"
	"github.com/wippyai/chanio/fileevent"
	"github.com/wippyai/chanio/host"
)

func main() {
	var (
		src         = flag.String("src", "", "Source channel (-, file:PATH, tcp:HOST:PORT, exec:COMMAND)")
		dst         = flag.String("dst", "-", "Destination channel")
		size        = flag.Int64("size", -1, "Copy at most this many bytes (-1 for no limit)")
		encoding    = flag.String("encoding", "", "Encoding for both channels")
		translation = flag.String("translation", "", "EOL translation for both channels")
		buffering   = flag.String("buffering", "", "Buffering for both channels (full, line, none)")
		configFile  = flag.String("config", "", "TOML configuration file")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive monitor for the source channel")
	)
	flag.Parse()

	if *src == "" {
		fmt.Fprintln(os.Stderr, "Usage: chanrun -src SPEC [-dst SPEC] [-size N] [-encoding E] [-translation T] [-buffering B]")
		fmt.Fprintln(os.Stderr, "       chanrun -src tcp:HOST:PORT -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fatalf("logger: %v", err)
		}
		defer logger.Sync()
		channel.SetLogger(logger)
		socket.SetLogger(logger)
		event.SetLogger(logger)
		fileevent.SetLogger(logger)
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fatalf("%v", err)
		}
	}

	settings := map[string]string{
		channel.OptEncoding:    *encoding,
		channel.OptTranslation: *translation,
		channel.OptBuffering:   *buffering,
	}

	if *interactive {
		if err := runInteractive(cfg, *src, settings); err != nil {
			fatalf("%v", err)
		}
		return
	}

	n, err := run(context.Background(), cfg, *src, *dst, *size, settings)
	if err != nil {
		fatalf("%v", err)
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "copied %d bytes\n", n)
	}
}

func run(ctx context.Context, cfg config.Config, srcSpec, dstSpec string, size int64, settings map[string]string) (int64, error) {
	in, err := parseSpec(srcSpec)
	if err != nil {
		return 0, err
	}
	out, err := parseSpec(dstSpec)
	if err != nil {
		return 0, err
	}

	h, err := host.New(cfg)
	if err != nil {
		return 0, err
	}
	defer h.Close()

	src, err := in.open(ctx, h, "r")
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	dst, err := out.open(ctx, h, "w")
	if err != nil {
		return 0, fmt.Errorf("open destination: %w", err)
	}
	for _, ch := range []*channel.Channel{src, dst} {
		if err := configure(ch, settings); err != nil {
			return 0, err
		}
	}

	n, err := h.Copy(ctx, src, dst, size)
	if err != nil {
		return n, err
	}
	return n, dst.Flush(ctx)
}

// configure applies the non-empty settings.
func configure(ch *channel.Channel, settings map[string]string) error {
	for _, name := range []string{channel.OptEncoding, channel.OptTranslation, channel.OptBuffering} {
		if v := settings[name]; v != "" {
			if err := ch.Configure(name, v); err != nil {
				return fmt.Errorf("%s: %w", ch.Name(), err)
			}
		}
	}
	return nil
}
