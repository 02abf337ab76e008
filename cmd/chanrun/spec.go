package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/wippyai/chanio/channel"
	"github.com/wippyai/chanio/host"
)

// chanSpec names a channel on the command line. A bare "-" is standard
// input or output; the other forms are:
//
//	file:PATH        a file
//	tcp:HOST:PORT    a client socket
//	exec:COMMAND     a child process
type chanSpec struct {
	kind string
	path string
	host string
	port int
	argv []string
}

func parseSpec(s string) (chanSpec, error) {
	if s == "-" {
		return chanSpec{kind: "std"}, nil
	}
	kind, rest, ok := strings.Cut(s, ":")
	if !ok || rest == "" {
		return chanSpec{}, fmt.Errorf("bad channel spec %q: want -, file:PATH, tcp:HOST:PORT or exec:COMMAND", s)
	}
	switch kind {
	case "file":
		return chanSpec{kind: kind, path: rest}, nil
	case "tcp":
		hostname, portStr, err := net.SplitHostPort(rest)
		if err != nil {
			return chanSpec{}, fmt.Errorf("bad channel spec %q: %w", s, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return chanSpec{}, fmt.Errorf("bad channel spec %q: invalid port %q", s, portStr)
		}
		return chanSpec{kind: kind, host: hostname, port: port}, nil
	case "exec":
		argv := strings.Fields(rest)
		if len(argv) == 0 {
			return chanSpec{}, fmt.Errorf("bad channel spec %q: empty command", s)
		}
		return chanSpec{kind: kind, argv: argv}, nil
	}
	return chanSpec{}, fmt.Errorf("bad channel spec %q: unknown kind %q", s, kind)
}

// open creates the channel on h. access is an open access string such as "r" or "a+".
func (s chanSpec) open(ctx context.Context, h *host.Host, access string) (*channel.Channel, error) {
	switch s.kind {
	case "std":
		mode, err := channel.ParseAccess(access)
		if err != nil {
			return nil, err
		}
		if mode.Writable() {
			return h.Get("stdout")
		}
		return h.Get("stdin")
	case "file":
		return h.OpenFile(s.path, access, 0o644)
	case "tcp":
		return h.Dial(ctx, s.host, s.port, false)
	case "exec":
		return h.OpenPipeline(s.argv, access)
	}
	return nil, fmt.Errorf("unknown channel kind %q", s.kind)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
