// Package chanio provides the channel I/O layer of an embeddable script
// runtime.
//
// A channel is a named, bidirectional byte stream with configurable
// blocking, buffering, end-of-line translation, end-of-file character and
// text encoding. Channels sit on top of a small backend interface, and the
// same read/write pipeline serves files, sockets, child processes, memory
// buffers and the process stdio.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	chanio/              Root package, documentation only
//	├── errors/          Structured channel errors with POSIX-style codes
//	├── stream/          Pipeline stages: buffers, refiller, mark/replay, EOL, encodings
//	├── channel/         Channel core, ownership, seek/tell, configuration, bulk copy
//	├── backend/         File, socket, pipeline, memory, wrapped and stdio backends
//	├── event/           Single-goroutine event queue with timers
//	├── fileevent/       Readiness callbacks that re-poll until a channel is ready
//	├── registry/        Per-interpreter channel table with std slots and refcounts
//	├── host/            Glue owning a queue, a table and their fileevents
//	└── config/          TOML-loadable defaults
//
// # Quick Start
//
// Open a file through a host and read it line by line:
//
//	h, err := host.New(config.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close()
//
//	ch, err := h.OpenFile("notes.txt", "r", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for {
//	    line, n, err := ch.Gets(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if n < 0 {
//	        break
//	    }
//	    fmt.Println(line)
//	}
//
// # Non-blocking I/O
//
// A channel switched to non-blocking mode never waits on its backend. Reads
// return what is buffered and report an incomplete line with a count of -1;
// Blocked tells whether the last read came up short. Output is queued and
// written by a background goroutine. Readiness callbacks are registered with
// a fileevent.Registry and run from the host's event queue:
//
//	h.Events.Register(ch, channel.DirRead, func() error {
//	    line, n, err := ch.Gets(ctx)
//	    ...
//	})
//	h.Run(ctx)
//
// # Thread Safety
//
// Each direction of a channel has a single owner at a time. A read or write
// from a second owner while the first is active fails with a busy error
// instead of queuing. Callers that share a channel across goroutines pass
// an owner token with channel.WithOwner.
package chanio
