package fileevent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/chanio/backend/memory"
	"github.com/wippyai/chanio/channel"
	"github.com/wippyai/chanio/event"
)

func runUntil(t *testing.T, q *event.Queue, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for !done() {
		if !q.DoOneEvent(ctx, true) {
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestReadableCallback(t *testing.T) {
	defer leaktest.Check(t)()
	ctx := context.Background()
	q := event.New()
	r := New(q, 5*time.Millisecond)
	c := memory.NewReader([]byte("a\nb\n"))
	defer c.Close()

	var lines []string
	r.Register(c, channel.DirRead, func() error {
		line, n, err := c.Gets(ctx)
		if err != nil {
			return err
		}
		if n < 0 {
			r.Deregister(c, channel.DirRead)
			return nil
		}
		lines = append(lines, line)
		return nil
	})
	if _, ok := r.Lookup(c, channel.DirRead); !ok {
		t.Fatal("registration missing")
	}

	runUntil(t, q, func() bool { return r.Len() == 0 })
	if diff := cmp.Diff([]string{"a", "b"}, lines); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}
	if !c.EOF() {
		t.Error("expected end of file")
	}
}

func TestCallbackErrorDisposes(t *testing.T) {
	var reported []error
	q := event.New(event.WithErrorHandler(func(err error) { reported = append(reported, err) }))
	r := New(q, 0)
	c, _ := memory.NewWriter()
	defer c.Close()

	boom := errors.New("boom")
	calls := 0
	r.Register(c, channel.DirWrite, func() error {
		calls++
		return boom
	})
	q.Drain()

	if calls != 1 {
		t.Errorf("callback ran %d times", calls)
	}
	if len(reported) != 1 || !errors.Is(reported[0], boom) {
		t.Errorf("reported = %v", reported)
	}
	if _, ok := r.Lookup(c, channel.DirWrite); ok {
		t.Error("failed registration still present")
	}
}

func TestRegisterReplaces(t *testing.T) {
	q := event.New()
	r := New(q, 0)
	c, _ := memory.NewWriter()
	defer c.Close()

	first, second := 0, 0
	r.Register(c, channel.DirWrite, func() error {
		first++
		return nil
	})
	r.Register(c, channel.DirWrite, func() error {
		second++
		r.Deregister(c, channel.DirWrite)
		return nil
	})
	q.Drain()

	if first != 0 || second != 1 {
		t.Errorf("first = %d, second = %d", first, second)
	}
}

func TestClosedChannelIsDisposed(t *testing.T) {
	q := event.New()
	r := New(q, 0)
	c := memory.NewReader([]byte("x"))
	r.Register(c, channel.DirRead, func() error {
		t.Error("callback ran for a closed channel")
		return nil
	})
	c.Close()
	q.Drain()
	if r.Len() != 0 {
		t.Errorf("%d registrations left", r.Len())
	}
}

func TestCloseCancelsTimers(t *testing.T) {
	q := event.New()
	r := New(q, time.Hour)
	c := memory.NewReader(nil)
	defer c.Close()

	// first check finds nothing buffered and arms the delay timer
	r.Register(c, channel.DirRead, func() error { return nil })
	r.Register(c, channel.DirWrite, func() error { return nil })
	q.Drain()

	r.DisposeChannel(c)
	r.Close()
	r.Register(c, channel.DirRead, func() error { return nil })
	if r.Len() != 0 || q.Len() != 0 {
		t.Errorf("registrations = %d, queued = %d", r.Len(), q.Len())
	}
}
