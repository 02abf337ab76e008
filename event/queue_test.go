package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
)

func TestOrder(t *testing.T) {
	q := New()
	var got []string
	add := func(s string) Event {
		return Func(func() error {
			got = append(got, s)
			return nil
		})
	}
	q.QueueEvent(add("b"), Tail)
	q.QueueEvent(add("c"), Tail)
	q.QueueEvent(add("a"), Head)
	q.Post(func() { got = append(got, "d") })

	if n := q.Drain(); n != 4 {
		t.Errorf("drained %d events", n)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if q.DoOneEvent(context.Background(), false) {
		t.Error("empty queue ran an event")
	}
}

func TestBackgroundErrors(t *testing.T) {
	var errs []error
	q := New(WithErrorHandler(func(err error) { errs = append(errs, err) }))
	boom := errors.New("boom")
	q.QueueEvent(Func(func() error { return boom }), Tail)
	q.QueueEvent(Func(func() error { return nil }), Tail)
	q.Drain()
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Errorf("errors = %v", errs)
	}
}

func TestWaitForEvent(t *testing.T) {
	defer leaktest.Check(t)()
	q := New()
	ran := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Post(func() { close(ran) })
	}()
	if !q.DoOneEvent(context.Background(), true) {
		t.Fatal("no event")
	}
	<-ran

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if q.DoOneEvent(ctx, true) {
		t.Error("event ran on an empty queue")
	}
}

func TestTimers(t *testing.T) {
	q := New()
	fired := 0
	tm := q.After(5*time.Millisecond, Func(func() error {
		fired++
		return nil
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !q.DoOneEvent(ctx, true) {
		t.Fatal("timer never fired")
	}
	if fired != 1 || !tm.Fired() {
		t.Errorf("fired = %d", fired)
	}
	if tm.Cancel() {
		t.Error("cancel after run should report false")
	}

	cancelled := q.After(time.Hour, Func(func() error {
		t.Error("cancelled timer ran")
		return nil
	}))
	if !cancelled.Cancel() {
		t.Error("cancel should stop a pending timer")
	}

	// fired but not yet processed
	late := q.After(time.Millisecond, Func(func() error {
		t.Error("timer cancelled after firing ran")
		return nil
	}))
	deadline := time.Now().Add(5 * time.Second)
	for q.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	late.Cancel()
	q.Drain()
}

func TestRun(t *testing.T) {
	defer leaktest.Check(t)()
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	q.Post(cancel)
	if err := q.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v", err)
	}
}

func TestClose(t *testing.T) {
	q := New()
	q.After(time.Hour, Func(func() error { return nil }))
	q.Post(func() { t.Error("event survived Close") })
	q.Close()
	if q.Len() != 0 {
		t.Errorf("%d events pending after Close", q.Len())
	}
}
