package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/chanio/backend/memory"
	"github.com/wippyai/chanio/channel"
	chanerrors "github.com/wippyai/chanio/errors"
)

type testObserver struct {
	events []string
}

func (o *testObserver) OnChannelEvent(e Event) {
	o.events = append(o.events, e.Type.String()+" "+e.Slot)
}

func named(name string) *channel.Channel {
	c, _ := memory.NewWriter()
	c.SetName(name)
	return c
}

func withStd(t *testing.T) *Table {
	t.Helper()
	tbl := New()
	for _, name := range StdSlots {
		if _, err := tbl.Register(named(name)); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestNextName(t *testing.T) {
	tbl := withStd(t)
	if got := tbl.NextName("file"); got != "file3" {
		t.Errorf("first file = %q", got)
	}
	if got := tbl.NextName("sock"); got != "sock0" {
		t.Errorf("first sock = %q", got)
	}
	c := named(tbl.NextName("file"))
	if _, err := tbl.Register(c); err != nil {
		t.Fatal(err)
	}
	if got := tbl.NextName("file"); got != "file4" {
		t.Errorf("second file = %q", got)
	}
}

func TestStdSlotsFilledFirst(t *testing.T) {
	tbl := New()
	c := named("file3")
	slot, err := tbl.Register(c)
	if err != nil {
		t.Fatal(err)
	}
	if slot != "stdin" {
		t.Fatalf("slot = %q", slot)
	}
	// found under both its own name and the slot
	for _, name := range []string{"stdin", "file3"} {
		if got, ok := tbl.Get(name); !ok || got != c {
			t.Errorf("Get(%q) = %v, %v", name, got, ok)
		}
	}
	if diff := cmp.Diff([]string{"stdin"}, tbl.Names("")); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestRegisterErrors(t *testing.T) {
	tbl := withStd(t)
	if _, err := tbl.Register(named("")); !errors.Is(err, chanerrors.ErrInvalidArgument) {
		t.Errorf("unnamed = %v", err)
	}
	if _, err := tbl.Register(named("file3")); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Register(named("file3")); err == nil {
		t.Error("duplicate name accepted")
	}
	if _, err := tbl.Lookup("nope"); err == nil || err.Error() != `can not find channel named "nope"` {
		t.Errorf("Lookup = %v", err)
	}
}

func TestNamesPattern(t *testing.T) {
	tbl := withStd(t)
	for _, n := range []string{"file3", "file4", "sock0"} {
		if _, err := tbl.Register(named(n)); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"file3", "file4"}, tbl.Names("file*")); diff != "" {
		t.Errorf("file* (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"stderr", "stdin", "stdout"}, tbl.Names("std*")); diff != "" {
		t.Errorf("std* (-want +got):\n%s", diff)
	}
}

func TestUnregisterClosesAtZero(t *testing.T) {
	tbl := withStd(t)
	obs := &testObserver{}
	unsubscribe := tbl.Subscribe(obs)
	c := named("file3")
	tbl.Register(c)

	other := withStd(t)
	if err := tbl.Give(other, "file3", false); err != nil {
		t.Fatal(err)
	}
	if c.Refs() != 2 {
		t.Fatalf("refs = %d", c.Refs())
	}

	if err := tbl.Unregister(c); err != nil {
		t.Fatal(err)
	}
	if c.Closed() {
		t.Fatal("closed while another table holds it")
	}
	if err := other.Unregister(c); err != nil {
		t.Fatal(err)
	}
	if !c.Closed() {
		t.Error("last unregister should close")
	}

	unsubscribe()
	tbl.Register(named("file5"))
	if diff := cmp.Diff([]string{"registered file3", "dropped file3"}, obs.events); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestGiveMove(t *testing.T) {
	from, to := withStd(t), withStd(t)
	c := named("sock0")
	from.Register(c)

	if err := from.Give(to, "sock0", true); err != nil {
		t.Fatal(err)
	}
	if _, ok := from.Get("sock0"); ok {
		t.Error("moved channel still in source table")
	}
	if got, ok := to.Get("sock0"); !ok || got != c || c.Closed() {
		t.Errorf("moved channel = %v, %v, closed %v", got, ok, c.Closed())
	}
	if err := from.Give(to, "sock0", true); err == nil {
		t.Error("giving a missing channel should fail")
	}
}

func TestFlushAllAndClose(t *testing.T) {
	ctx := context.Background()
	tbl := withStd(t)
	c, sink := memory.NewWriter(channel.WithBlocking(false))
	c.SetName("bytearray0")
	tbl.Register(c)

	if err := c.WriteString(ctx, "pending"); err != nil {
		t.Fatal(err)
	}
	tbl.FlushAll(ctx)
	if sink.String() != "pending" {
		t.Errorf("sink = %q", sink.String())
	}
	if c.Blocking() {
		t.Error("blocking mode not restored")
	}

	if err := tbl.Close(); err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 0 || !c.Closed() {
		t.Errorf("len = %d, closed = %v", tbl.Len(), c.Closed())
	}
	if _, err := tbl.Register(named("late")); !errors.Is(err, chanerrors.ErrClosed) {
		t.Errorf("register after close = %v", err)
	}
}
