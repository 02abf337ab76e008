// Package registry keeps the per-owner table of open channels.
package registry

import (
	"context"
	"path"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/multierr"

	"github.com/wippyai/chanio/channel"
	chanerrors "github.com/wippyai/chanio/errors"
)

// Table maps channel names to channels. A channel may live in several
// tables; it is closed when the last one lets go of it.
type Table struct {
	mu        sync.Mutex
	entries   map[string]*channel.Channel
	closed    bool
	observers []observerEntry
	nextObs   uint64
	obsMu     sync.RWMutex
}

type observerEntry struct {
	id uint64
	o  Observer
}

func New() *Table {
	return &Table{entries: make(map[string]*channel.Channel)}
}

// NextName returns the first unused name for prefix. File names start at
// file3; every other prefix starts at 0.
func (t *Table) NextName(prefix string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := 0
	if prefix == "file" {
		i = 3
	}
	for {
		name := prefix + strconv.Itoa(i)
		if _, taken := t.entries[name]; !taken {
			return name
		}
		i++
	}
}

// Register adds ch under its name, or under the first empty standard slot.
// It returns the slot used.
func (t *Table) Register(ch *channel.Channel) (string, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return "", chanerrors.Closed(chanerrors.OpRegister, ch.Name())
	}
	slot := ch.Name()
	for _, std := range StdSlots {
		if _, ok := t.entries[std]; !ok {
			slot = std
			break
		}
	}
	if slot == "" {
		t.mu.Unlock()
		return "", chanerrors.InvalidArgument(chanerrors.OpRegister, "channel has no name")
	}
	if other, ok := t.entries[slot]; ok && other != ch {
		t.mu.Unlock()
		return "", chanerrors.InvalidArgument(chanerrors.OpRegister, "channel %q already exists", slot)
	}
	t.entries[slot] = ch
	ch.Ref()
	t.mu.Unlock()

	t.notify(Event{Channel: ch, Slot: slot, Type: EventRegistered})
	return slot, nil
}

// lookupLocked finds name directly or as a channel posing in a std slot.
func (t *Table) lookupLocked(name string) (string, *channel.Channel) {
	if ch, ok := t.entries[name]; ok {
		return name, ch
	}
	for _, std := range StdSlots {
		if ch, ok := t.entries[std]; ok && ch.Name() == name {
			return std, ch
		}
	}
	return "", nil
}

func (t *Table) slotOfLocked(ch *channel.Channel) string {
	if slot, found := t.lookupLocked(ch.Name()); found == ch {
		return slot
	}
	for slot, c := range t.entries {
		if c == ch {
			return slot
		}
	}
	return ""
}

// Get returns the channel registered as name.
func (t *Table) Get(name string) (*channel.Channel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ch := t.lookupLocked(name)
	return ch, ch != nil
}

// Lookup is Get with the runtime's error message.
func (t *Table) Lookup(name string) (*channel.Channel, error) {
	if ch, ok := t.Get(name); ok {
		return ch, nil
	}
	return nil, chanerrors.InvalidArgument(chanerrors.OpRegister, "can not find channel named %q", name)
}

// Names returns the sorted slot names matching a glob pattern; an empty
// pattern matches everything.
func (t *Table) Names(pattern string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		if pattern != "" {
			if ok, err := path.Match(pattern, name); err != nil || !ok {
				continue
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered channels.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Unregister removes ch and closes it if no other table holds it.
// Observers see the drop before the channel is closed.
func (t *Table) Unregister(ch *channel.Channel) error {
	t.mu.Lock()
	slot := t.slotOfLocked(ch)
	if slot == "" {
		t.mu.Unlock()
		return chanerrors.InvalidArgument(chanerrors.OpRegister, "can not find channel named %q", ch.Name())
	}
	delete(t.entries, slot)
	t.mu.Unlock()

	t.notify(Event{Channel: ch, Slot: slot, Type: EventDropped})
	if ch.Unref() > 0 || ch.Closed() {
		return nil
	}
	return ch.Close()
}

// Give makes the channel named name available in to under the same slot.
// With move set it is then unregistered here, which never closes it.
func (t *Table) Give(to *Table, name string, move bool) error {
	t.mu.Lock()
	slot, ch := t.lookupLocked(name)
	t.mu.Unlock()
	if ch == nil {
		return chanerrors.InvalidArgument(chanerrors.OpRegister, "can not find channel named %q", name)
	}

	to.mu.Lock()
	if to.closed {
		to.mu.Unlock()
		return chanerrors.Closed(chanerrors.OpRegister, name)
	}
	to.entries[slot] = ch
	ch.Ref()
	to.mu.Unlock()
	to.notify(Event{Channel: ch, Slot: slot, Type: EventRegistered})

	if move {
		return t.Unregister(ch)
	}
	return nil
}

// FlushAll flushes every writable channel, forcing blocking mode for the
// duration. Flush errors are ignored.
func (t *Table) FlushAll(ctx context.Context) {
	for _, ch := range t.channels() {
		if ch.Closed() || !ch.Mode().Writable() {
			continue
		}
		blocking := ch.Blocking()
		if !blocking {
			ch.SetBlocking(true)
		}
		_ = ch.Flush(ctx)
		if !blocking {
			ch.SetBlocking(false)
		}
	}
}

func (t *Table) channels() []*channel.Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[*channel.Channel]bool, len(t.entries))
	out := make([]*channel.Channel, 0, len(t.entries))
	for _, ch := range t.entries {
		if !seen[ch] {
			seen[ch] = true
			out = append(out, ch)
		}
	}
	return out
}

// Subscribe adds an observer and returns a function that removes it.
func (t *Table) Subscribe(o Observer) (unsubscribe func()) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.nextObs++
	id := t.nextObs
	t.observers = append(t.observers, observerEntry{id: id, o: o})
	return func() {
		t.obsMu.Lock()
		defer t.obsMu.Unlock()
		for i, e := range t.observers {
			if e.id == id {
				t.observers = append(t.observers[:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, entry := range t.observers {
		entry.o.OnChannelEvent(e)
	}
}

// Close unregisters every channel and stops accepting new ones.
func (t *Table) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	var err error
	for _, ch := range t.channels() {
		err = multierr.Append(err, t.Unregister(ch))
	}
	return err
}
