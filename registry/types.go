package registry

import "github.com/wippyai/chanio/channel"

// EventType is a channel table lifecycle notification.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventDropped
)

func (t EventType) String() string {
	switch t {
	case EventRegistered:
		return "registered"
	case EventDropped:
		return "dropped"
	}
	return "unknown"
}

// Event describes a channel entering or leaving a table.
type Event struct {
	Channel *channel.Channel
	// Slot is the table key; a standard slot name when the channel stands in
	// for stdin, stdout or stderr.
	Slot string
	Type EventType
}

// Observer receives table notifications. Calls happen outside the table lock.
type Observer interface {
	OnChannelEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnChannelEvent(e Event) { f(e) }

// StdSlots are filled, in order, by the first channels registered.
var StdSlots = [...]string{"stdin", "stdout", "stderr"}
