package sim

import (
	"github.com/michaelsproul/ewok/message"
	"github.com/michaelsproul/ewok/name"
)

// EventKind identifies a driver-injected membership event.
type EventKind int

const (
	EventAddNode EventKind = iota
	EventRemoveNode
	EventRemoveNodeFromPrefix
)

// Event is a membership change the driver injects at a given step,
// either chosen at random or read off a pre-built EventSchedule.
type Event struct {
	Kind   EventKind
	Name   name.Name
	Prefix name.Prefix
}

// normalise turns a RemoveNodeFromPrefix event into a concrete RemoveNode
// event by picking a currently live name under that prefix. Returns false
// if no such node exists.
func (e Event) normalise(liveNames []name.Name) (Event, bool) {
	if e.Kind != EventRemoveNodeFromPrefix {
		return e, true
	}
	for _, n := range liveNames {
		if e.Prefix.Matches(n) {
			return Event{Kind: EventRemoveNode, Name: n}, true
		}
	}
	return Event{}, false
}

// broadcastTo materialises the driver-originated notifications for e,
// fanned out to every name in recipients.
func (e Event) broadcastTo(recipients []name.Name) []message.Message {
	var kind message.Kind
	switch e.Kind {
	case EventAddNode:
		kind = message.KindNodeJoined
	case EventRemoveNode:
		kind = message.KindDisconnect
	default:
		return nil
	}

	out := make([]message.Message, 0, len(recipients))
	for _, r := range recipients {
		if r == e.Name {
			continue
		}
		out = append(out, message.Message{
			Sender: e.Name, Recipient: r,
			Content: message.Content{Kind: kind},
		})
	}
	return out
}

// EventSchedule holds events to occur at pre-determined steps, for
// reproducing the worked scenarios.
type EventSchedule struct {
	byStep map[uint64][]Event
}

// NewEventSchedule builds a schedule from a step -> events map.
func NewEventSchedule(byStep map[uint64][]Event) *EventSchedule {
	return &EventSchedule{byStep: byStep}
}

// EmptySchedule returns a schedule with no events.
func EmptySchedule() *EventSchedule {
	return &EventSchedule{byStep: map[uint64][]Event{}}
}

// At returns the events scheduled for step.
func (s *EventSchedule) At(step uint64) []Event {
	return s.byStep[step]
}
