package events

import "time"

// Kind identifies an event type within its namespace, e.g.
// "transcript.user_updated".
type Kind string

// Event is implemented by every session event.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the fields shared by all events and implements the
// non-payload half of Event.
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
