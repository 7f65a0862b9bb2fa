package oauth

import "time"

// EventType names a session lifecycle notification.
type EventType string

const (
	EventCreate EventType = "create"
	EventBegin  EventType = "begin"
	EventKill   EventType = "kill"
)

// Event is emitted after a successful lifecycle transition.
// Kill events only carry SessionID; the others carry the affected Session as well.
type Event struct {
	Type      EventType
	Session   Session
	SessionID string
	At        time.Time
}
