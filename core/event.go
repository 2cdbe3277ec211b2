package core

import "time"

// EventType classifies an Event published by the orchestrator.
type EventType string

const (
	// EventMessage is published after a message has been appended to history.
	EventMessage EventType = "message"
	// EventReset is published after the conversation state has been cleared.
	EventReset EventType = "conversation-reset"
)

// Event is the unit of notification delivered to subscribers. Seq increases
// monotonically per engine so consumers can detect gaps or duplicates.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessageEvent wraps a copy of msg into a message event.
func NewMessageEvent(msg Message) Event {
	m := msg
	return Event{Type: EventMessage, Message: &m, Timestamp: time.Now().UTC()}
}

// NewResetEvent creates a conversation-reset event.
func NewResetEvent() Event {
	return Event{Type: EventReset, Timestamp: time.Now().UTC()}
}
