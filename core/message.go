package core

import (
	"time"

	"github.com/google/uuid"
)

// Message is one entry of the conversation history. After creation it is
// never mutated; the engine only ever appends new messages.
type Message struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// Mentions holds the agent ids referenced in Content, in first-occurrence
	// order. Duplicates are preserved exactly as parsed.
	Mentions []string `json:"mentions,omitempty"`
	// IsSystem suppresses natural-response evaluation for this message.
	IsSystem bool `json:"is_system,omitempty"`
}

// NewMessage creates a message authored by author with the given mentions.
func NewMessage(author, content string, mentions []string) Message {
	return Message{
		ID:        NewID(),
		Author:    author,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Mentions:  append([]string(nil), mentions...),
	}
}

// NewSystemMessage creates a message that never triggers natural respondents.
// Mentioned agents are still scheduled.
func NewSystemMessage(author, content string, mentions []string) Message {
	m := NewMessage(author, content, mentions)
	m.IsSystem = true
	return m
}

// IsUser reports whether the message was written by the human participant.
func (m Message) IsUser() bool { return m.Author == UserAuthor }

// Mentioned reports whether id occurs in the message's mentions.
func (m Message) Mentioned(id string) bool {
	for _, x := range m.Mentions {
		if x == id {
			return true
		}
	}
	return false
}

// NewID generates a new unique identifier for messages and events.
func NewID() string { return uuid.NewString() }
