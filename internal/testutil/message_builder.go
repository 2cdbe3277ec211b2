package testutil

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentchat/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().From("nova").Text("hi @ops").Mentions("ops").Build()
//
// Chain only the parts you need; the author defaults to the user.
type MessageBuilder struct {
	msg core.Message
}

// NewMessageBuilder creates a builder for a user message.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{msg: core.Message{Author: core.UserAuthor}}
}

// From sets the author (chainable).
func (b *MessageBuilder) From(author string) *MessageBuilder { b.msg.Author = author; return b }

// Text sets the content (chainable).
func (b *MessageBuilder) Text(t string) *MessageBuilder { b.msg.Content = t; return b }

// Mentions appends parsed mentions (chainable).
func (b *MessageBuilder) Mentions(ids ...string) *MessageBuilder {
	b.msg.Mentions = append(b.msg.Mentions, ids...)
	return b
}

// System marks the message as a system notice (chainable).
func (b *MessageBuilder) System() *MessageBuilder { b.msg.IsSystem = true; return b }

// ID overrides the generated id (chainable).
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.msg.ID = id; return b }

// At sets the timestamp (chainable).
func (b *MessageBuilder) At(ts time.Time) *MessageBuilder { b.msg.Timestamp = ts; return b }

// Build returns the message, filling id and timestamp when unset.
func (b *MessageBuilder) Build() core.Message {
	m := b.msg
	if m.ID == "" {
		m.ID = core.NewID()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	m.Mentions = append([]string(nil), m.Mentions...)
	return m
}

// StateWith returns an active state for coordinator whose history holds one
// numbered message per author.
func StateWith(coordinator string, authors ...string) *core.State {
	s := core.NewState(coordinator)
	s.SetPhase(core.PhaseActive)
	for i, a := range authors {
		s.Append(NewMessageBuilder().From(a).Text(fmt.Sprintf("message %d", i)).Build())
	}
	return s
}
