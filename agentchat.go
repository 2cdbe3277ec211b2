// Package agentchat provides a high-level façade over the conversation
// engine: a team of AI agents sharing one text conversation with a human
// user. Most applications interact with this package by:
//  1. Loading an agent registry (registry.LoadFile) and a model backend
//  2. Creating a Chat via New() or, from a config file, NewFromConfig()
//  3. Starting the conversation and sending messages; agents reply when they
//     are @-mentioned or when the activation policy picks them
//
// The façade delegates orchestration to engine.Engine while keeping setup and
// usage ergonomics concise.
package agentchat

import (
	"context"
	"errors"

	"github.com/hupe1980/agentchat/core"
	"github.com/hupe1980/agentchat/engine"
	"github.com/hupe1980/agentchat/logging"
	"github.com/hupe1980/agentchat/model"
	"github.com/hupe1980/agentchat/policy"
	"github.com/hupe1980/agentchat/prompt"
	"github.com/hupe1980/agentchat/registry"
)

// Version is the agentchat release.
const Version = "0.1.0"

// Options configures the Chat instance.
type Options struct {
	// Engine configuration (history window, timeouts, budgets)
	EngineConfig engine.Config

	// Model is the default backend; Models holds named backends referenced by
	// AgentDescriptor.Model.
	Model  model.Model
	Models map[string]model.Model

	// Prompts defaults to prompts synthesized from the descriptors.
	Prompts prompt.Source

	// Triggers overrides the coordinator fast-path vocabulary.
	Triggers *policy.Triggers

	// Pacer delays the natural respondent (defaults to 500-1500ms).
	Pacer engine.Pacer

	// Shuffle permutes natural respondent candidates (defaults to random).
	Shuffle func([]core.AgentDescriptor)

	Observers []engine.Observer

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	closers []func() error
}

// Chat is the high-level façade of one conversation.
type Chat struct {
	opts   Options
	engine *engine.Engine
}

// New creates a Chat for the agents of reg.
func New(reg *registry.Registry, optFns ...func(o *Options)) (*Chat, error) {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Model == nil {
		return nil, errors.New("agentchat: a model is required")
	}

	e, err := engine.New(reg, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Model = opts.Model
		o.Models = opts.Models
		o.Prompts = opts.Prompts
		o.Triggers = opts.Triggers
		o.Pacer = opts.Pacer
		o.Shuffle = opts.Shuffle
		o.Observers = opts.Observers
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	return &Chat{opts: opts, engine: e}, nil
}

// StartConversation resets the chat and sends text as the first user message.
func (c *Chat) StartConversation(ctx context.Context, text string) error {
	return c.engine.StartConversation(ctx, text)
}

// SendMessage sends text authored by author (core.UserAuthor or an agent id).
func (c *Chat) SendMessage(ctx context.Context, text, author string) error {
	return c.engine.SendMessage(ctx, text, author)
}

// SendSystemMessage sends a notice that only mentioned agents answer.
func (c *Chat) SendSystemMessage(ctx context.Context, text, author string) error {
	return c.engine.SendSystemMessage(ctx, text, author)
}

// Ask is a synchronous helper: it sends text as the user (starting the
// conversation if needed) and returns the agent replies of that turn.
func (c *Chat) Ask(ctx context.Context, text string) ([]core.Message, error) {
	before := len(c.engine.History())

	var err error
	if c.engine.Phase() == core.PhaseIdle {
		before = 0
		err = c.engine.StartConversation(ctx, text)
	} else {
		err = c.engine.SendMessage(ctx, text, core.UserAuthor)
	}
	if err != nil {
		return nil, err
	}

	history := c.engine.History()
	if before >= len(history) {
		return nil, nil
	}
	// the first new message is the user's own
	return append([]core.Message(nil), history[before+1:]...), nil
}

// Reset clears the conversation.
func (c *Chat) Reset() { c.engine.Reset() }

// History returns the conversation so far.
func (c *Chat) History() []core.Message { return c.engine.History() }

// ActiveAgents returns the ids of the agents taking part.
func (c *Chat) ActiveAgents() []string { return c.engine.ActiveAgents() }

// Phase returns whether a conversation is running.
func (c *Chat) Phase() core.Phase { return c.engine.Phase() }

// SessionTokens returns the per-agent session tokens.
func (c *Chat) SessionTokens() map[string]string { return c.engine.SessionTokens() }

// Subscribe streams conversation events.
func (c *Chat) Subscribe() (<-chan core.Event, func()) { return c.engine.Subscribe() }

// Agents returns the registry view of the engine.
func (c *Chat) Agents() engine.Agents { return c.engine.Agents() }

// Engine exposes the underlying engine.
func (c *Chat) Engine() *engine.Engine { return c.engine }

// Close stops the engine and releases resources such as prompt watchers.
func (c *Chat) Close() error {
	errs := []error{c.engine.Close()}
	for _, fn := range c.opts.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}
