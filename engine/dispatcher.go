package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentchat/core"
	"github.com/hupe1980/agentchat/logging"
	"github.com/hupe1980/agentchat/mention"
	"github.com/hupe1980/agentchat/model"
	"github.com/hupe1980/agentchat/prompt"
)

// ErrNoModel is returned when no model backend serves an agent.
var ErrNoModel = errors.New("no model configured")

// Agents is the read-only view of the agent registry the engine needs.
// *registry.Registry satisfies it.
type Agents interface {
	Lookup(id string) (core.AgentDescriptor, bool)
	All() []core.AgentDescriptor
	Coordinator() core.AgentDescriptor
}

// DispatcherOptions tunes agent invocations.
type DispatcherOptions struct {
	HistoryWindow   int
	Temperature     float64
	MaxOutputTokens int
	CallTimeout     time.Duration
	Stream          bool
	Pacer           Pacer
	Logger          logging.Logger
}

// Dispatcher invokes the agents of an activation decision one after another
// and appends their replies.
type Dispatcher struct {
	agents    Agents
	parser    *mention.Parser
	prompts   prompt.Source
	models    *modelSet
	sessions  core.SessionRegistry
	observers *ObserverManager
	publish   func(ctx context.Context, msg core.Message)
	opts      DispatcherOptions
}

// Dispatch runs every agent of dec strictly sequentially. The natural
// respondent is paced first. A failing agent is logged and skipped; only
// cancellation of ctx aborts the queue, returning ctx.Err().
//
// Agents mentioned in a reply are admitted to the active set but are not
// invoked within this turn.
func (d *Dispatcher) Dispatch(ctx context.Context, dec core.ActivationDecision, trigger core.Message, state *core.State) error {
	for _, id := range dec.Agents() {
		if err := ctx.Err(); err != nil {
			return err
		}

		kind := dec.KindFor(id)
		if kind == core.TriggerNatural {
			if err := d.opts.Pacer.Wait(ctx); err != nil {
				return err
			}
		}

		agent, ok := d.agents.Lookup(id)
		if !ok {
			d.opts.Logger.Warn("dispatch.agent.skipped", "agent.id", id, "error", core.ErrUnknownAgent)
			continue
		}

		if err := d.observers.Execute(ctx, &HookContext{Type: HookBeforeAgent, AgentID: id, Kind: kind, Trigger: &trigger}); err != nil {
			d.opts.Logger.Info("dispatch.agent.vetoed", "agent.id", id, "error", err)
			continue
		}

		msg, err := d.invoke(ctx, agent, kind, state)

		if ctx.Err() != nil {
			// superseded or cancelled turns never append
			return ctx.Err()
		}

		after := &HookContext{Type: HookAfterAgent, AgentID: id, Kind: kind, Trigger: &trigger, Err: err}
		if err != nil {
			d.opts.Logger.Warn("dispatch.agent.skipped", "agent.id", id, "trigger", string(kind), "error", err)
			d.runObservers(ctx, after)
			continue
		}

		for _, m := range msg.Mentions {
			if m == agent.ID {
				continue
			}
			if md, ok := d.agents.Lookup(m); ok && md.Mentionable && state.Activate(m) {
				d.opts.Logger.Info("dispatch.agent.admitted", "agent.id", m, "by", agent.ID)
			}
		}

		state.Append(msg)
		d.publish(ctx, msg)

		after.Message = &msg
		d.runObservers(ctx, after)
	}
	return nil
}

func (d *Dispatcher) runObservers(ctx context.Context, hc *HookContext) {
	if err := d.observers.Execute(ctx, hc); err != nil {
		d.opts.Logger.Warn("dispatch.observer.error", "hook", string(hc.Type), "error", err)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, agent core.AgentDescriptor, kind core.TriggerKind, state *core.State) (core.Message, error) {
	system, err := d.prompts.PromptFor(agent.ID)
	if err != nil {
		return core.Message{}, fmt.Errorf("prompt: %w", err)
	}

	m := d.models.For(agent)
	if m == nil {
		return core.Message{}, fmt.Errorf("%w for agent %s", ErrNoModel, agent.ID)
	}

	if err := core.ModelLimiterFromContext(ctx).Acquire(); err != nil {
		return core.Message{}, err
	}

	token := d.sessions.TokenFor(agent.ID)
	content := d.buildContext(agent, kind, token, state)

	callCtx := ctx
	if d.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.opts.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := model.Complete(callCtx, m, model.Request{
		SystemPrompt:    system,
		Content:         content,
		Temperature:     model.Float(d.opts.Temperature),
		MaxOutputTokens: d.opts.MaxOutputTokens,
		SessionID:       token,
		Stream:          d.opts.Stream,
	})
	logging.LogModelCall(d.opts.Logger, m.Info().Name, "dispatch", time.Since(start), err, "agent.id", agent.ID)
	if err != nil {
		return core.Message{}, err
	}

	text = strings.TrimSpace(text)
	return core.NewMessage(agent.ID, text, d.parser.ExtractMentions(text)), nil
}

// buildContext renders the sole user turn of an invocation.
func (d *Dispatcher) buildContext(agent core.AgentDescriptor, kind core.TriggerKind, token string, state *core.State) string {
	var b strings.Builder

	active := state.ActiveAgents()
	labels := make([]string, 0, len(active))
	for _, id := range active {
		labels = append(labels, fmt.Sprintf("%s (@%s)", d.nameOf(id), id))
	}
	fmt.Fprintf(&b, "Active agents: %s\n", strings.Join(labels, ", "))
	fmt.Fprintf(&b, "Session: %s\n", token)

	switch kind {
	case core.TriggerMention:
		b.WriteString("Trigger: mention (you were addressed directly)\n")
	default:
		b.WriteString("Trigger: natural (you decided to join in)\n")
	}

	b.WriteString("\nRecent conversation:\n")
	b.WriteString(core.Transcript(state.Recent(d.opts.HistoryWindow), d.nameOf))
	fmt.Fprintf(&b, "\n\nRespond as %s.", agent.Name())

	return b.String()
}

func (d *Dispatcher) nameOf(id string) string {
	if a, ok := d.agents.Lookup(id); ok {
		return a.Name()
	}
	return id
}

// modelSet resolves the backend of an agent: its named model when
// configured, otherwise the default.
type modelSet struct {
	def    model.Model
	named  map[string]model.Model
	logger logging.Logger
}

func (s *modelSet) For(agent core.AgentDescriptor) model.Model {
	if agent.Model != "" {
		if m, ok := s.named[agent.Model]; ok {
			return m
		}
		s.logger.Warn("dispatch.model.unknown", "agent.id", agent.ID, "model", agent.Model)
	}
	return s.def
}
