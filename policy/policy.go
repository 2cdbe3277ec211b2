package policy

import (
	"context"
	"math/rand/v2"

	"github.com/hupe1980/agentchat/core"
	"github.com/hupe1980/agentchat/logging"
	"github.com/hupe1980/agentchat/mention"
)

// Options configures a Policy.
type Options struct {
	// Selector chooses the natural respondent. Defaults to a
	// HeuristicSelector over Oracle.
	Selector Selector
	// Oracle backs the default selector. Nil means no oracle calls.
	Oracle Oracle
	// Triggers for the coordinator fast-path of the default selector.
	Triggers Triggers
	// Shuffle permutes the candidate pool in place. Nil means a uniform
	// random permutation.
	Shuffle func([]core.AgentDescriptor)
	Logger  logging.Logger
}

// Policy implements mention admission and natural respondent selection.
type Policy struct {
	agents   mention.Resolver
	selector Selector
	shuffle  func([]core.AgentDescriptor)
	logger   logging.Logger
}

// New creates a policy resolving agent ids through agents.
func New(agents mention.Resolver, optFns ...func(o *Options)) *Policy {
	opts := Options{
		Triggers: DefaultTriggers(),
		Shuffle:  Shuffle,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Shuffle == nil {
		opts.Shuffle = Shuffle
	}
	if opts.Selector == nil {
		opts.Selector = NewHeuristicSelector(opts.Oracle, func(o *HeuristicOptions) {
			o.Triggers = opts.Triggers
			o.Logger = opts.Logger
		})
	}
	return &Policy{
		agents:   agents,
		selector: opts.Selector,
		shuffle:  opts.Shuffle,
		logger:   opts.Logger,
	}
}

// Decide admits every mentioned, mentionable agent into the active set and
// returns them in mention order followed by at most one natural respondent.
// Mentions of the trigger's own author are ignored. Decide only fails when
// ctx is done.
func (p *Policy) Decide(ctx context.Context, trigger core.Message, state *core.State) (core.ActivationDecision, error) {
	if err := ctx.Err(); err != nil {
		return core.ActivationDecision{}, err
	}

	dec := core.ActivationDecision{Mentioned: []string{}}
	scheduled := make(map[string]struct{}, len(trigger.Mentions))

	for _, id := range trigger.Mentions {
		if id == trigger.Author {
			continue
		}
		if _, dup := scheduled[id]; dup {
			continue
		}
		d, ok := p.agents.Lookup(id)
		if !ok || !d.Mentionable {
			continue
		}
		if state.Activate(id) {
			p.logger.Info("policy.agent.admitted", "agent.id", id, "message.id", trigger.ID)
		}
		scheduled[id] = struct{}{}
		dec.Mentioned = append(dec.Mentioned, id)
	}

	var candidates []core.AgentDescriptor
	for _, id := range state.ActiveAgents() {
		if _, ok := scheduled[id]; ok || id == trigger.Author {
			continue
		}
		if d, ok := p.agents.Lookup(id); ok {
			candidates = append(candidates, d)
		}
	}
	p.shuffle(candidates)

	if id, ok := p.selector.SelectNaturalResponder(ctx, candidates, SelectionContext{
		Trigger:     trigger,
		State:       state,
		Coordinator: state.Coordinator(),
	}); ok {
		dec.Natural = id
	}

	if err := ctx.Err(); err != nil {
		return core.ActivationDecision{}, err
	}

	p.logger.Debug("policy.decision", "message.id", trigger.ID, "mentioned", dec.Mentioned, "natural", dec.Natural)

	return dec, nil
}

// Shuffle is the default uniform random permutation.
func Shuffle(c []core.AgentDescriptor) {
	rand.Shuffle(len(c), func(i, j int) { c[i], c[j] = c[j], c[i] })
}
