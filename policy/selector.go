package policy

import (
	"context"

	"github.com/hupe1980/agentchat/core"
	"github.com/hupe1980/agentchat/logging"
)

// SelectionContext is what a Selector may inspect while choosing.
type SelectionContext struct {
	Trigger     core.Message
	State       *core.State
	Coordinator string
}

// Selector picks at most one natural respondent from already shuffled
// candidates.
type Selector interface {
	SelectNaturalResponder(ctx context.Context, candidates []core.AgentDescriptor, sc SelectionContext) (string, bool)
}

// SelectorFunc adapts a plain function to the Selector interface.
type SelectorFunc func(ctx context.Context, candidates []core.AgentDescriptor, sc SelectionContext) (string, bool)

// SelectNaturalResponder implements Selector.
func (f SelectorFunc) SelectNaturalResponder(ctx context.Context, candidates []core.AgentDescriptor, sc SelectionContext) (string, bool) {
	return f(ctx, candidates, sc)
}

// HeuristicOptions tunes the default selector.
type HeuristicOptions struct {
	// RecencyWindow is how many of the latest messages the throttle looks at.
	RecencyWindow int
	// RecencyLimit throttles candidates that authored at least this many
	// messages within RecencyWindow.
	RecencyLimit int
	// EarlyHistory lets the coordinator answer without an oracle call while
	// the history holds at most this many messages.
	EarlyHistory int
	// OracleContext is the number of recent messages given to the oracle.
	OracleContext int
	Triggers      Triggers
	Logger        logging.Logger
}

// HeuristicSelector walks the candidates in order and returns the first one
// that survives the recency throttle and is either the coordinator on a
// fast-path trigger or confirmed by the oracle.
type HeuristicSelector struct {
	oracle Oracle
	opts   HeuristicOptions
}

// NewHeuristicSelector creates the default selector. A nil oracle answers NO.
func NewHeuristicSelector(oracle Oracle, optFns ...func(o *HeuristicOptions)) *HeuristicSelector {
	opts := HeuristicOptions{
		RecencyWindow: 3,
		RecencyLimit:  2,
		EarlyHistory:  2,
		OracleContext: 5,
		Triggers:      DefaultTriggers(),
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &HeuristicSelector{oracle: oracle, opts: opts}
}

// SelectNaturalResponder implements Selector.
func (s *HeuristicSelector) SelectNaturalResponder(ctx context.Context, candidates []core.AgentDescriptor, sc SelectionContext) (string, bool) {
	for _, c := range candidates {
		if ctx.Err() != nil {
			return "", false
		}

		if n := sc.State.AuthoredInLast(c.ID, s.opts.RecencyWindow); n >= s.opts.RecencyLimit {
			s.opts.Logger.Debug("policy.candidate.throttled", "agent.id", c.ID, "recent", n)
			continue
		}

		if sc.Trigger.IsSystem {
			s.opts.Logger.Debug("policy.system.suppressed", "message.id", sc.Trigger.ID)
			return "", false
		}

		if c.ID == sc.Coordinator || c.IsDefaultCoordinator {
			if sc.State.Len() <= s.opts.EarlyHistory || s.opts.Triggers.Match(sc.Trigger.Content, c) {
				s.opts.Logger.Debug("policy.coordinator.fastpath", "agent.id", c.ID)
				return c.ID, true
			}
		}

		if s.oracle == nil {
			continue
		}

		ok, err := s.oracle.ShouldRespond(ctx, c, sc.Trigger, sc.State.Recent(s.opts.OracleContext))
		if err != nil {
			s.opts.Logger.Warn("policy.oracle.error", "agent.id", c.ID, "error", err)
			continue
		}
		s.opts.Logger.Debug("policy.oracle.result", "agent.id", c.ID, "respond", ok)
		if ok {
			return c.ID, true
		}
	}
	return "", false
}
