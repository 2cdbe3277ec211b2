package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentchat/core"
	"github.com/hupe1980/agentchat/logging"
	"github.com/hupe1980/agentchat/mention"
	"github.com/hupe1980/agentchat/model"
	"github.com/hupe1980/agentchat/policy"
	"github.com/hupe1980/agentchat/prompt"
	"github.com/hupe1980/agentchat/session"
)

// Config defines tuning parameters for turn processing.
//
// Example:
//
//	cfg := DefaultConfig
//	cfg.CallTimeout = 20 * time.Second
//	cfg.MaxModelCallsPerTurn = 6
type Config struct {
	// HistoryWindow is the number of recent messages rendered into an
	// agent's context.
	HistoryWindow int

	// CallTimeout bounds every single model call (oracle and invocation).
	// Zero disables the per-call deadline; turn cancellation still applies.
	CallTimeout time.Duration

	// MaxModelCallsPerTurn caps oracle calls plus invocations for one
	// incoming message. Zero means unlimited.
	MaxModelCallsPerTurn int

	// DispatchTemperature and DispatchMaxTokens shape agent replies.
	DispatchTemperature float64
	DispatchMaxTokens   int

	// OracleTemperature and OracleMaxTokens shape the YES/NO decision call.
	OracleTemperature float64
	OracleMaxTokens   int

	// RecencyWindow and RecencyLimit configure the throttle: a candidate
	// that wrote RecencyLimit of the last RecencyWindow messages is skipped.
	RecencyWindow int
	RecencyLimit  int

	// Stream requests streaming from model backends.
	Stream bool
}

// DefaultConfig provides the default tuning values.
var DefaultConfig = Config{
	HistoryWindow:       core.DefaultHistoryWindow,
	CallTimeout:         60 * time.Second,
	DispatchTemperature: 0.7,
	DispatchMaxTokens:   1024,
	OracleTemperature:   0.1,
	OracleMaxTokens:     10,
	RecencyWindow:       3,
	RecencyLimit:        2,
}

// Options configures an Engine instance using the functional options pattern.
//
// Only Model is required for a working conversation; every other dependency
// has a default.
type Options struct {
	// Config contains turn processing parameters. Defaults to DefaultConfig.
	Config Config

	// Model is the default backend for agent replies and the decision oracle.
	Model model.Model

	// Models holds named backends referenced by AgentDescriptor.Model.
	Models map[string]model.Model

	// OracleModel overrides the backend of the decision oracle.
	OracleModel model.Model

	// Prompts supplies system prompts. Defaults to prompts synthesized from
	// the agent descriptors.
	Prompts prompt.Source

	// Sessions allocates per-agent session tokens. Defaults to an in-memory
	// registry.
	Sessions core.SessionRegistry

	// Selector replaces the natural respondent heuristic.
	Selector policy.Selector

	// Oracle replaces the model backed decision oracle of the default selector.
	Oracle policy.Oracle

	// Triggers are the coordinator fast-path words. Defaults to
	// policy.DefaultTriggers().
	Triggers *policy.Triggers

	// Shuffle permutes natural respondent candidates. Defaults to a uniform
	// random permutation.
	Shuffle func([]core.AgentDescriptor)

	// Pacer delays the natural respondent. Defaults to 500-1500ms.
	Pacer Pacer

	// Observers are registered in order.
	Observers []Observer

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// Engine orchestrates one conversation between a user and a team of agents.
//
// Lifecycle:
//
//	Idle --StartConversation--> Active --Reset--> Idle
//
// Every incoming message is a turn: the message is appended, the activation
// policy decides who replies (mentioned agents plus at most one natural
// respondent) and the dispatcher invokes them sequentially. Turns are
// serialized. A new SendMessage, StartConversation or Reset cancels the turn
// in flight and waits for it to unwind; the cancelled call returns
// core.ErrTurnSuperseded.
//
// Independent Engines share nothing; run one per conversation.
type Engine struct {
	agents     Agents
	state      *core.State
	sessions   core.SessionRegistry
	parser     *mention.Parser
	policy     *policy.Policy
	dispatcher *Dispatcher
	bus        *Bus
	observers  *ObserverManager
	config     Config
	logger     logging.Logger

	mu     sync.Mutex // protects cancel, gen, tail and closed
	cancel context.CancelFunc
	gen    uint64
	tail   chan struct{} // closed when the latest queued call releases
	closed bool
}

// New creates an idle engine for the agents of a registry.
func New(agents Agents, optFns ...func(o *Options)) (*Engine, error) {
	if agents == nil {
		return nil, errors.New("engine: agents are required")
	}

	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	coordinator := agents.Coordinator()
	if coordinator.ID == "" {
		return nil, errors.New("engine: registry has no coordinator")
	}

	if opts.Prompts == nil {
		opts.Prompts = prompt.Default(agents)
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryRegistry()
	}
	if opts.Pacer == nil {
		opts.Pacer = NewRandomPacer(500*time.Millisecond, 1500*time.Millisecond)
	}

	cfg := opts.Config
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = core.DefaultHistoryWindow
	}

	nameOf := func(id string) string {
		if d, ok := agents.Lookup(id); ok {
			return d.Name()
		}
		return id
	}

	oracle := opts.Oracle
	if oracle == nil {
		oracleModel := opts.OracleModel
		if oracleModel == nil {
			oracleModel = opts.Model
		}
		if oracleModel != nil {
			oracle = policy.NewModelOracle(oracleModel, func(o *policy.ModelOracleOptions) {
				o.Temperature = cfg.OracleTemperature
				o.MaxOutputTokens = cfg.OracleMaxTokens
				o.Timeout = cfg.CallTimeout
				o.NameOf = nameOf
				o.Logger = logging.With(opts.Logger, "component", "oracle")
			})
		}
	}

	triggers := policy.DefaultTriggers()
	if opts.Triggers != nil {
		triggers = *opts.Triggers
	}

	selector := opts.Selector
	if selector == nil {
		selector = policy.NewHeuristicSelector(oracle, func(o *policy.HeuristicOptions) {
			if cfg.RecencyWindow > 0 {
				o.RecencyWindow = cfg.RecencyWindow
			}
			if cfg.RecencyLimit > 0 {
				o.RecencyLimit = cfg.RecencyLimit
			}
			o.Triggers = triggers
			o.Logger = logging.With(opts.Logger, "component", "selector")
		})
	}

	observers := NewObserverManager()
	for _, o := range opts.Observers {
		observers.Register(o)
	}

	parser := mention.NewParser(agents)

	e := &Engine{
		agents:    agents,
		state:     core.NewState(coordinator.ID),
		sessions:  opts.Sessions,
		parser:    parser,
		bus:       NewBus(),
		tail:      closedChan(),
		observers: observers,
		config:    cfg,
		logger:    opts.Logger,
		policy: policy.New(agents, func(o *policy.Options) {
			o.Selector = selector
			o.Shuffle = opts.Shuffle
			o.Logger = logging.With(opts.Logger, "component", "policy")
		}),
	}

	e.dispatcher = &Dispatcher{
		agents:    agents,
		parser:    parser,
		prompts:   opts.Prompts,
		models:    &modelSet{def: opts.Model, named: opts.Models, logger: opts.Logger},
		sessions:  opts.Sessions,
		observers: observers,
		publish:   e.publishMessage,
		opts: DispatcherOptions{
			HistoryWindow:   cfg.HistoryWindow,
			Temperature:     cfg.DispatchTemperature,
			MaxOutputTokens: cfg.DispatchMaxTokens,
			CallTimeout:     cfg.CallTimeout,
			Stream:          cfg.Stream,
			Pacer:           opts.Pacer,
			Logger:          logging.With(opts.Logger, "component", "dispatcher"),
		},
	}

	return e, nil
}

// StartConversation resets the engine and processes text as the first user
// message. It fails with core.ErrConversationActive, leaving everything
// untouched, if a conversation is already running.
func (e *Engine) StartConversation(ctx context.Context, text string) error {
	if e.state.Phase() == core.PhaseActive {
		return core.ErrConversationActive
	}

	turnCtx, release, err := e.beginTurn(ctx, false)
	if err != nil {
		return err
	}
	defer release()

	if e.state.Phase() == core.PhaseActive {
		return core.ErrConversationActive
	}

	e.resetLocked(ctx)
	e.state.SetPhase(core.PhaseActive)
	e.logger.Info("conversation.start")

	return e.runTurn(ctx, turnCtx, core.NewMessage(core.UserAuthor, text, e.parser.ExtractMentions(text)))
}

// SendMessage processes text written by author (core.UserAuthor or an
// agent id). It fails with core.ErrConversationIdle before StartConversation.
func (e *Engine) SendMessage(ctx context.Context, text, author string) error {
	return e.send(ctx, text, author, false)
}

// SendSystemMessage is like SendMessage but the message never draws a
// natural respondent; mentioned agents still reply.
func (e *Engine) SendSystemMessage(ctx context.Context, text, author string) error {
	return e.send(ctx, text, author, true)
}

func (e *Engine) send(ctx context.Context, text, author string, system bool) error {
	if author != core.UserAuthor {
		if _, ok := e.agents.Lookup(author); !ok {
			return fmt.Errorf("%w: %q", core.ErrUnknownAgent, author)
		}
	}
	if e.state.Phase() != core.PhaseActive {
		return core.ErrConversationIdle
	}

	turnCtx, release, err := e.beginTurn(ctx, true)
	if err != nil {
		return err
	}
	defer release()

	if e.state.Phase() != core.PhaseActive {
		return core.ErrConversationIdle
	}

	mentions := e.parser.ExtractMentions(text)
	msg := core.NewMessage(author, text, mentions)
	if system {
		msg = core.NewSystemMessage(author, text, mentions)
	}
	return e.runTurn(ctx, turnCtx, msg)
}

// Reset cancels the turn in flight, clears the history and session tokens,
// returns the active set to the coordinator and publishes a reset event.
// The engine is Idle afterwards, even if another call arrives while the
// reset waits for the turn in flight.
func (e *Engine) Reset() {
	_, release, err := e.beginTurn(context.Background(), false)
	if err != nil {
		return
	}
	defer release()
	e.resetLocked(context.Background())
}

func (e *Engine) resetLocked(ctx context.Context) {
	e.state.Reset()
	e.sessions.Clear()
	e.bus.Publish(core.NewResetEvent())
	if err := e.observers.Execute(ctx, &HookContext{Type: HookReset}); err != nil {
		e.logger.Warn("conversation.observer.error", "hook", string(HookReset), "error", err)
	}
	e.logger.Info("conversation.reset")
}

// beginTurn supersedes the turn in flight and waits until every earlier call
// has released. Calls are served in arrival order. When supersedable is
// false the caller proceeds even if a later call cancelled it while waiting;
// resets rely on this so they are never dropped. The returned release func
// must be called exactly once.
func (e *Engine) beginTurn(ctx context.Context, supersedable bool) (context.Context, func(), error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, nil, ErrClosed
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.gen++
	gen := e.gen
	turnCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	prev, done := e.tail, make(chan struct{})
	e.tail = done
	e.mu.Unlock()

	<-prev

	release := func() {
		e.mu.Lock()
		if e.gen == gen {
			e.cancel = nil
		}
		e.mu.Unlock()
		cancel()
		close(done)
	}

	if err := ctx.Err(); err != nil {
		release()
		return nil, nil, err
	}
	// superseded while waiting for the previous turn
	if supersedable && turnCtx.Err() != nil {
		release()
		return nil, nil, core.ErrTurnSuperseded
	}

	return turnCtx, release, nil
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (e *Engine) runTurn(parent, ctx context.Context, msg core.Message) error {
	limiter := core.NewModelLimiter(e.config.MaxModelCallsPerTurn)
	ctx = core.WithModelLimiter(ctx, limiter)

	e.state.Append(msg)
	e.publishMessage(ctx, msg)

	dec, err := e.policy.Decide(ctx, msg, e.state)
	if err != nil {
		return e.turnError(parent, err)
	}

	e.logger.Info("turn.decision", "message.id", msg.ID, "agents", dec.Agents())
	if err := e.observers.Execute(ctx, &HookContext{Type: HookDecision, Trigger: &msg, Decision: &dec}); err != nil {
		e.logger.Warn("turn.observer.error", "hook", string(HookDecision), "error", err)
	}

	if err := e.dispatcher.Dispatch(ctx, dec, msg, e.state); err != nil {
		return e.turnError(parent, err)
	}

	e.logger.Debug("turn.complete", "message.id", msg.ID, "model.calls", limiter.Count())
	return nil
}

// turnError maps a cancelled turn to ErrTurnSuperseded unless the caller's
// own context ended.
func (e *Engine) turnError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.Canceled) {
		e.logger.Info("turn.superseded")
		return core.ErrTurnSuperseded
	}
	return err
}

func (e *Engine) publishMessage(ctx context.Context, msg core.Message) {
	e.bus.Publish(core.NewMessageEvent(msg))
	if err := e.observers.Execute(ctx, &HookContext{Type: HookMessage, AgentID: msg.Author, Message: &msg}); err != nil {
		e.logger.Warn("turn.observer.error", "hook", string(HookMessage), "error", err)
	}
}

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("engine closed")

// Close cancels the turn in flight, waits for it and closes all event
// subscriptions after delivering pending events.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	if e.cancel != nil {
		e.cancel()
	}
	last := e.tail
	e.mu.Unlock()

	<-last
	e.bus.Close()
	return nil
}

// Subscribe returns a channel of conversation events and its cancel func.
func (e *Engine) Subscribe() (<-chan core.Event, func()) { return e.bus.Subscribe() }

// History returns a copy of the conversation in causal order.
func (e *Engine) History() []core.Message { return e.state.History() }

// ActiveAgents returns the ids of the active agents, coordinator first.
func (e *Engine) ActiveAgents() []string { return e.state.ActiveAgents() }

// Phase returns the lifecycle phase.
func (e *Engine) Phase() core.Phase { return e.state.Phase() }

// SessionTokens returns the session tokens allocated so far.
func (e *Engine) SessionTokens() map[string]string { return e.sessions.Snapshot() }

// Agents returns the registry the engine was built with.
func (e *Engine) Agents() Agents { return e.agents }
