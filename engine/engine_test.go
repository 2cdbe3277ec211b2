package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/agentchat/core"
	"github.com/hupe1980/agentchat/model"
	"github.com/hupe1980/agentchat/policy"
	"github.com/hupe1980/agentchat/prompt"
	"github.com/hupe1980/agentchat/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.New(
		core.AgentDescriptor{ID: "nova", DisplayName: "Nova", Mentionable: true, IsDefaultCoordinator: true},
		core.AgentDescriptor{ID: "reviewer", DisplayName: "Rae", Mentionable: true},
		core.AgentDescriptor{ID: "qa", DisplayName: "QA", Mentionable: true},
		core.AgentDescriptor{ID: "ops", DisplayName: "Ops", Mentionable: true},
		core.AgentDescriptor{ID: "auditor", DisplayName: "Auditor", Mentionable: false},
	)
	require.NoError(t, err)
	return r
}

var testPrompts = prompt.Static{
	"nova":     "You are Nova",
	"reviewer": "You are Rae",
	"qa":       "You are QA",
	"ops":      "You are Ops",
	"auditor":  "You are Auditor",
}

func newMock() *model.MockModel {
	m := model.NewMockModel("mock", "mock")
	m.SetFallback("On it.")
	return m
}

func newTestEngine(t *testing.T, m model.Model, optFns ...func(o *Options)) *Engine {
	t.Helper()
	fns := append([]func(o *Options){func(o *Options) {
		o.Model = m
		o.Prompts = testPrompts
		o.Pacer = NoPacing
		o.Shuffle = func([]core.AgentDescriptor) {}
	}}, optFns...)
	e, err := New(testRegistry(t), fns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func authors(msgs []core.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Author
	}
	return out
}

// dispatchRequests filters out decision oracle calls.
func dispatchRequests(m *model.MockModel) []model.Request {
	var out []model.Request
	for _, r := range m.Requests() {
		if strings.HasPrefix(r.SystemPrompt, "You are ") {
			out = append(out, r)
		}
	}
	return out
}

func TestScenarioA_CoordinatorFastPath(t *testing.T) {
	m := newMock()
	e := newTestEngine(t, m)

	require.NoError(t, e.StartConversation(context.Background(), "Hello, who can hear me?"))

	history := e.History()
	require.Len(t, history, 2)
	assert.Equal(t, []string{core.UserAuthor, "nova"}, authors(history))
	assert.Equal(t, "On it.", history[1].Content)
	assert.Equal(t, core.PhaseActive, e.Phase())

	reqs := m.Requests()
	require.Len(t, reqs, 1, "fast-path must not consult the oracle")
	assert.Equal(t, e.SessionTokens()["nova"], reqs[0].SessionID)
	assert.Contains(t, reqs[0].Content, "Trigger: natural")
	assert.Contains(t, reqs[0].Content, "User: Hello, who can hear me?")
	require.NotNil(t, reqs[0].Temperature)
	assert.InDelta(t, 0.7, *reqs[0].Temperature, 1e-9)
	assert.Equal(t, 1024, reqs[0].MaxOutputTokens)
}

func TestScenarioB_MentionDrawsAgentIn(t *testing.T) {
	m := newMock()
	e := newTestEngine(t, m)
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))
	assert.Equal(t, []string{"nova"}, e.ActiveAgents())
	before := len(e.History())

	require.NoError(t, e.SendMessage(ctx, "@reviewer please check this", core.UserAuthor))

	history := e.History()
	require.Len(t, history, before+2)
	assert.Equal(t, "reviewer", history[len(history)-1].Author)
	assert.Contains(t, e.ActiveAgents(), "reviewer")

	reqs := dispatchRequests(m)
	last := reqs[len(reqs)-1]
	assert.Equal(t, "You are Rae", last.SystemPrompt)
	assert.Contains(t, last.Content, "Trigger: mention")
	assert.Contains(t, last.Content, "Active agents: Nova (@nova), Rae (@reviewer)")
}

func TestScenarioC_CascadingActivationNextTurnOnly(t *testing.T) {
	m := newMock()
	m.AddResponse("You are Nova", "Let me loop in @qa for the test plan.")
	e := newTestEngine(t, m)

	require.NoError(t, e.StartConversation(context.Background(), "hello"))

	history := e.History()
	assert.Equal(t, []string{core.UserAuthor, "nova"}, authors(history))
	assert.Equal(t, []string{"qa"}, history[1].Mentions)
	assert.Contains(t, e.ActiveAgents(), "qa")

	for _, r := range dispatchRequests(m) {
		assert.NotEqual(t, "You are QA", r.SystemPrompt, "qa must not reply within the same turn")
	}
}

func TestScenarioD_OracleFailuresLeaveOnlyMentions(t *testing.T) {
	m := newMock()
	var decisions []core.ActivationDecision
	e := newTestEngine(t, m, func(o *Options) {
		o.Oracle = policy.OracleFunc(func(context.Context, core.AgentDescriptor, core.Message, []core.Message) (bool, error) {
			return false, errors.New("oracle unavailable")
		})
		o.Observers = []Observer{NewFunctionObserver(HookDecision, func(_ context.Context, hc *HookContext) error {
			decisions = append(decisions, *hc.Decision)
			return nil
		})}
	})
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))
	require.NoError(t, e.SendMessage(ctx, "@ops @qa status report", core.UserAuthor))
	require.NoError(t, e.SendMessage(ctx, "@reviewer please check this", core.UserAuthor))

	require.Len(t, decisions, 3)
	last := decisions[2]
	assert.Equal(t, []string{"reviewer"}, last.Mentioned)
	assert.Empty(t, last.Natural)

	history := e.History()
	assert.Equal(t, "reviewer", history[len(history)-1].Author)
}

func TestReset(t *testing.T) {
	e := newTestEngine(t, newMock())
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))
	require.NoError(t, e.SendMessage(ctx, "@reviewer @qa take a look", core.UserAuthor))
	require.NotEmpty(t, e.SessionTokens())

	e.Reset()

	assert.Empty(t, e.History())
	assert.Equal(t, []string{"nova"}, e.ActiveAgents())
	assert.Empty(t, e.SessionTokens())
	assert.Equal(t, core.PhaseIdle, e.Phase())

	require.NoError(t, e.StartConversation(ctx, "hello again"))
	assert.Len(t, e.History(), 2)
}

func TestProtocolMisuse(t *testing.T) {
	e := newTestEngine(t, newMock())
	ctx := context.Background()

	err := e.SendMessage(ctx, "anyone?", core.UserAuthor)
	assert.ErrorIs(t, err, core.ErrConversationIdle)
	assert.Empty(t, e.History())

	require.NoError(t, e.StartConversation(ctx, "hello"))
	history := e.History()

	err = e.StartConversation(ctx, "hello again")
	assert.ErrorIs(t, err, core.ErrConversationActive)
	assert.Equal(t, history, e.History())

	err = e.SendMessage(ctx, "hi", "ghost")
	assert.ErrorIs(t, err, core.ErrUnknownAgent)
	assert.Equal(t, history, e.History())
}

func TestInvocationFailureSkipsAgent(t *testing.T) {
	m := newMock()
	m.AddError("You are Rae", errors.New("provider down"))
	e := newTestEngine(t, m)
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))
	require.NoError(t, e.SendMessage(ctx, "@reviewer @qa please check", core.UserAuthor))

	history := e.History()
	assert.Equal(t, []string{core.UserAuthor, "nova", core.UserAuthor, "qa"}, authors(history))
	assert.Contains(t, e.ActiveAgents(), "reviewer", "failed agents stay active")
}

func TestUnmentionableAgentIgnored(t *testing.T) {
	e := newTestEngine(t, newMock())
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))
	require.NoError(t, e.SendMessage(ctx, "@auditor are we compliant?", core.UserAuthor))

	assert.NotContains(t, e.ActiveAgents(), "auditor")
	assert.NotContains(t, authors(e.History()), "auditor")
}

func TestSystemMessage(t *testing.T) {
	m := newMock()
	m.AddResponse("Should Nova respond", "YES")
	e := newTestEngine(t, m)
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))
	require.NoError(t, e.SendSystemMessage(ctx, "build 42 finished", core.UserAuthor))

	history := e.History()
	require.Len(t, history, 3)
	assert.True(t, history[2].IsSystem)

	require.NoError(t, e.SendSystemMessage(ctx, "@qa build 43 failed", core.UserAuthor))
	assert.Equal(t, "qa", e.History()[4].Author)
}

func TestModelBudget(t *testing.T) {
	m := newMock()
	e := newTestEngine(t, m, func(o *Options) {
		// one oracle call for nova plus one invocation
		o.Config.MaxModelCallsPerTurn = 2
	})
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))
	require.NoError(t, e.SendMessage(ctx, "@reviewer @qa review please", core.UserAuthor))

	history := e.History()
	assert.Equal(t, "reviewer", history[len(history)-1].Author)
	assert.NotContains(t, authors(history), "qa")
}

func TestPerAgentModel(t *testing.T) {
	def := newMock()
	fast := model.NewMockModel("fast", "mock")
	fast.SetFallback("fast answer")

	r := registry.MustNew(
		core.AgentDescriptor{ID: "nova", Mentionable: true, IsDefaultCoordinator: true},
		core.AgentDescriptor{ID: "qa", Mentionable: true, Model: "fast"},
	)
	e, err := New(r, func(o *Options) {
		o.Model = def
		o.Models = map[string]model.Model{"fast": fast}
		o.Pacer = NoPacing
	})
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.StartConversation(ctx, "hello"))
	require.NoError(t, e.SendMessage(ctx, "@qa ping", core.UserAuthor))

	history := e.History()
	assert.Equal(t, "fast answer", history[len(history)-1].Content)
	require.Len(t, fast.Requests(), 1)
	// default prompts are synthesized from the descriptors
	assert.Contains(t, fast.Requests()[0].SystemPrompt, "You are qa")
}

func TestBeforeAgentObserverVeto(t *testing.T) {
	m := newMock()
	var after []string
	e := newTestEngine(t, m, func(o *Options) {
		o.Observers = []Observer{
			NewFunctionObserver(HookBeforeAgent, func(_ context.Context, hc *HookContext) error {
				if hc.AgentID == "reviewer" {
					return errors.New("reviewer is on leave")
				}
				return nil
			}),
			NewFunctionObserver(HookAfterAgent, func(_ context.Context, hc *HookContext) error {
				after = append(after, hc.AgentID)
				return nil
			}),
		}
	})
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))
	require.NoError(t, e.SendMessage(ctx, "@reviewer @qa thoughts?", core.UserAuthor))

	assert.NotContains(t, authors(e.History()), "reviewer")
	assert.Equal(t, []string{"nova", "qa"}, after)
}

func TestEventsInOrder(t *testing.T) {
	e := newTestEngine(t, newMock())
	events, cancel := e.Subscribe()
	defer cancel()

	require.NoError(t, e.StartConversation(context.Background(), "hello"))
	require.NoError(t, e.Close())

	var got []core.Event
	for ev := range events {
		got = append(got, ev)
	}

	require.Len(t, got, 3)
	assert.Equal(t, core.EventReset, got[0].Type)
	assert.Equal(t, core.EventMessage, got[1].Type)
	assert.Equal(t, core.UserAuthor, got[1].Message.Author)
	assert.Equal(t, "nova", got[2].Message.Author)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Seq, got[i-1].Seq)
	}

	assert.ErrorIs(t, e.SendMessage(context.Background(), "hi", core.UserAuthor), ErrClosed)
}

// blockingModel blocks requests whose system prompt contains match until the
// request context ends.
type blockingModel struct {
	*model.MockModel
	match   string
	started chan struct{}
	once    sync.Once
}

func (b *blockingModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	if !strings.Contains(req.SystemPrompt, b.match) {
		return b.MockModel.Generate(ctx, req)
	}
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	b.once.Do(func() { close(b.started) })
	go func() {
		defer close(respCh)
		defer close(errCh)
		<-ctx.Done()
		errCh <- ctx.Err()
	}()
	return respCh, errCh
}

func TestNewMessageSupersedesTurn(t *testing.T) {
	bm := &blockingModel{MockModel: newMock(), match: "You are Rae", started: make(chan struct{})}
	e := newTestEngine(t, bm, func(o *Options) { o.Config.CallTimeout = time.Minute })
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))

	done := make(chan error, 1)
	go func() { done <- e.SendMessage(ctx, "@reviewer this will hang", core.UserAuthor) }()

	select {
	case <-bm.started:
	case <-time.After(5 * time.Second):
		t.Fatal("reviewer was never invoked")
	}

	require.NoError(t, e.SendMessage(ctx, "@qa never mind", core.UserAuthor))
	assert.ErrorIs(t, <-done, core.ErrTurnSuperseded)

	assert.Equal(t,
		[]string{core.UserAuthor, "nova", core.UserAuthor, core.UserAuthor, "qa"},
		authors(e.History()),
	)
}

func TestResetSupersedesTurn(t *testing.T) {
	bm := &blockingModel{MockModel: newMock(), match: "You are Rae", started: make(chan struct{})}
	e := newTestEngine(t, bm)
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))

	done := make(chan error, 1)
	go func() { done <- e.SendMessage(ctx, "@reviewer this will hang", core.UserAuthor) }()
	<-bm.started

	e.Reset()

	assert.ErrorIs(t, <-done, core.ErrTurnSuperseded)
	assert.Empty(t, e.History())
	assert.Equal(t, core.PhaseIdle, e.Phase())
}

func TestResetNotDroppedByLaterMessage(t *testing.T) {
	hold := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	e := newTestEngine(t, newMock(), func(o *Options) {
		o.Observers = []Observer{NewFunctionObserver(HookBeforeAgent, func(_ context.Context, hc *HookContext) error {
			if hc.AgentID == "reviewer" {
				once.Do(func() { close(entered) })
				<-hold
			}
			return nil
		})}
	})
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))

	first := make(chan error, 1)
	go func() { first <- e.SendMessage(ctx, "@reviewer take a look", core.UserAuthor) }()
	<-entered

	resetDone := make(chan struct{})
	go func() {
		e.Reset()
		close(resetDone)
	}()
	waitForGen(t, e, 3)

	second := make(chan error, 1)
	go func() { second <- e.SendMessage(ctx, "@qa after reset", core.UserAuthor) }()
	waitForGen(t, e, 4)

	close(hold)
	<-resetDone

	assert.ErrorIs(t, <-first, core.ErrTurnSuperseded)
	assert.ErrorIs(t, <-second, core.ErrConversationIdle)
	assert.Equal(t, core.PhaseIdle, e.Phase())
	assert.Empty(t, e.History())
	assert.Equal(t, []string{"nova"}, e.ActiveAgents())
}

// waitForGen blocks until n calls have queued for the turn.
func waitForGen(t *testing.T, e *Engine, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.gen >= n
	}, 5*time.Second, time.Millisecond)
}

func TestPacingOnlyBeforeNaturalRespondent(t *testing.T) {
	var waits atomic.Int32
	var join atomic.Bool
	join.Store(true)

	e := newTestEngine(t, newMock(), func(o *Options) {
		o.Pacer = PacerFunc(func(ctx context.Context) error {
			waits.Add(1)
			return ctx.Err()
		})
		o.Oracle = policy.OracleFunc(func(context.Context, core.AgentDescriptor, core.Message, []core.Message) (bool, error) {
			return join.Load(), nil
		})
	})
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))
	assert.Equal(t, int32(1), waits.Load(), "coordinator fast path is natural")

	require.NoError(t, e.SendMessage(ctx, "@reviewer check the diff", core.UserAuthor))
	assert.Equal(t, []string{core.UserAuthor, "nova", core.UserAuthor, "reviewer", "nova"}, authors(e.History()))
	assert.Equal(t, int32(2), waits.Load(), "one wait for mention plus natural")

	join.Store(false)
	require.NoError(t, e.SendMessage(ctx, "@qa write the tests", core.UserAuthor))
	history := e.History()
	assert.Equal(t, "qa", history[len(history)-1].Author)
	assert.Equal(t, int32(2), waits.Load(), "mentions are never paced")
}

func TestCallTimeoutSkipsAgent(t *testing.T) {
	bm := &blockingModel{MockModel: newMock(), match: "You are Rae", started: make(chan struct{})}
	e := newTestEngine(t, bm, func(o *Options) { o.Config.CallTimeout = 50 * time.Millisecond })
	ctx := context.Background()

	require.NoError(t, e.StartConversation(ctx, "hello"))
	require.NoError(t, e.SendMessage(ctx, "@reviewer @qa check", core.UserAuthor))

	assert.Equal(t, []string{core.UserAuthor, "nova", core.UserAuthor, "qa"}, authors(e.History()))
}

func TestCallerCancellation(t *testing.T) {
	bm := &blockingModel{MockModel: newMock(), match: "You are Rae", started: make(chan struct{})}
	e := newTestEngine(t, bm)

	require.NoError(t, e.StartConversation(context.Background(), "hello"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.SendMessage(ctx, "@reviewer hang", core.UserAuthor) }()
	<-bm.started
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
