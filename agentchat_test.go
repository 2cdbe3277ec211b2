package agentchat

import (
	"context"
	"testing"

	"github.com/hupe1980/agentchat/config"
	"github.com/hupe1980/agentchat/core"
	"github.com/hupe1980/agentchat/engine"
	"github.com/hupe1980/agentchat/model"
	"github.com/hupe1980/agentchat/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testRegistry() *registry.Registry {
	return registry.MustNew(
		core.AgentDescriptor{ID: "nova", DisplayName: "Nova", Mentionable: true, IsDefaultCoordinator: true},
		core.AgentDescriptor{ID: "ops", DisplayName: "Ops", Mentionable: true},
	)
}

func newTestChat(t *testing.T, m model.Model) *Chat {
	t.Helper()
	chat, err := New(testRegistry(), func(o *Options) {
		o.Model = m
		o.Pacer = engine.NoPacing
		o.Shuffle = func([]core.AgentDescriptor) {}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = chat.Close() })
	return chat
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(testRegistry())
	require.Error(t, err)
}

func TestChat_Ask(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("Answer YES or NO", "NO")
	m.AddResponse("Respond as Ops.", "Deploy is green.")
	m.SetFallback("Hi, I am Nova.")

	chat := newTestChat(t, m)

	replies, err := chat.Ask(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "nova", replies[0].Author)
	assert.Equal(t, core.PhaseActive, chat.Phase())

	replies, err = chat.Ask(context.Background(), "@ops how is the deploy?")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "ops", replies[0].Author)
	assert.Equal(t, "Deploy is green.", replies[0].Content)

	assert.Equal(t, []string{"nova", "ops"}, chat.ActiveAgents())
	assert.Len(t, chat.History(), 4)
	assert.Contains(t, chat.SessionTokens(), "ops")
}

func TestChat_ProtocolErrors(t *testing.T) {
	chat := newTestChat(t, model.NewMockModel("mock", "mock"))

	err := chat.SendMessage(context.Background(), "anyone?", core.UserAuthor)
	require.ErrorIs(t, err, core.ErrConversationIdle)

	require.NoError(t, chat.StartConversation(context.Background(), "hi"))
	err = chat.StartConversation(context.Background(), "hi again")
	require.ErrorIs(t, err, core.ErrConversationActive)

	chat.Reset()
	assert.Equal(t, core.PhaseIdle, chat.Phase())
	assert.Empty(t, chat.History())
	assert.Equal(t, []string{"nova"}, chat.ActiveAgents())
}

func TestNewModel(t *testing.T) {
	cfg := config.Default()
	cfg.APIKeys.Anthropic = "test-key"
	cfg.APIKeys.OpenAI = "test-key"

	tests := []struct {
		name     string
		provider config.ProviderConfig
		want     model.Info
	}{
		{"anthropic", config.ProviderConfig{Name: config.ProviderAnthropic, Model: "claude-3-5-haiku-latest"}, model.Info{Name: "claude-3-5-haiku-latest", Provider: "anthropic"}},
		{"openai", config.ProviderConfig{Name: config.ProviderOpenAI, Model: "gpt-4o"}, model.Info{Name: "gpt-4o", Provider: "openai"}},
		{"mock", config.ProviderConfig{Name: config.ProviderMock}, model.Info{Name: "mock", Provider: "mock"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewModel(context.Background(), cfg, tt.provider)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Info())
		})
	}

	_, err := NewModel(context.Background(), cfg, config.ProviderConfig{Name: "bogus"})
	require.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = config.ProviderConfig{Name: config.ProviderMock}
	cfg.AgentsFile = "registry/testdata/agents.yaml"
	cfg.PromptsDir = "prompt/testdata/prompts"
	cfg.Logging.Level = "error"

	chat, err := NewFromConfig(context.Background(), cfg, func(o *Options) {
		o.Pacer = engine.NoPacing
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, chat.Close()) }()

	assert.Equal(t, "nova", chat.Agents().Coordinator().ID)

	replies, err := chat.Ask(context.Background(), "hello team")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "nova", replies[0].Author)
	assert.Equal(t, MockReply, replies[0].Content)
}

func TestNewFromConfig_Invalid(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Name = "bogus"
	_, err := NewFromConfig(context.Background(), cfg)
	require.Error(t, err)

	cfg = config.Default()
	cfg.Provider.Name = config.ProviderMock
	cfg.AgentsFile = "does-not-exist.yaml"
	_, err = NewFromConfig(context.Background(), cfg)
	require.Error(t, err)
}
