package agentchat

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/agentchat/config"
	"github.com/hupe1980/agentchat/engine"
	"github.com/hupe1980/agentchat/logging"
	"github.com/hupe1980/agentchat/model"
	"github.com/hupe1980/agentchat/model/anthropic"
	"github.com/hupe1980/agentchat/model/gemini"
	"github.com/hupe1980/agentchat/model/openai"
	"github.com/hupe1980/agentchat/prompt"
	"github.com/hupe1980/agentchat/registry"
)

// MockReply is what the mock provider answers to every agent invocation.
const MockReply = "Noted."

// NewModel creates the chat model backend described by p.
func NewModel(ctx context.Context, cfg *config.Config, p config.ProviderConfig) (model.Model, error) {
	apiKey := cfg.APIKey(p)

	switch p.Name {
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = apiKey
			if p.Model != "" {
				o.Model = sdk.Model(p.Model)
			}
		}), nil
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = apiKey
			if p.Model != "" {
				o.Model = p.Model
			}
		}), nil
	case config.ProviderGemini:
		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			o.APIKey = apiKey
			if p.Model != "" {
				o.Model = p.Model
			}
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ProviderMock:
		name := p.Model
		if name == "" {
			name = "mock"
		}
		m := model.NewMockModel(name, config.ProviderMock)
		m.SetFallback(MockReply)
		return m, nil
	}

	return nil, fmt.Errorf("unknown provider %q", p.Name)
}

// NewFromConfig wires a Chat from configuration: the agent registry, the
// default and named model backends, the prompt directory and the logger.
// Additional option functions run last and may override any of it.
func NewFromConfig(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Chat, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	reg, err := registry.LoadFile(cfg.AgentsFile)
	if err != nil {
		return nil, err
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewSlogLogger(level, cfg.Logging.Format, false)

	def, err := NewModel(ctx, cfg, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}

	named := make(map[string]model.Model, len(cfg.Models))
	for name, p := range cfg.Models {
		m, err := NewModel(ctx, cfg, p)
		if err != nil {
			return nil, fmt.Errorf("models.%s: %w", name, err)
		}
		named[name] = m
	}

	var closers []func() error

	prompts := prompt.Default(reg)
	if cfg.PromptsDir != "" {
		dir, err := prompt.NewDirectory(cfg.PromptsDir, func(o *prompt.DirectoryOptions) {
			o.Logger = logging.With(logger, "component", "prompt")
		})
		if err != nil {
			return nil, err
		}
		if cfg.WatchPrompts {
			if err := dir.Watch(ctx); err != nil {
				return nil, err
			}
		}
		closers = append(closers, dir.Close)
		prompts = prompt.Chain(prompt.Templated(dir, reg), prompts)
	}

	conv := cfg.Conversation
	pol := cfg.Policy
	triggers := pol.CoordinatorTriggers

	chat, err := New(reg, func(o *Options) {
		o.EngineConfig = engine.Config{
			HistoryWindow:        conv.HistoryWindow,
			CallTimeout:          conv.CallTimeout,
			MaxModelCallsPerTurn: conv.MaxModelCallsPerTurn,
			DispatchTemperature:  conv.DispatchTemperature,
			DispatchMaxTokens:    conv.DispatchMaxTokens,
			OracleTemperature:    pol.OracleTemperature,
			OracleMaxTokens:      pol.OracleMaxTokens,
			RecencyWindow:        pol.RecencyWindow,
			RecencyLimit:         pol.RecencyLimit,
			Stream:               conv.Stream,
		}
		o.Model = def
		o.Models = named
		o.Prompts = prompts
		o.Triggers = &triggers
		o.Pacer = engine.NewRandomPacer(conv.PacingMin, conv.PacingMax)
		o.Logger = logger
		o.closers = closers

		for _, fn := range optFns {
			fn(o)
		}
	})
	if err != nil {
		for _, c := range closers {
			err = errors.Join(err, c())
		}
		return nil, err
	}

	return chat, nil
}
