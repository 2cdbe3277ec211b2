// Package config handles configuration loading for agentchat.
// It layers built-in defaults, a YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/agentchat/logging"
	"github.com/hupe1980/agentchat/policy"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. AGENTCHAT_PROVIDER_NAME.
const EnvPrefix = "AGENTCHAT"

// Provider names understood by the model factory.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Config holds all configuration for agentchat.
type Config struct {
	Provider     ProviderConfig            `mapstructure:"provider"`
	Models       map[string]ProviderConfig `mapstructure:"models"`
	APIKeys      APIKeysConfig             `mapstructure:"api_keys"`
	AgentsFile   string                    `mapstructure:"agents_file"`
	PromptsDir   string                    `mapstructure:"prompts_dir"`
	WatchPrompts bool                      `mapstructure:"watch_prompts"`
	Conversation ConversationConfig        `mapstructure:"conversation"`
	Policy       PolicyConfig              `mapstructure:"policy"`
	Logging      LoggingConfig             `mapstructure:"logging"`
}

// ProviderConfig selects a chat model backend.
type ProviderConfig struct {
	// Name is one of anthropic, openai, gemini or mock.
	Name string `mapstructure:"name"`
	// Model is the provider specific model id. Empty uses the adapter default.
	Model string `mapstructure:"model"`
	// APIKey overrides the key from APIKeysConfig.
	APIKey string `mapstructure:"api_key"`
}

// APIKeysConfig holds provider credentials. They are bound to the
// conventional ANTHROPIC_API_KEY, OPENAI_API_KEY and GEMINI_API_KEY variables.
type APIKeysConfig struct {
	Anthropic string `mapstructure:"anthropic"`
	OpenAI    string `mapstructure:"openai"`
	Gemini    string `mapstructure:"gemini"`
}

// ConversationConfig tunes turn processing.
type ConversationConfig struct {
	HistoryWindow        int           `mapstructure:"history_window"`
	CallTimeout          time.Duration `mapstructure:"call_timeout"`
	PacingMin            time.Duration `mapstructure:"pacing_min"`
	PacingMax            time.Duration `mapstructure:"pacing_max"`
	MaxModelCallsPerTurn int           `mapstructure:"max_model_calls_per_turn"`
	DispatchTemperature  float64       `mapstructure:"dispatch_temperature"`
	DispatchMaxTokens    int           `mapstructure:"dispatch_max_tokens"`
	Stream               bool          `mapstructure:"stream"`
}

// PolicyConfig tunes natural respondent selection.
type PolicyConfig struct {
	CoordinatorTriggers policy.Triggers `mapstructure:"coordinator_triggers"`
	OracleTemperature   float64         `mapstructure:"oracle_temperature"`
	OracleMaxTokens     int             `mapstructure:"oracle_max_tokens"`
	RecencyWindow       int             `mapstructure:"recency_window"`
	RecencyLimit        int             `mapstructure:"recency_limit"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration. Precedence (highest to lowest):
//  1. Environment variables (AGENTCHAT_*, provider key variables)
//  2. The file at path, or ./agentchat.yaml when path is empty
//  3. User config ($XDG_CONFIG_HOME/agentchat/config.yaml)
//  4. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(userConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading user config: %w", err)
			}
		}

		if _, err := os.Stat(ProjectConfigFile); err == nil {
			project := viper.New()
			project.SetConfigFile(ProjectConfigFile)
			if err := project.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading project config: %w", err)
			}
			if err := v.MergeConfigMap(project.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api_keys.anthropic", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("api_keys.openai", "OPENAI_API_KEY")
	_ = v.BindEnv("api_keys.gemini", "GEMINI_API_KEY", "GOOGLE_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Provider.APIKey = os.ExpandEnv(cfg.Provider.APIKey)
	for name, p := range cfg.Models {
		p.APIKey = os.ExpandEnv(p.APIKey)
		cfg.Models[name] = p
	}

	return cfg, nil
}

// ProjectConfigFile is the project level config looked up in the working directory.
const ProjectConfigFile = "agentchat.yaml"

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("provider.name", d.Provider.Name)
	v.SetDefault("provider.model", d.Provider.Model)
	v.SetDefault("provider.api_key", "")

	v.SetDefault("api_keys.anthropic", "")
	v.SetDefault("api_keys.openai", "")
	v.SetDefault("api_keys.gemini", "")

	v.SetDefault("agents_file", d.AgentsFile)
	v.SetDefault("prompts_dir", d.PromptsDir)
	v.SetDefault("watch_prompts", d.WatchPrompts)

	v.SetDefault("conversation.history_window", d.Conversation.HistoryWindow)
	v.SetDefault("conversation.call_timeout", d.Conversation.CallTimeout.String())
	v.SetDefault("conversation.pacing_min", d.Conversation.PacingMin.String())
	v.SetDefault("conversation.pacing_max", d.Conversation.PacingMax.String())
	v.SetDefault("conversation.max_model_calls_per_turn", d.Conversation.MaxModelCallsPerTurn)
	v.SetDefault("conversation.dispatch_temperature", d.Conversation.DispatchTemperature)
	v.SetDefault("conversation.dispatch_max_tokens", d.Conversation.DispatchMaxTokens)
	v.SetDefault("conversation.stream", d.Conversation.Stream)

	v.SetDefault("policy.coordinator_triggers.greetings", d.Policy.CoordinatorTriggers.Greetings)
	v.SetDefault("policy.coordinator_triggers.keywords", d.Policy.CoordinatorTriggers.Keywords)
	v.SetDefault("policy.oracle_temperature", d.Policy.OracleTemperature)
	v.SetDefault("policy.oracle_max_tokens", d.Policy.OracleMaxTokens)
	v.SetDefault("policy.recency_window", d.Policy.RecencyWindow)
	v.SetDefault("policy.recency_limit", d.Policy.RecencyLimit)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// userConfigDir returns the XDG config directory for agentchat.
func userConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "agentchat")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "agentchat")
	}
	return filepath.Join(home, ".config", "agentchat")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Provider:   ProviderConfig{Name: ProviderAnthropic},
		AgentsFile: "agents.yaml",
		Conversation: ConversationConfig{
			HistoryWindow:       10,
			CallTimeout:         60 * time.Second,
			PacingMin:           500 * time.Millisecond,
			PacingMax:           1500 * time.Millisecond,
			DispatchTemperature: 0.7,
			DispatchMaxTokens:   1024,
		},
		Policy: PolicyConfig{
			CoordinatorTriggers: policy.DefaultTriggers(),
			OracleTemperature:   0.1,
			OracleMaxTokens:     10,
			RecencyWindow:       3,
			RecencyLimit:        2,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// APIKey returns the credential for p: its own APIKey, else the shared key
// of its provider.
func (c *Config) APIKey(p ProviderConfig) string {
	if p.APIKey != "" {
		return p.APIKey
	}
	switch p.Name {
	case ProviderAnthropic:
		return c.APIKeys.Anthropic
	case ProviderOpenAI:
		return c.APIKeys.OpenAI
	case ProviderGemini:
		return c.APIKeys.Gemini
	}
	return ""
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if err := validProvider(c.Provider.Name); err != nil {
		errs = append(errs, fmt.Errorf("provider: %w", err))
	}
	for name, p := range c.Models {
		if err := validProvider(p.Name); err != nil {
			errs = append(errs, fmt.Errorf("models.%s: %w", name, err))
		}
	}

	conv := c.Conversation
	if conv.HistoryWindow <= 0 {
		errs = append(errs, fmt.Errorf("conversation.history_window must be positive, got %d", conv.HistoryWindow))
	}
	if conv.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("conversation.call_timeout must be positive, got %s", conv.CallTimeout))
	}
	if conv.PacingMin < 0 || conv.PacingMax < conv.PacingMin {
		errs = append(errs, fmt.Errorf("conversation pacing range %s..%s is invalid", conv.PacingMin, conv.PacingMax))
	}
	if conv.MaxModelCallsPerTurn < 0 {
		errs = append(errs, fmt.Errorf("conversation.max_model_calls_per_turn must not be negative"))
	}
	if conv.DispatchTemperature < 0 || conv.DispatchTemperature > 2 {
		errs = append(errs, fmt.Errorf("conversation.dispatch_temperature out of range: %v", conv.DispatchTemperature))
	}
	if conv.DispatchMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("conversation.dispatch_max_tokens must be positive"))
	}

	pol := c.Policy
	if pol.OracleTemperature < 0 || pol.OracleTemperature > 2 {
		errs = append(errs, fmt.Errorf("policy.oracle_temperature out of range: %v", pol.OracleTemperature))
	}
	if pol.OracleMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("policy.oracle_max_tokens must be positive"))
	}
	if pol.RecencyWindow <= 0 || pol.RecencyLimit <= 0 {
		errs = append(errs, fmt.Errorf("policy recency window and limit must be positive"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if f := c.Logging.Format; f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", f))
	}

	return errors.Join(errs...)
}

func validProvider(name string) error {
	switch name {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderMock:
		return nil
	}
	return fmt.Errorf("unknown provider %q", name)
}
