package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version   string                    `mapstructure:"version"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Models    map[string]ModelConfig    `mapstructure:"models"`
	Strategy  StrategyConfig            `mapstructure:"strategy"`
	Chat      ChatConfig                `mapstructure:"chat"`
	Memory    MemoryConfig              `mapstructure:"memory"`
	MCP       MCPConfig                 `mapstructure:"mcp"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Server    ServerConfig              `mapstructure:"server"`
}

// ProviderConfig represents LLM provider configuration such as OpenAI, Ollama, or custom gateways.
type ProviderConfig struct {
	Type      string        `mapstructure:"type"`       // openai, openrouter, ollama, vllm, lmstudio, custom
	Model     string        `mapstructure:"model"`      // default model for the provider
	BaseURL   string        `mapstructure:"base_url"`   // API base URL
	APIKey    string        `mapstructure:"api_key"`    // optional API key
	Timeout   time.Duration `mapstructure:"timeout"`    // request timeout
	MaxTokens int           `mapstructure:"max_tokens"` // optional provider-level token cap
}

// ModelConfig binds a logical model name to a provider entry and model parameters.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Default     bool    `mapstructure:"default"`
}

// StrategyConfig defines the chat model selection and failure fallbacks.
type StrategyConfig struct {
	DefaultModel string   `mapstructure:"default_model"`
	Fallbacks    []string `mapstructure:"fallbacks"` // ordered fallback model ids tried on provider failure
}

// ChatConfig describes chat pipeline runtime parameters.
type ChatConfig struct {
	SystemPrompt  string  `mapstructure:"system_prompt"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	Temperature   float64 `mapstructure:"temperature"`
	TitleMaxChars int     `mapstructure:"title_max_chars"`
}

// MemoryConfig controls the on-disk conversation store and history recall.
type MemoryConfig struct {
	Path           string `mapstructure:"path"`            // SQLite database file
	RecallMessages int    `mapstructure:"recall_messages"` // top-k prior exchanges injected as context
}

// MCPConfig controls tool-context collection from MCP servers.
type MCPConfig struct {
	Enabled            bool              `mapstructure:"enabled"`
	TriggerKeywords    []string          `mapstructure:"trigger_keywords"` // global fallback keywords
	ToolTimeoutSeconds int               `mapstructure:"tool_timeout_seconds"`
	Servers            []MCPServerConfig `mapstructure:"servers"`
}

// MCPServerConfig defines a single MCP server reachable over stdio.
type MCPServerConfig struct {
	Name            string            `mapstructure:"name"`
	Command         string            `mapstructure:"command"`
	Args            []string          `mapstructure:"args"`
	Env             map[string]string `mapstructure:"env"`
	TriggerKeywords []string          `mapstructure:"trigger_keywords"`
}

// Label returns a display name for logging and context output.
func (s MCPServerConfig) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Command
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Transport      string `mapstructure:"transport"` // connect or rest
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// Environment variables override file values (prefix: CHATLOOM_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHATLOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("chat.system_prompt", "")
	v.SetDefault("chat.max_tokens", 1024)
	v.SetDefault("chat.temperature", 0.2)
	v.SetDefault("chat.title_max_chars", 60)

	v.SetDefault("memory.path", "chatloom.db")
	v.SetDefault("memory.recall_messages", 5)

	v.SetDefault("mcp.enabled", false)
	v.SetDefault("mcp.trigger_keywords", []string{})
	v.SetDefault("mcp.tool_timeout_seconds", 30)

	v.SetDefault("strategy.default_model", "")
	v.SetDefault("strategy.fallbacks", []string{})

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.transport", "connect")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	if len(c.Models) == 0 {
		return errors.New("at least one model must be defined")
	}

	var defaultFound bool
	for name, p := range c.Providers {
		if p.Type == "" {
			return fmt.Errorf("provider %q must define type", name)
		}
	}

	for name, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("model %q must reference provider", name)
		}

		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q references unknown provider %q", name, m.Provider)
		}

		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("model %q temperature must be within [0,2]", name)
		}

		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q max_tokens cannot be negative", name)
		}

		if m.Default {
			defaultFound = true
		}
	}

	if !defaultFound {
		return errors.New("at least one model should be marked as default")
	}

	if strings.TrimSpace(c.Strategy.DefaultModel) != "" {
		if _, ok := c.Models[c.Strategy.DefaultModel]; !ok {
			return fmt.Errorf("strategy references unknown model %q", c.Strategy.DefaultModel)
		}
	}
	for _, modelID := range c.Strategy.Fallbacks {
		if _, ok := c.Models[modelID]; !ok {
			return fmt.Errorf("strategy fallback references unknown model %q", modelID)
		}
	}

	if c.Chat.MaxTokens < 0 {
		return errors.New("chat.max_tokens must be >= 0")
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return errors.New("chat.temperature must be within [0,2]")
	}
	if c.Chat.TitleMaxChars <= 0 {
		return errors.New("chat.title_max_chars must be > 0")
	}

	if strings.TrimSpace(c.Memory.Path) == "" {
		return errors.New("memory.path must be set")
	}
	if c.Memory.RecallMessages < 0 {
		return errors.New("memory.recall_messages must be >= 0")
	}

	if c.MCP.Enabled {
		if len(c.MCP.Servers) == 0 {
			return errors.New("at least one MCP server must be configured when mcp.enabled is true")
		}
	}
	for i, srv := range c.MCP.Servers {
		if strings.TrimSpace(srv.Command) == "" {
			return fmt.Errorf("mcp server #%d (%s) must define command", i, srv.Label())
		}
	}
	if c.MCP.ToolTimeoutSeconds <= 0 {
		return errors.New("mcp.tool_timeout_seconds must be > 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Transport)) {
	case "", "connect", "rest":
	default:
		return fmt.Errorf("server.transport must be one of connect or rest, got %q", c.Server.Transport)
	}

	return nil
}
