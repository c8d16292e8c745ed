package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Endpoint EndpointConfig `mapstructure:"endpoint"`
	Models   ModelsConfig   `mapstructure:"models"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Session  SessionConfig  `mapstructure:"session"`
	UI       UIConfig       `mapstructure:"ui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
}

// EndpointConfig describes the local generation endpoint.
type EndpointConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`   // whole-request timeout
	ProxyURL string        `mapstructure:"proxy_url"` // optional HTTP proxy
}

// ModelsConfig binds each dispatching mode to a model identifier.
type ModelsConfig struct {
	Text  string `mapstructure:"text"`
	Image string `mapstructure:"image"`
	Rag   string `mapstructure:"rag"`
}

// AgentConfig describes the agent sub-pipeline.
type AgentConfig struct {
	Provider     string        `mapstructure:"provider"` // ollama or openai
	BaseURL      string        `mapstructure:"base_url"` // defaults to endpoint.base_url for ollama
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	MaxSteps     int           `mapstructure:"max_steps"`
	Temperature  float64       `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SystemPrompt string        `mapstructure:"system_prompt"`
}

// SessionConfig controls the interactive session and its history store.
type SessionConfig struct {
	Name        string `mapstructure:"name"`
	Dir         string `mapstructure:"dir"`
	Store       string `mapstructure:"store"` // jsonl, sqlite or none
	DefaultMode string `mapstructure:"default_mode"`
}

// UIConfig controls the terminal frontend.
type UIConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error or off
	Format string `mapstructure:"format"` // console or json
	File   string `mapstructure:"file"`   // empty logs to stderr
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Transport      string `mapstructure:"transport"` // connect or ndjson
}

// Load reads configuration from the provided path, or searches ./, ./configs
// and ~/.swissk for config.yaml. A missing file is not an error when no path
// was given. Environment variables override file values (prefix: SWISSK_,
// dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SWISSK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".swissk"))
		}
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
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

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint.base_url", "http://127.0.0.1:11434")
	v.SetDefault("endpoint.timeout", 300*time.Second)
	v.SetDefault("endpoint.proxy_url", "")

	v.SetDefault("models.text", "qwen3:8b")
	v.SetDefault("models.image", "qwen-vl:8b")
	v.SetDefault("models.rag", "qwen3:8b")

	v.SetDefault("agent.provider", "ollama")
	v.SetDefault("agent.base_url", "")
	v.SetDefault("agent.api_key", "")
	v.SetDefault("agent.model", "qwen3:8b")
	v.SetDefault("agent.max_steps", 4)
	v.SetDefault("agent.temperature", 0.2)
	v.SetDefault("agent.timeout", 300*time.Second)
	v.SetDefault("agent.system_prompt", "You are an agent.")

	v.SetDefault("session.name", "default")
	v.SetDefault("session.dir", ".")
	v.SetDefault("session.store", "jsonl")
	v.SetDefault("session.default_mode", "text")

	v.SetDefault("ui.poll_interval", 100*time.Millisecond)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "swissk.log")

	v.SetDefault("server.addr", ":8088")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.transport", "connect")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint.BaseURL) == "" {
		return errors.New("endpoint.base_url must be set")
	}
	if c.Endpoint.Timeout < 0 {
		return errors.New("endpoint.timeout must be >= 0")
	}

	for name, model := range map[string]string{
		"models.text": c.Models.Text, "models.image": c.Models.Image, "models.rag": c.Models.Rag,
	} {
		if strings.TrimSpace(model) == "" {
			return fmt.Errorf("%s must be set", name)
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Agent.Provider)) {
	case "ollama", "openai":
	default:
		return fmt.Errorf("agent.provider must be one of ollama or openai, got %q", c.Agent.Provider)
	}
	if strings.TrimSpace(c.Agent.Model) == "" {
		return errors.New("agent.model must be set")
	}
	if c.Agent.MaxSteps <= 0 {
		return errors.New("agent.max_steps must be > 0")
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		return errors.New("agent.temperature must be within [0,2]")
	}

	if strings.TrimSpace(c.Session.Name) == "" {
		return errors.New("session.name must be set")
	}
	switch strings.ToLower(strings.TrimSpace(c.Session.Store)) {
	case "", "jsonl", "sqlite", "none":
	default:
		return fmt.Errorf("session.store must be one of jsonl, sqlite or none, got %q", c.Session.Store)
	}
	switch strings.ToLower(strings.TrimSpace(c.Session.DefaultMode)) {
	case "", "text", "image", "rag", "agent":
	default:
		return fmt.Errorf("session.default_mode must be one of text, image, rag or agent, got %q", c.Session.DefaultMode)
	}

	if c.UI.PollInterval <= 0 {
		return errors.New("ui.poll_interval must be > 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Transport)) {
	case "", "connect", "ndjson":
	default:
		return fmt.Errorf("server.transport must be one of connect or ndjson, got %q", c.Server.Transport)
	}

	return nil
}

// AgentBaseURL returns the agent endpoint, falling back to the generation
// endpoint for ollama.
func (c *Config) AgentBaseURL() string {
	if strings.TrimSpace(c.Agent.BaseURL) != "" {
		return c.Agent.BaseURL
	}
	if strings.EqualFold(strings.TrimSpace(c.Agent.Provider), "ollama") {
		return c.Endpoint.BaseURL
	}
	return ""
}
