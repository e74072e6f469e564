package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Server
	Host string `env:"HOST" envDefault:"localhost"`
	Port int    `env:"PORT" envDefault:"3000"`

	// Database
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"DB_PATH" envDefault:"database/claude.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Completion provider
	LLMProvider      string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	AnthropicKey     string `env:"ANTHROPIC_API_KEY"`
	LegacyKey        string `env:"VITE_ANTHROPIC_API_KEY"`
	AnthropicBaseURL string `env:"ANTHROPIC_BASE_URL"`
	OpenAIKey        string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	APIKeyFile       string `env:"API_KEY_FILE" envDefault:"/tmp/api-key"`
	DefaultModel     string `env:"DEFAULT_MODEL" envDefault:"claude-sonnet-4-5-20250929"`

	// Users
	DefaultUserID string `env:"DEFAULT_USER_ID" envDefault:"default-user"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Limits
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// APIKey is resolved by Load from the environment or APIKeyFile.
	APIKey string
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.APIKey = cfg.resolveAPIKey()
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	switch c.LLMProvider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER: %s", c.LLMProvider)
	}
	return nil
}

// resolveAPIKey returns the provider credential from the environment, falling
// back to the key file. A missing key is not an error: the relay reports it.
func (c *Config) resolveAPIKey() string {
	key := c.OpenAIKey
	if c.LLMProvider == ProviderAnthropic {
		key = c.AnthropicKey
		if key == "" {
			key = c.LegacyKey
		}
	}
	if key != "" {
		return key
	}
	if c.APIKeyFile == "" {
		return ""
	}

	data, err := os.ReadFile(c.APIKeyFile)
	if err != nil {
		slog.Warn("no API key found in environment or key file", "path", c.APIKeyFile)
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (c *Config) HasAPIKey() bool {
	return c.APIKey != ""
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
