package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration tree.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Pool     Pool     `mapstructure:"pool"`
	Executor Executor `mapstructure:"executor"`
	Bus      Bus      `mapstructure:"bus"`
	Stream   Stream   `mapstructure:"stream"`
	Logging  Logging  `mapstructure:"logging"`
	// Handlers is the static capability routing table: which provider
	// services which capability, in fallback priority order.
	Handlers []Handler `mapstructure:"handlers"`
}

// Handler binds a provider to capabilities with a fallback priority.
type Handler struct {
	ID           string   `mapstructure:"id"`
	Provider     string   `mapstructure:"provider"`
	Capabilities []string `mapstructure:"capabilities"`
	Priority     int      `mapstructure:"priority"`
}

// Server configures the HTTP API listener.
type Server struct {
	Addr string `mapstructure:"addr"`
}

// Pool configures the credential pool.
type Pool struct {
	// CredentialsFile is a TOML file of [[credentials]] entries loaded at
	// startup. Empty means the pool starts empty and is filled via the API.
	CredentialsFile  string        `mapstructure:"credentials_file"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	ExhaustThreshold int           `mapstructure:"exhaust_threshold"`
}

// Executor configures retry behavior of capability executions.
type Executor struct {
	MaxCredentialAttempts int             `mapstructure:"max_credential_attempts"`
	MaxHandlerRetries     int             `mapstructure:"max_handler_retries"`
	Backoff               []time.Duration `mapstructure:"backoff"`
	AttemptTimeout        time.Duration   `mapstructure:"attempt_timeout"`
}

// Bus configures status event retention.
type Bus struct {
	HistoryLimit int           `mapstructure:"history_limit"`
	MaxSessions  int           `mapstructure:"max_sessions"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
}

// Stream configures SSE delivery.
type Stream struct {
	Heartbeat  time.Duration `mapstructure:"heartbeat"`
	BufferSize int           `mapstructure:"buffer_size"`
}

// Logging configures the slog backend.
type Logging struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

// Load reads configuration from the given YAML file (or the first
// capmesh.yaml found in "." and $HOME when path is empty), layers CAPMESH_*
// environment variables on top and validates the result. A missing file is
// not an error; defaults and environment alone form a valid configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CAPMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("capmesh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %q: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("pool.credentials_file", "")
	v.SetDefault("pool.cooldown", time.Minute)
	v.SetDefault("pool.exhaust_threshold", 3)

	v.SetDefault("executor.max_credential_attempts", 3)
	v.SetDefault("executor.max_handler_retries", 2)
	v.SetDefault("executor.backoff", []time.Duration{250 * time.Millisecond, time.Second, 3 * time.Second})
	v.SetDefault("executor.attempt_timeout", 30*time.Second)

	v.SetDefault("bus.history_limit", 200)
	v.SetDefault("bus.max_sessions", 1024)
	v.SetDefault("bus.session_ttl", 30*time.Minute)

	v.SetDefault("stream.heartbeat", 30*time.Second)
	v.SetDefault("stream.buffer_size", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
}

// Validate rejects values the components cannot operate with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr must not be empty")
	}
	if c.Pool.Cooldown <= 0 {
		return fmt.Errorf("config: pool.cooldown must be positive, got %s", c.Pool.Cooldown)
	}
	if c.Pool.ExhaustThreshold < 1 {
		return fmt.Errorf("config: pool.exhaust_threshold must be at least 1, got %d", c.Pool.ExhaustThreshold)
	}
	if c.Executor.MaxCredentialAttempts < 1 {
		return fmt.Errorf("config: executor.max_credential_attempts must be at least 1, got %d", c.Executor.MaxCredentialAttempts)
	}
	if c.Executor.MaxHandlerRetries < 0 {
		return fmt.Errorf("config: executor.max_handler_retries must not be negative, got %d", c.Executor.MaxHandlerRetries)
	}
	if c.Executor.AttemptTimeout <= 0 {
		return fmt.Errorf("config: executor.attempt_timeout must be positive, got %s", c.Executor.AttemptTimeout)
	}
	if c.Bus.HistoryLimit < 1 {
		return fmt.Errorf("config: bus.history_limit must be at least 1, got %d", c.Bus.HistoryLimit)
	}
	if c.Bus.MaxSessions < 1 {
		return fmt.Errorf("config: bus.max_sessions must be at least 1, got %d", c.Bus.MaxSessions)
	}
	if c.Stream.BufferSize < 1 {
		return fmt.Errorf("config: stream.buffer_size must be at least 1, got %d", c.Stream.BufferSize)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	for i, h := range c.Handlers {
		if h.ID == "" {
			return fmt.Errorf("config: handlers[%d].id must not be empty", i)
		}
		if h.Provider == "" {
			return fmt.Errorf("config: handler %q: provider must not be empty", h.ID)
		}
		if len(h.Capabilities) == 0 {
			return fmt.Errorf("config: handler %q: at least one capability is required", h.ID)
		}
	}
	return nil
}
