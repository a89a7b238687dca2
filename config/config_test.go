package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "explicit path must exist")

	// No path: defaults alone are valid.
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Minute, cfg.Pool.Cooldown)
	assert.Equal(t, 3, cfg.Pool.ExhaustThreshold)
	assert.Equal(t, 3, cfg.Executor.MaxCredentialAttempts)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, time.Second, 3 * time.Second}, cfg.Executor.Backoff)
	assert.Equal(t, 200, cfg.Bus.HistoryLimit)
	assert.Equal(t, 30*time.Second, cfg.Stream.Heartbeat)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
pool:
  credentials_file: /etc/capmesh/credentials.toml
  cooldown: 2m
  exhaust_threshold: 5
executor:
  max_handler_retries: 1
  backoff: [100ms, 500ms]
bus:
  session_ttl: 1h
logging:
  format: json
handlers:
  - id: openai-primary
    provider: openai
    capabilities: [summarize, generate]
    priority: 1
  - id: algorithmic
    provider: fallback
    capabilities: [summarize]
    priority: 99
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/etc/capmesh/credentials.toml", cfg.Pool.CredentialsFile)
	assert.Equal(t, 2*time.Minute, cfg.Pool.Cooldown)
	assert.Equal(t, 5, cfg.Pool.ExhaustThreshold)
	assert.Equal(t, 1, cfg.Executor.MaxHandlerRetries)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 500 * time.Millisecond}, cfg.Executor.Backoff)
	assert.Equal(t, time.Hour, cfg.Bus.SessionTTL)
	assert.Equal(t, "json", cfg.Logging.Format)

	require.Len(t, cfg.Handlers, 2)
	assert.Equal(t, "openai-primary", cfg.Handlers[0].ID)
	assert.Equal(t, []string{"summarize", "generate"}, cfg.Handlers[0].Capabilities)
	assert.Equal(t, 99, cfg.Handlers[1].Priority)

	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Executor.AttemptTimeout)
	assert.Equal(t, 100, cfg.Stream.BufferSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CAPMESH_SERVER_ADDR", ":7070")
	t.Setenv("CAPMESH_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad format", "logging:\n  format: xml\n"},
		{"zero cooldown", "pool:\n  cooldown: 0s\n"},
		{"empty addr", "server:\n  addr: \"\"\n"},
		{"zero history", "bus:\n  history_limit: 0\n"},
		{"handler without provider", "handlers:\n  - id: h1\n    capabilities: [summarize]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}
