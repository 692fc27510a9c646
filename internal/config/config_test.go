package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/fetch-relay/internal/config"
)

const validYAML = `
server:
  port: 8080
  read_timeout: 10s
  write_timeout: 10s
client:
  base_url: https://api.example.com
  retry: 3
  retry_delay: 1s
  stale_time: 30s
  cache_time: 5m
cache:
  max_age: 24h
  cleanup_interval: 5m
socket:
  enabled: true
  url: wss://stream.example.com/ws
  reconnect_delay: 1s
  max_reconnect_delay: 30s
  queue_size: 64
monitoring:
  log_level: info
  log_format: json
  log_output: stderr
`

func TestLoadFromBytes_Valid(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.example.com", cfg.Client.BaseURL)
	require.NotNil(t, cfg.Client.Retry)
	assert.Equal(t, 3, *cfg.Client.Retry)
	assert.Equal(t, 30*time.Second, cfg.Client.StaleTime)
	assert.Equal(t, 5*time.Minute, cfg.Client.CacheTime)
	assert.Equal(t, 24*time.Hour, cfg.Cache.MaxAge)
	assert.True(t, cfg.Socket.Enabled)
	assert.Equal(t, 64, cfg.Socket.QueueSize)
	assert.Equal(t, "info", cfg.Monitoring.LogLevel)
}

func TestLoadFromBytes_EnvExpansion(t *testing.T) {
	t.Setenv("RELAY_BASE", "https://env.example.com")

	yaml := `
client:
  base_url: ${RELAY_BASE:-https://fallback.example.com}
  transform: ${RELAY_TRANSFORM_UNSET:-data.items}
`
	cfg, err := config.LoadFromBytes([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Client.BaseURL)
	// Unset var falls back to the inline default.
	assert.Equal(t, "data.items", cfg.Client.Transform)
}

func TestLoadFromBytes_RetryZeroIsExplicit(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte("client:\n  retry: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Client.Retry)
	assert.Equal(t, 0, *cfg.Client.Retry)

	// Absent retry stays nil so the client default applies downstream.
	cfg, err = config.LoadFromBytes([]byte("client: {}\n"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Client.Retry)
}

func TestLoadFromBytes_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "negative retry",
			yaml: "client:\n  retry: -1\n",
			want: "client.retry",
		},
		{
			name: "stale beyond cache window",
			yaml: "client:\n  stale_time: 10m\n  cache_time: 5m\n",
			want: "stale_time",
		},
		{
			name: "port out of range",
			yaml: "server:\n  port: 99999\n",
			want: "server.port",
		},
		{
			name: "server missing timeouts",
			yaml: "server:\n  port: 8080\n",
			want: "read_timeout",
		},
		{
			name: "socket enabled without url",
			yaml: "socket:\n  enabled: true\n",
			want: "socket.url",
		},
		{
			name: "socket bad scheme",
			yaml: "socket:\n  enabled: true\n  url: https://example.com\n",
			want: "ws://",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromBytes_EnvOverrides(t *testing.T) {
	t.Setenv("SESSION_TELEMETRY_LOG", "/tmp/telemetry.jsonl")
	t.Setenv("FETCH_RELAY_CACHE_DB", "/tmp/relay.db")

	cfg, err := config.LoadFromBytes([]byte("client:\n  retry: 1\n"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/telemetry.jsonl", cfg.Monitoring.TelemetryPath)
	assert.True(t, cfg.Monitoring.TelemetryEnabled)
	assert.Equal(t, "/tmp/relay.db", cfg.Cache.SQLitePath)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/relay.yaml")
	require.Error(t, err)

	_, err = config.Load("")
	require.Error(t, err)
}
