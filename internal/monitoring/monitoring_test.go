package monitoring_test

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hookline/fetch-relay/internal/monitoring"
)

func TestMetricsCollector_Counters(t *testing.T) {
	mc := monitoring.NewMetricsCollector()

	mc.RecordFetch(true, 10*time.Millisecond)
	mc.RecordFetch(false, 10*time.Millisecond)
	mc.RecordCacheHit(false)
	mc.RecordCacheHit(true)
	mc.RecordCacheMiss()
	mc.RecordRetry()
	mc.RecordRetry()
	mc.RecordRefresh(true)
	mc.RecordRefresh(false)
	mc.RecordHookError()
	mc.RecordSocketReconnect()

	stats := mc.Stats()
	assert.Equal(t, int64(2), stats["fetches"])
	assert.Equal(t, int64(1), stats["successes"])
	assert.Equal(t, int64(2), stats["cache_hits"])
	assert.Equal(t, int64(1), stats["stale_served"])
	assert.Equal(t, int64(1), stats["cache_misses"])
	assert.Equal(t, int64(2), stats["retries"])
	assert.Equal(t, int64(2), stats["refreshes"])
	assert.Equal(t, int64(1), stats["refresh_failures"])
	assert.Equal(t, int64(1), stats["hook_errors"])
	assert.Equal(t, int64(1), stats["socket_reconnects"])
}

func TestLogger_ComponentTagsEveryLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")
	logger := monitoring.New(monitoring.LoggerConfig{
		Level:  "debug",
		Format: "json",
		Output: path,
	})

	logger.Component("cache").Info().Msg("janitor sweep")
	logger.Component("socket").Warn().Msg("dial failed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "cache", gjson.Get(lines[0], "component").String())
	assert.Equal(t, "janitor sweep", gjson.Get(lines[0], "message").String())
	assert.Equal(t, "socket", gjson.Get(lines[1], "component").String())
}

func TestRedactHeaders_SensitiveValuesHidden(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret-token")
	h.Set("X-Api-Key", "api-key-value")
	h.Set("Accept", "application/json")

	out := string(monitoring.RedactHeaders(h))

	assert.NotContains(t, out, "secret-token")
	assert.NotContains(t, out, "api-key-value")
	assert.Contains(t, out, "application/json")
	assert.Equal(t, "[redacted]", gjson.Get(out, `Authorization.0`).String())
}

func TestRedactHeaders_EmptyHeader(t *testing.T) {
	assert.Equal(t, "{}", string(monitoring.RedactHeaders(nil)))
	assert.Equal(t, "{}", string(monitoring.RedactHeaders(http.Header{})))
}

func TestTracker_WritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry", "events.jsonl")
	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled: true,
		LogPath: path,
	})
	require.NoError(t, err)

	tracker.RecordFetchEvent(&monitoring.FetchEvent{
		RequestID:  "req-1",
		Timestamp:  time.Now(),
		Key:        "/api/users/1",
		CacheState: "miss",
		Attempts:   1,
		Success:    true,
	})
	tracker.RecordSocketEvent(&monitoring.SocketEvent{
		Timestamp: time.Now(),
		SessionID: "sess-1",
		URL:       "ws://example.test",
		Event:     "connected",
	})
	require.NoError(t, tracker.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "/api/users/1", gjson.Get(lines[0], "key").String())
	assert.Equal(t, "connected", gjson.Get(lines[1], "event").String())
}

func TestTracker_DisabledWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled: false,
		LogPath: path,
	})
	require.NoError(t, err)

	tracker.RecordFetchEvent(&monitoring.FetchEvent{RequestID: "req-1"})
	require.NoError(t, tracker.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
