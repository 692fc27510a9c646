package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/fetch-relay/internal/config"
)

func newTestRelay(t *testing.T) *relay {
	t.Helper()
	cfg, err := config.LoadFromBytes([]byte("client:\n  retry: 0\n"))
	require.NoError(t, err)

	r, err := buildRelay(cfg)
	require.NoError(t, err)
	t.Cleanup(r.close)
	return r
}

func getJSON(t *testing.T, h http.Handler, method, target string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestDebugRouter_Healthz(t *testing.T) {
	h := newDebugRouter(newTestRelay(t), nil)

	code, body := getJSON(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestDebugRouter_MetricsAndCache(t *testing.T) {
	h := newDebugRouter(newTestRelay(t), nil)

	code, metrics := getJSON(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, metrics, "fetches")
	assert.Contains(t, metrics, "cache_hits")

	code, cacheBody := getJSON(t, h, http.MethodGet, "/cache")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, cacheBody["entries"])
}

func TestDebugRouter_HooksListsErrorHandler(t *testing.T) {
	h := newDebugRouter(newTestRelay(t), nil)

	// The client registers its onError accounting handler at build time.
	code, body := getJSON(t, h, http.MethodGet, "/hooks")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "onError")
}

func TestDebugRouter_InvalidateRequiresKey(t *testing.T) {
	h := newDebugRouter(newTestRelay(t), nil)

	code, _ := getJSON(t, h, http.MethodDelete, "/cache")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := getJSON(t, h, http.MethodDelete, "/cache?key=/api/users/1")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/api/users/1", body["invalidated"])
}

func TestDebugRouter_FetchRequiresKey(t *testing.T) {
	h := newDebugRouter(newTestRelay(t), nil)

	code, _ := getJSON(t, h, http.MethodGet, "/fetch")
	assert.Equal(t, http.StatusBadRequest, code)
}
