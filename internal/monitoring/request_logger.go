// Package monitoring - request_logger.go logs fetch lifecycle events.
//
// DESIGN: Structured logging for fetch tracing at DEBUG level:
//   - LogAttempt:  An outgoing network attempt
//   - LogOutcome:  The terminal result of a fetch
//   - LogRefresh:  A background revalidation result
//
// Outgoing headers are logged as JSON with credential-bearing values
// overwritten via sjson, so debug logs never leak tokens.
package monitoring

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/sjson"
)

// Header names whose values are never logged verbatim.
var sensitiveHeaders = []string{
	"Authorization",
	"X-Api-Key",
	"Cookie",
	"Proxy-Authorization",
}

// FetchLogger logs fetch lifecycle events.
type FetchLogger struct {
	logger *Logger
}

// NewFetchLogger creates a new fetch logger.
func NewFetchLogger(logger *Logger) *FetchLogger {
	return &FetchLogger{logger: logger}
}

// AttemptInfo describes one outgoing network attempt.
type AttemptInfo struct {
	RequestID string
	Key       string
	URL       string
	Attempt   int
	Header    http.Header
}

// LogAttempt logs an outgoing attempt with redacted headers.
func (fl *FetchLogger) LogAttempt(info *AttemptInfo) {
	fl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("key", info.Key).
		Int("attempt", info.Attempt).
		RawJSON("headers", RedactHeaders(info.Header)).
		Msg("attempt")
}

// OutcomeInfo describes the terminal result of a fetch.
type OutcomeInfo struct {
	RequestID  string
	Key        string
	CacheState string
	StatusCode int
	BodySize   int
	Attempts   int
	Latency    time.Duration
	Err        error
}

// LogOutcome logs the final result of a fetch.
func (fl *FetchLogger) LogOutcome(info *OutcomeInfo) {
	event := fl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("key", info.Key).
		Str("cache", info.CacheState).
		Int("attempts", info.Attempts).
		Dur("latency", info.Latency)
	if info.StatusCode != 0 {
		event = event.Int("status", info.StatusCode)
	}
	if info.Err != nil {
		event = event.Err(info.Err)
	}
	event.Msg("fetch")
}

// LogRefresh logs a background revalidation result.
func (fl *FetchLogger) LogRefresh(key string, success bool, latency time.Duration) {
	fl.logger.Debug().
		Str("key", key).
		Bool("success", success).
		Dur("latency", latency).
		Msg("refresh")
}

// RedactHeaders serializes headers to JSON with sensitive values replaced.
// Returns "{}" when the header map cannot be serialized.
func RedactHeaders(h http.Header) []byte {
	if len(h) == 0 {
		return []byte("{}")
	}

	data, err := json.Marshal(h)
	if err != nil {
		return []byte("{}")
	}

	for _, name := range sensitiveHeaders {
		if h.Get(name) == "" {
			continue
		}
		// Header maps serialize values as arrays; overwrite the whole slot.
		redacted, err := sjson.SetBytes(data, escapeJSONPath(name), []string{"[redacted]"})
		if err == nil {
			data = redacted
		}
	}
	return data
}

// escapeJSONPath escapes dots so header names are treated as literal keys.
func escapeJSONPath(name string) string {
	return strings.ReplaceAll(name, ".", `\.`)
}
