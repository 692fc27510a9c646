// Package monitoring - alerts.go flags anomalies and errors.
//
// DESIGN: AlertManager logs notable events at appropriate levels:
//   - FlagHighLatency:    Warn when a fetch exceeds the latency threshold
//   - FlagRetryExhausted: Warn when a fetch ran out of retries
//   - FlagStoreError:     Error when the backing store misbehaves
//   - FlagSocketFlap:     Warn when the socket keeps reconnecting
package monitoring

import "time"

// AlertManager flags anomalies and errors.
type AlertManager struct {
	logger               *Logger
	highLatencyThreshold time.Duration
}

// NewAlertManager creates a new alert manager.
func NewAlertManager(logger *Logger, cfg AlertConfig) *AlertManager {
	threshold := cfg.HighLatencyThreshold
	if threshold == 0 {
		threshold = 5 * time.Second
	}
	return &AlertManager{logger: logger, highLatencyThreshold: threshold}
}

// FlagHighLatency logs when fetch latency exceeds the threshold.
func (am *AlertManager) FlagHighLatency(requestID, key string, latency time.Duration) {
	if latency < am.highLatencyThreshold {
		return
	}
	am.logger.Warn().
		Str("request_id", requestID).
		Str("key", key).
		Dur("latency", latency).
		Msg("high_latency")
}

// FlagRetryExhausted logs a fetch that failed all its attempts.
func (am *AlertManager) FlagRetryExhausted(requestID, key string, attempts int, err error) {
	am.logger.Warn().
		Str("request_id", requestID).
		Str("key", key).
		Int("attempts", attempts).
		Err(err).
		Msg("retry_exhausted")
}

// FlagStoreError logs a backing store failure.
func (am *AlertManager) FlagStoreError(op, key string, err error) {
	am.logger.Error().
		Str("op", op).
		Str("key", key).
		Err(err).
		Msg("store_error")
}

// FlagSocketFlap logs repeated socket reconnects.
func (am *AlertManager) FlagSocketFlap(sessionID, url string, attempts int) {
	am.logger.Warn().
		Str("session_id", sessionID).
		Str("url", url).
		Int("attempts", attempts).
		Msg("socket_flapping")
}
