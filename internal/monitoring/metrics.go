// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - fetches/successes:       Total and successful fetch counts
//   - cache_hits/misses:       Cache lookup performance
//   - stale_served:            Stale values served while revalidating
//   - retries:                 Network attempts beyond the first
//   - refreshes/refresh_fails: Background revalidation outcomes
//   - hook_errors:             Isolated handler failures
//   - socket_reconnects:       Socket manager reconnect attempts
//
// For production, export these to Prometheus or similar.
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	fetches          atomic.Int64
	successes        atomic.Int64
	cacheHits        atomic.Int64
	cacheMisses      atomic.Int64
	staleServed      atomic.Int64
	retries          atomic.Int64
	refreshes        atomic.Int64
	refreshFails     atomic.Int64
	hookErrors       atomic.Int64
	socketReconnects atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordFetch records a completed fetch.
func (mc *MetricsCollector) RecordFetch(success bool, _ time.Duration) {
	mc.fetches.Add(1)
	if success {
		mc.successes.Add(1)
	}
}

// RecordCacheHit records a cache hit; stale marks a stale-while-revalidate
// serve.
func (mc *MetricsCollector) RecordCacheHit(stale bool) {
	mc.cacheHits.Add(1)
	if stale {
		mc.staleServed.Add(1)
	}
}

// RecordCacheMiss records a cache miss.
func (mc *MetricsCollector) RecordCacheMiss() { mc.cacheMisses.Add(1) }

// RecordRetry records one retry attempt.
func (mc *MetricsCollector) RecordRetry() { mc.retries.Add(1) }

// RecordRefresh records a background revalidation outcome.
func (mc *MetricsCollector) RecordRefresh(success bool) {
	mc.refreshes.Add(1)
	if !success {
		mc.refreshFails.Add(1)
	}
}

// RecordHookError records an isolated hook handler failure.
func (mc *MetricsCollector) RecordHookError() { mc.hookErrors.Add(1) }

// RecordSocketReconnect records a socket reconnect attempt.
func (mc *MetricsCollector) RecordSocketReconnect() { mc.socketReconnects.Add(1) }

// Stats returns current metrics.
func (mc *MetricsCollector) Stats() map[string]int64 {
	return map[string]int64{
		"fetches":           mc.fetches.Load(),
		"successes":         mc.successes.Load(),
		"cache_hits":        mc.cacheHits.Load(),
		"cache_misses":      mc.cacheMisses.Load(),
		"stale_served":      mc.staleServed.Load(),
		"retries":           mc.retries.Load(),
		"refreshes":         mc.refreshes.Load(),
		"refresh_failures":  mc.refreshFails.Load(),
		"hook_errors":       mc.hookErrors.Load(),
		"socket_reconnects": mc.socketReconnects.Load(),
	}
}
