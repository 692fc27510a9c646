// Package client wraps a network GET with caching, stale-while-revalidate
// refresh, retry with exponential backoff, and cancellation.
//
// DESIGN: A fetch first classifies the cache entry for its key:
//
//	fresh  → served as-is, zero network activity
//	stale  → served as-is, one background refresh revalidates the entry
//	miss   → synchronous fetch; the caller waits
//
// Network attempts run under cenkalti/backoff with doubling delays. Only
// one request may be in flight per key: a superseding fetch cancels the
// previous one, and a cancelled attempt's result is discarded without
// touching the cache. The beforeApiRequest and afterApiResponse extension
// points bracket every attempt, so cross-cutting concerns (auth signing,
// tracing headers) attach without the client knowing about them.
//
// All collaborators are injected; the package holds no global state.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/hookline/fetch-relay/internal/cache"
	"github.com/hookline/fetch-relay/internal/hooks"
	"github.com/hookline/fetch-relay/internal/monitoring"
)

// Sentinel errors surfaced by Fetch.
var (
	// ErrDisabled is returned for an empty request key.
	ErrDisabled = errors.New("fetch disabled: empty key")

	// ErrSuperseded is returned when a newer fetch for the same key
	// cancelled this one.
	ErrSuperseded = errors.New("fetch superseded by newer request")
)

// Config contains client settings.
type Config struct {
	// BaseURL is prepended to keys that are not absolute URLs.
	BaseURL string

	// Timeout bounds a single background refresh. Zero means 30s.
	RefreshTimeout time.Duration
}

// Client is the caching fetch client. Safe for concurrent use.
type Client struct {
	cfg   Config
	api   APIClient
	cache *cache.Cache
	reg   *hooks.Registry

	metrics  *monitoring.MetricsCollector
	fetchLog *monitoring.FetchLogger
	alerts   *monitoring.AlertManager
	tracker  *monitoring.Tracker

	mu       sync.Mutex
	inflight map[string]*flight

	refresh singleflight.Group
	wg      sync.WaitGroup
}

// flight tracks one in-flight request so a newer one can cancel it.
type flight struct {
	cancel context.CancelFunc
}

// Option configures optional collaborators.
type Option func(*Client)

// WithMetrics sets the metrics collector.
func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(c *Client) { c.metrics = mc }
}

// WithFetchLogger sets the fetch lifecycle logger.
func WithFetchLogger(fl *monitoring.FetchLogger) Option {
	return func(c *Client) { c.fetchLog = fl }
}

// WithAlerts sets the alert manager.
func WithAlerts(am *monitoring.AlertManager) Option {
	return func(c *Client) { c.alerts = am }
}

// WithTracker sets the telemetry tracker.
func WithTracker(t *monitoring.Tracker) Option {
	return func(c *Client) { c.tracker = t }
}

// New creates a Client. The cache and registry are required; api defaults
// to an HTTPClient when nil.
func New(cfg Config, api APIClient, cc *cache.Cache, reg *hooks.Registry, opts ...Option) *Client {
	if api == nil {
		api = NewHTTPClient(0)
	}
	if cfg.RefreshTimeout == 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}

	c := &Client{
		cfg:      cfg,
		api:      api,
		cache:    cc,
		reg:      reg,
		metrics:  monitoring.NewMetricsCollector(),
		inflight: make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(c)
	}

	// Count isolated handler failures without owning the error point.
	reg.Register(hooks.PointError, func(ctx context.Context, payload any) error {
		c.metrics.RecordHookError()
		return nil
	}, 1000)

	return c
}

// Metrics returns the client's metrics collector.
func (c *Client) Metrics() *monitoring.MetricsCollector { return c.metrics }

// Cache returns the underlying cache.
func (c *Client) Cache() *cache.Cache { return c.cache }

// Hooks returns the hook registry the client dispatches through.
func (c *Client) Hooks() *hooks.Registry { return c.reg }

// Fetch returns the value for key, consulting the cache first.
//
// A fresh entry is returned with no network activity. A stale entry is
// returned immediately while one background refresh revalidates it. A miss
// or expired entry triggers a synchronous fetch. An empty key returns
// ErrDisabled.
func (c *Client) Fetch(ctx context.Context, key string, opts Options) ([]byte, error) {
	if key == "" {
		return nil, ErrDisabled
	}
	opts = opts.withDefaults()

	ent, state := c.cache.Lookup(ctx, key, opts.StaleTime, opts.CacheTime)
	switch state {
	case cache.StateFresh:
		c.metrics.RecordCacheHit(false)
		return ent.Value, nil
	case cache.StateStale:
		c.metrics.RecordCacheHit(true)
		c.refreshAsync(key, opts)
		return ent.Value, nil
	}

	c.metrics.RecordCacheMiss()
	return c.fetch(ctx, key, opts, false)
}

// Invalidate removes the cache entry for key without refetching.
func (c *Client) Invalidate(ctx context.Context, key string) {
	if key == "" {
		return
	}
	c.cache.Delete(ctx, key)
}

// Refetch removes the cache entry for key and fetches it immediately.
func (c *Client) Refetch(ctx context.Context, key string, opts Options) ([]byte, error) {
	if key == "" {
		return nil, ErrDisabled
	}
	opts = opts.withDefaults()
	c.cache.Delete(ctx, key)
	return c.fetch(ctx, key, opts, false)
}

// Wait blocks until all background refreshes have settled.
func (c *Client) Wait() {
	c.wg.Wait()
}

// refreshAsync starts one background refresh for key. Concurrent stale
// reads of the same key share a single refresh via singleflight.
func (c *Client) refreshAsync(key string, opts Options) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		_, err, _ := c.refresh.Do(key, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RefreshTimeout)
			defer cancel()

			start := time.Now()
			_, err := c.fetch(ctx, key, opts, true)
			if c.fetchLog != nil {
				c.fetchLog.LogRefresh(key, err == nil, time.Since(start))
			}
			return nil, err
		})

		if err != nil && !errors.Is(err, ErrSuperseded) {
			// Stale-if-error: the stale entry stays until it expires.
			log.Debug().Str("key", key).Err(err).Msg("background refresh failed")
		}
	}()
}

// fetch performs the network round trip with retries. On success the
// result replaces the cache entry. On exhaustion of a foreground fetch the
// entry for key is evicted; a failed background refresh leaves it alone.
func (c *Client) fetch(ctx context.Context, key string, opts Options, background bool) ([]byte, error) {
	requestID := uuid.New().String()
	ctx = monitoring.WithRequestIDContext(ctx, requestID)

	fctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if prev := c.inflight[key]; prev != nil {
		prev.cancel()
	}
	fl := &flight{cancel: cancel}
	c.inflight[key] = fl
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		if c.inflight[key] == fl {
			delete(c.inflight, key)
		}
		c.mu.Unlock()
	}()

	var (
		attempt    int
		lastStatus int
	)
	start := time.Now()
	url := c.resolveURL(key)

	operation := func() ([]byte, error) {
		attempt++

		req, err := http.NewRequestWithContext(fctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		c.reg.Invoke(fctx, hooks.PointBeforeRequest, &hooks.RequestPayload{
			RequestID: requestID,
			Key:       key,
			Attempt:   attempt,
			Request:   req,
		})

		if c.fetchLog != nil {
			c.fetchLog.LogAttempt(&monitoring.AttemptInfo{
				RequestID: requestID,
				Key:       key,
				URL:       url,
				Attempt:   attempt,
				Header:    req.Header,
			})
		}

		attemptStart := time.Now()
		res, err := c.api.Do(req)
		if err != nil {
			if fctx.Err() != nil {
				return nil, backoff.Permanent(fctx.Err())
			}
			return nil, fmt.Errorf("request failed: %w", err)
		}
		lastStatus = res.Status

		c.reg.Invoke(fctx, hooks.PointAfterResponse, &hooks.ResponsePayload{
			RequestID: requestID,
			Key:       key,
			Status:    res.Status,
			Body:      res.Data,
			Latency:   time.Since(attemptStart),
		})

		if !res.Success {
			err := fmt.Errorf("upstream error: %s", res.Err)
			if isTerminalStatus(res.Status) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		data, err := applyTransform(res.Data, opts.Transform)
		if err != nil {
			// Malformed payloads do not get better on retry.
			return nil, backoff.Permanent(err)
		}
		return data, nil
	}

	notify := func(err error, delay time.Duration) {
		c.metrics.RecordRetry()
		c.reg.Invoke(fctx, hooks.PointRetry, &hooks.RetryPayload{
			RequestID: requestID,
			Key:       key,
			Attempt:   attempt,
			Delay:     delay,
			Err:       err,
		})
	}

	data, err := backoff.RetryNotifyWithData(operation, newBackOff(fctx, opts), notify)
	latency := time.Since(start)

	if err != nil {
		// A cancelled fetch was superseded (or its consumer went away):
		// discard the outcome without touching cache or counters.
		if fctx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s", ErrSuperseded, key)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !background {
			c.cache.Delete(ctx, key)
		}
		c.metrics.RecordFetch(false, latency)
		if background {
			c.metrics.RecordRefresh(false)
		}
		if c.alerts != nil {
			c.alerts.FlagRetryExhausted(requestID, key, attempt, err)
		}
		c.recordEvent(requestID, key, url, background, attempt, lastStatus, 0, latency, err)
		c.logOutcome(requestID, key, background, lastStatus, 0, attempt, latency, err)
		return nil, err
	}

	c.cache.Set(ctx, key, data)
	c.metrics.RecordFetch(true, latency)
	if background {
		c.metrics.RecordRefresh(true)
	}
	if c.alerts != nil {
		c.alerts.FlagHighLatency(requestID, key, latency)
	}
	c.recordEvent(requestID, key, url, background, attempt, lastStatus, len(data), latency, nil)
	c.logOutcome(requestID, key, background, lastStatus, len(data), attempt, latency, nil)
	return data, nil
}

func (c *Client) recordEvent(requestID, key, url string, background bool, attempts, status, bodySize int, latency time.Duration, err error) {
	if c.tracker == nil {
		return
	}
	state := cache.StateMiss
	if background {
		state = cache.StateStale
	}
	event := &monitoring.FetchEvent{
		RequestID:      requestID,
		Timestamp:      time.Now(),
		Key:            key,
		URL:            url,
		CacheState:     state.String(),
		Background:     background,
		Attempts:       attempts,
		StatusCode:     status,
		BodySize:       bodySize,
		Success:        err == nil,
		TotalLatencyMs: latency.Milliseconds(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	c.tracker.RecordFetchEvent(event)
}

func (c *Client) logOutcome(requestID, key string, background bool, status, bodySize, attempts int, latency time.Duration, err error) {
	if c.fetchLog == nil {
		return
	}
	state := cache.StateMiss
	if background {
		state = cache.StateStale
	}
	c.fetchLog.LogOutcome(&monitoring.OutcomeInfo{
		RequestID:  requestID,
		Key:        key,
		CacheState: state.String(),
		StatusCode: status,
		BodySize:   bodySize,
		Attempts:   attempts,
		Latency:    latency,
		Err:        err,
	})
}

// resolveURL treats absolute keys as URLs and joins everything else onto
// the configured base.
func (c *Client) resolveURL(key string) string {
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key
	}
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(key, "/")
}

// isTerminalStatus reports whether retrying a status is pointless.
// Client errors won't fix themselves, with the usual exceptions for
// timeouts and throttling.
func isTerminalStatus(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	return status != http.StatusRequestTimeout && status != http.StatusTooManyRequests
}

// applyTransform extracts the gjson path from data. An empty path is the
// identity. Invalid JSON and unmatched paths are terminal.
func applyTransform(data []byte, path string) ([]byte, error) {
	if path == "" {
		return data, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New("transform: response is not valid JSON")
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return nil, fmt.Errorf("transform: path %q not found in response", path)
	}
	return []byte(res.Raw), nil
}

// newBackOff builds the retry policy: delays start at RetryDelay and
// double each attempt, capped at Retry additional attempts, stopping early
// when ctx is cancelled.
func newBackOff(ctx context.Context, opts Options) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.RetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	if opts.Jitter {
		b.RandomizationFactor = 0.5
	}
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(*opts.Retry)), ctx)
}
