// Shared wiring for the get and serve commands.
package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hookline/fetch-relay/internal/cache"
	"github.com/hookline/fetch-relay/internal/client"
	"github.com/hookline/fetch-relay/internal/config"
	"github.com/hookline/fetch-relay/internal/hooks"
	"github.com/hookline/fetch-relay/internal/monitoring"
)

// signerPriority runs the signing hook after any header-mutating hooks
// so signatures cover the final request.
const signerPriority = 100

// relay bundles the wired components shared by every command.
type relay struct {
	cfg     *config.Config
	cache   *cache.Cache
	reg     *hooks.Registry
	client  *client.Client
	metrics *monitoring.MetricsCollector
	alerts  *monitoring.AlertManager
	tracker *monitoring.Tracker
}

// buildRelay constructs the cache, hook registry, monitoring stack, and
// fetch client from a loaded config.
func buildRelay(cfg *config.Config) (*relay, error) {
	logger := monitoring.New(monitoring.LoggerConfig{
		Level:  cfg.Monitoring.LogLevel,
		Format: cfg.Monitoring.LogFormat,
		Output: cfg.Monitoring.LogOutput,
	})

	cacheOpts := []cache.Option{}
	if cfg.Cache.MaxAge > 0 {
		cacheOpts = append(cacheOpts, cache.WithMaxAge(cfg.Cache.MaxAge))
	}
	if cfg.Cache.CleanupInterval > 0 {
		cacheOpts = append(cacheOpts, cache.WithCleanupInterval(cfg.Cache.CleanupInterval))
	}
	if cfg.Cache.SQLitePath != "" {
		store, err := cache.NewSQLiteStore(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache store: %w", err)
		}
		cacheOpts = append(cacheOpts, cache.WithStore(store))
		log.Info().Str("path", cfg.Cache.SQLitePath).Msg("persistent cache store enabled")
	}
	cc := cache.New(cacheOpts...)

	reg := hooks.NewRegistry()
	if cfg.Signing.Enabled {
		signer := client.NewSigner(cfg.Signing.Service, cfg.Signing.Region)
		if !signer.IsConfigured() {
			return nil, fmt.Errorf("signing enabled but no AWS credentials resolved")
		}
		reg.Register(hooks.PointBeforeRequest, signer.Handler(), signerPriority)
		log.Info().
			Str("service", cfg.Signing.Service).
			Str("region", signer.Region()).
			Msg("request signing enabled")
	}

	metrics := monitoring.NewMetricsCollector()
	alerts := monitoring.NewAlertManager(logger.Component("alerts"), monitoring.AlertConfig{
		HighLatencyThreshold: cfg.Monitoring.HighLatencyThreshold,
	})

	var tracker *monitoring.Tracker
	if cfg.Monitoring.TelemetryEnabled {
		var err error
		tracker, err = monitoring.NewTracker(monitoring.TelemetryConfig{
			Enabled:     true,
			LogPath:     cfg.Monitoring.TelemetryPath,
			LogToStdout: cfg.Monitoring.LogToStdout,
		})
		if err != nil {
			cc.Close()
			return nil, fmt.Errorf("failed to start telemetry tracker: %w", err)
		}
	}

	clientOpts := []client.Option{
		client.WithMetrics(metrics),
		client.WithFetchLogger(monitoring.NewFetchLogger(logger.Component("client"))),
		client.WithAlerts(alerts),
	}
	if tracker != nil {
		clientOpts = append(clientOpts, client.WithTracker(tracker))
	}

	cl := client.New(client.Config{
		BaseURL:        cfg.Client.BaseURL,
		RefreshTimeout: cfg.Client.RefreshTimeout,
	}, client.NewHTTPClient(30*time.Second), cc, reg, clientOpts...)

	return &relay{
		cfg:     cfg,
		cache:   cc,
		reg:     reg,
		client:  cl,
		metrics: metrics,
		alerts:  alerts,
		tracker: tracker,
	}, nil
}

// fetchOptions translates the config's client section into per-fetch options.
func (r *relay) fetchOptions() client.Options {
	return client.Options{
		Retry:      r.cfg.Client.Retry, // nil keeps the client default
		RetryDelay: r.cfg.Client.RetryDelay,
		StaleTime:  r.cfg.Client.StaleTime,
		CacheTime:  r.cfg.Client.CacheTime,
		Transform:  r.cfg.Client.Transform,
		Jitter:     r.cfg.Client.Jitter,
	}
}

// close drains background refreshes and releases the cache and tracker.
func (r *relay) close() {
	r.client.Wait()
	if r.tracker != nil {
		r.tracker.Close()
	}
	if err := r.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("cache close failed")
	}
}
