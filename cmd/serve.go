// The serve command: debug HTTP endpoints plus an optional socket session.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/hookline/fetch-relay/internal/config"
	"github.com/hookline/fetch-relay/internal/ws"
)

func runServe(args []string) {
	loadEnvFiles()

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	debug := fs.Bool("debug", false, "enable debug logging")
	noBanner := fs.Bool("no-banner", false, "suppress startup banner")
	_ = fs.Parse(args)

	if !*noBanner {
		printBanner()
	}

	configData, configSource, err := resolveConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadFromBytes(configData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration (%s): %v\n", configSource, err)
		os.Exit(1)
	}

	setupLogging(cfg.Monitoring.LogLevel, cfg.Monitoring.LogFormat, *debug)

	log.Info().
		Str("version", Version).
		Str("config", configSource).
		Msg("fetch-relay starting")

	r, err := buildRelay(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build relay")
	}
	defer r.close()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var socket *ws.Manager
	if cfg.Socket.Enabled {
		socket = ws.NewManager(ws.Config{
			URL:               cfg.Socket.URL,
			ReconnectDelay:    cfg.Socket.ReconnectDelay,
			MaxReconnectDelay: cfg.Socket.MaxReconnectDelay,
			QueueSize:         cfg.Socket.QueueSize,
		}, r.reg,
			ws.WithMetrics(r.metrics),
			ws.WithAlerts(r.alerts),
		)
		if err := socket.Start(rootCtx); err != nil {
			log.Fatal().Err(err).Msg("failed to start socket session")
		}
		defer socket.Close()
		log.Info().
			Str("url", cfg.Socket.URL).
			Str("session_id", socket.SessionID()).
			Msg("socket session started")
	}

	port := cfg.Server.Port
	if port == 0 {
		port = 18090
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      newDebugRouter(r, socket),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-rootCtx.Done()
		log.Info().Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	log.Info().Int("port", port).Msg("debug server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}

	log.Info().Msg("fetch-relay stopped")
}

// newDebugRouter exposes cache, hook, and metrics introspection plus a
// fetch passthrough for poking at the relay from curl.
func newDebugRouter(r *relay, socket *ws.Manager) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)

	mux.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
	})

	mux.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, r.metrics.Stats())
	})

	mux.Get("/cache", func(w http.ResponseWriter, req *http.Request) {
		stats := r.cache.Stats()
		writeJSON(w, http.StatusOK, map[string]any{
			"entries":   r.cache.Len(),
			"hits":      stats.Hits,
			"misses":    stats.Misses,
			"evictions": stats.Evictions,
			"hit_rate":  stats.HitRate(),
		})
	})

	mux.Delete("/cache", func(w http.ResponseWriter, req *http.Request) {
		key := req.URL.Query().Get("key")
		if key == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key query parameter is required"})
			return
		}
		r.client.Invalidate(req.Context(), key)
		writeJSON(w, http.StatusOK, map[string]string{"invalidated": key})
	})

	mux.Get("/hooks", func(w http.ResponseWriter, req *http.Request) {
		points := map[string]int{}
		for _, p := range r.reg.Points() {
			points[p] = r.reg.HandlerCount(p)
		}
		writeJSON(w, http.StatusOK, points)
	})

	mux.Get("/fetch", func(w http.ResponseWriter, req *http.Request) {
		key := req.URL.Query().Get("key")
		if key == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key query parameter is required"})
			return
		}

		data, err := r.client.Fetch(req.Context(), key, r.fetchOptions())
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"key": key, "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	})

	if socket != nil {
		mux.Post("/socket/send", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Message string `json:"message"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Message == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message field is required"})
				return
			}
			if err := socket.Send([]byte(body.Message)); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"session_id": socket.SessionID()})
		})
	}

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode debug response")
	}
}
