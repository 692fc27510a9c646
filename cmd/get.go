// The get command: one fetch through the cache, body on stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hookline/fetch-relay/internal/client"
	"github.com/hookline/fetch-relay/internal/config"
)

func runGet(args []string) {
	loadEnvFiles()

	fs := flag.NewFlagSet("get", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	staleTime := fs.Duration("stale", 0, "override stale window")
	cacheTime := fs.Duration("cache", 0, "override hard expiry window")
	retry := fs.Int("retry", -1, "override retry count")
	transform := fs.String("transform", "", "override response transform path")
	fresh := fs.Bool("fresh", false, "bypass the cache and refetch")
	timeout := fs.Duration("timeout", 2*time.Minute, "overall fetch deadline")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: fetch-relay get [options] KEY")
		os.Exit(2)
	}
	key := fs.Arg(0)

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

	r, err := buildRelay(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build relay")
	}
	defer r.close()

	opts := r.fetchOptions()
	if *staleTime > 0 {
		opts.StaleTime = *staleTime
	}
	if *cacheTime > 0 {
		opts.CacheTime = *cacheTime
	}
	if *retry >= 0 {
		opts.Retry = client.Retries(*retry)
	}
	if *transform != "" {
		opts.Transform = *transform
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var data []byte
	if *fresh {
		data, err = r.client.Refetch(ctx, key, opts)
	} else {
		data, err = r.client.Fetch(ctx, key, opts)
	}
	if err != nil {
		log.Fatal().Err(err).Str("key", key).Msg("fetch failed")
	}

	os.Stdout.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Println()
	}
}
