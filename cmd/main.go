// Package main is the entry point for fetch-relay.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/hookline/fetch-relay/internal/monitoring"
)

// ANSI color codes
const (
	relayBlue = "\033[38;2;52;120;246m"
	bold      = "\033[1m"
	reset     = "\033[0m"
)

const banner = `
  ███████╗███████╗████████╗ ██████╗██╗  ██╗    ██████╗ ███████╗██╗      █████╗ ██╗   ██╗
  ██╔════╝██╔════╝╚══██╔══╝██╔════╝██║  ██║    ██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝
  █████╗  █████╗     ██║   ██║     ███████║    ██████╔╝█████╗  ██║     ███████║ ╚████╔╝
  ██╔══╝  ██╔══╝     ██║   ██║     ██╔══██║    ██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝
  ██║     ███████╗   ██║   ╚██████╗██║  ██║    ██║  ██║███████╗███████╗██║  ██║   ██║
  ╚═╝     ╚══════╝   ╚═╝    ╚═════╝╚═╝  ╚═╝    ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝
`

// Version is set at build time via ldflags.
var Version = "v0.1.0"

func printBanner() {
	fmt.Print(relayBlue + bold + banner + reset + "\n")
}

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	// Try loading from ~/.config/fetch-relay/.env first
	configEnv := filepath.Join(homeDir, ".config", "fetch-relay", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Also load local .env (can override)
	_ = godotenv.Load()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "get", "fetch":
			runGet(os.Args[2:])
			return
		case "serve", "start":
			runServe(os.Args[2:])
			return
		case "version", "-v", "--version":
			fmt.Printf("fetch-relay %s\n", Version)
			return
		case "help", "-h", "--help":
			printHelp()
			return
		}
	}

	printHelp()
	os.Exit(2)
}

// resolveConfig resolves the config file.
// Checks: user flag -> filesystem locations.
func resolveConfig(userConfig string) ([]byte, string, error) {
	if userConfig != "" {
		data, err := os.ReadFile(userConfig)
		if err != nil {
			return nil, "", fmt.Errorf("config file not found: %s", userConfig)
		}
		return data, userConfig, nil
	}

	homeDir, _ := os.UserHomeDir()

	searchPaths := []string{}
	if homeDir != "" {
		searchPaths = append(searchPaths,
			filepath.Join(homeDir, ".config", "fetch-relay", "config.yaml"),
		)
	}
	searchPaths = append(searchPaths,
		"configs/config.yaml",
		"fetch-relay.yaml",
	)

	for _, path := range searchPaths {
		if data, err := os.ReadFile(path); err == nil {
			return data, path, nil
		}
	}

	// Empty config is valid, everything has a default.
	return []byte("{}"), "(defaults)", nil
}

// setupLogging installs the global logger. Format follows the config when
// set, otherwise console output on a terminal and JSON when piped or
// redirected.
func setupLogging(level, format string, debug bool) {
	if format == "" {
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = "console"
		} else {
			format = "json"
		}
	}
	if debug {
		level = "debug"
	}

	monitoring.Global(monitoring.LoggerConfig{
		Level:  level,
		Format: format,
		Output: "stderr",
	})
}

// printHelp prints usage information
func printHelp() {
	printBanner()
	fmt.Println("fetch-relay - caching fetch client with hookable request pipeline")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  fetch-relay [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  get KEY      Fetch a URL or key through the cache and print the body")
	fmt.Println("  serve        Start the relay with its debug HTTP endpoints")
	fmt.Println("  version      Print version information")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Get Options:")
	fmt.Println("  fetch-relay get [--config FILE] [--stale DUR] [--cache DUR]")
	fmt.Println("                  [--retry N] [--transform PATH] [--fresh] [--debug] KEY")
	fmt.Println()
	fmt.Println("Server Options:")
	fmt.Println("  fetch-relay serve [--config FILE] [--debug] [--no-banner]")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  fetch-relay get /api/users/1             Fetch relative to client.base_url")
	fmt.Println("  fetch-relay get --fresh /api/users/1     Bypass the cache entirely")
	fmt.Println("  fetch-relay get --transform data.items https://api.example.com/list")
	fmt.Println("  fetch-relay serve --config configs/config.yaml")
}
