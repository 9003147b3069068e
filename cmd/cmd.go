// Package cmd provides the stressease CLI commands.
//
// Commands:
//   - serve: HTTP API server
//   - migrate: apply database migrations and exit
//   - token: mint a development bearer token
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/stressease/stressease/internal/log"
)

// Execute is the main entry point for the stressease CLI.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: os.Getenv("LOG_FORMAT") == "json"})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "migrate":
		return runMigrate(logger)
	case "token":
		return runToken(os.Args[2:])
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("StressEase - mental wellness backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  stressease serve [addr]      Start the HTTP API server (default: :8080)")
	fmt.Println("  stressease migrate           Apply database migrations and exit")
	fmt.Println("  stressease token <user-id>   Mint a development bearer token")
	fmt.Println("  stressease --version         Show version information")
	fmt.Println("  stressease --help            Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Gemini API key (default provider)")
	fmt.Println("  HMAC_SECRET        Required for serve and token: API token signing secret")
	fmt.Println("  DATABASE_URL       Optional: overrides the postgres_* config values")
	fmt.Println("  DEBUG              Optional: enable debug logging")
	fmt.Println("  LOG_FORMAT         Optional: set to \"json\" for JSON logs")
}
