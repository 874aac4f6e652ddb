// Package logging configures zerolog for the search client and CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every request and round.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs search lifecycle and progress.
	LevelInfo LogLevel = "info"

	// LevelWarn logs soft failures and retries.
	LevelWarn LogLevel = "warn"

	// LevelError logs failed searches only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel validates a level name from configuration or flags.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "disabled", "off", "none":
		return LevelDisabled, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// parseLevel converts LogLevel to zerolog.Level, defaulting to info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: one line per unit of work
//   - Each search request sent (endpoint, body size)
//   - Round start (phase, round, pages)
//   - Rate limit state updates while healthy
//   - Cache layer used for a load
//
// Info: search lifecycle
//   - Search started and finished (jql, total, pages, duration)
//   - Round progress (fetched / expected pages)
//   - Records loaded from or saved to the cache
//
// Warn: soft failures that are retried
//   - Page failures by class (transport, timeout, status, parse)
//   - Backoff before the next round
//   - Rate limit pause or throttling
//   - Stale cache entries, cache read or write failures
//
// Error: the search cannot finish
//   - First page failed
//   - Retry budget exhausted
//   - Unreadable cache entries
//   - Configuration errors
//
// Context Fields:
//   - component: searcher, http-client, rate-limit, cache, cli
//   - search_id: random id shared by every line of one search
//   - offset: page offset (startAt)
//   - class: failure class
//   - status: HTTP status of a failed page
//   - round, phase: round counter and phase (discover, fetch)
//   - remaining: server rate limit budget
//   - key: cache key
