// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Format selects the output encoding.
type Format string

const (
	// FormatAuto writes console output to terminals and JSON otherwise.
	FormatAuto Format = "auto"

	// FormatConsole writes human-readable output.
	FormatConsole Format = "console"

	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Format is the output encoding (default: auto).
	Format Format

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatAuto,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if pretty(cfg.Format, cfg.Output) {
		output = zerolog.ConsoleWriter{Out: cfg.Output, NoColor: !isTerminal(cfg.Output)}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

func pretty(format Format, out io.Writer) bool {
	switch Format(strings.ToLower(string(format))) {
	case FormatConsole:
		return true
	case FormatJSON:
		return false
	default:
		return isTerminal(out)
	}
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// parseLevel converts LogLevel to zerolog.Level.
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
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Redact masks a secret for logging, keeping the last four characters of
// long values so operators can tell keys apart.
func Redact(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Page fetches (page number, collected items, has_next)
//   - Client-side search summaries (scanned, matches)
//   - Individual attempts and rate limiter waits
//
// Info: Normal operation events
//   - Tool invocations and their outcome
//   - Write operations (note added, candidate archived)
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts
//   - Partial results (deadline reached, a file source unavailable)
//   - Shared rate limiter unavailable (fallback to local window)
//   - Pagination stopped on a bad cursor
//
// Error: Error conditions requiring attention
//   - Failed requests (after retries)
//   - Circuit breaker opened
//   - Configuration errors
//
// Context Fields:
//   - component: Emitting package (lever-client, rate-limiter, paginator, lever, tools)
//   - operation: Tool / operation name
//   - invocation_id: Tool invocation id
//   - route: Lever route template (/opportunities/{id})
//   - status_code: HTTP status code
//   - attempt: Attempt number within a retry loop
//   - error_class: Error classification (client, server, rate_limit, network, decode)
//   - duration: Request duration
//
// The API key is never logged; use Redact when a key must be identified.
