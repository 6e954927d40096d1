// Package logger wraps zerolog with the constructors this tree's
// components actually need: a process-wide logger for cmd/cli and
// cmd/server bootstrap, a per-component logger for stateless helpers, and a
// per-series logger for anything keyed by (symbol, timeframe) — the unit
// spec.md §5 treats as the boundary of cooperative scheduling.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ridopark/chanlun-engine/internal/models"
)

// serviceName tags every record this binary emits, regardless of which
// component or series produced it.
const serviceName = "chanlun-engine"

// InitLogger configures the package-level zerolog logger (log.Logger) for
// cmd/cli, which drives a cobra command tree with no single component
// logger to thread through.
func InitLogger(level, environment string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(parseLogLevel(level))

	log.Logger = newBase(environment).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()

	log.Info().
		Str("level", level).
		Str("environment", environment).
		Msg("logger initialized")
}

// New builds a standalone logger for cmd/server's bootstrap, before any
// component or series exists to tag it with.
func New(environment, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return newBase(environment).
		Level(parseLogLevel(level)).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// newBase picks the one behavioral fork every constructor in this file
// shares: a human-readable console writer in development, plain stdout
// (JSON) in production.
func newBase(environment string) zerolog.Logger {
	if environment == "production" {
		return zerolog.New(os.Stdout)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// NewContextLogger tags a stateless internal component (a pen builder, a
// divergence detector, ...) that has no per-series or per-request identity
// of its own.
func NewContextLogger(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}

// NewSeriesLogger tags every log line for one (symbol, timeframe) series so
// its lifecycle can be grepped out of a multi-series server's combined
// output. The engine logs through a logger built here; the pipeline
// components it calls use NewContextLogger, and the series worker builds its
// logger from the pool's.
func NewSeriesLogger(component, symbol string, timeframe models.Timeframe) zerolog.Logger {
	return log.With().
		Str("component", component).
		Str("symbol", symbol).
		Str("timeframe", string(timeframe)).
		Logger()
}

// NewRequestLogger tags one HTTP request's log lines with its correlation
// ID, method and path.
func NewRequestLogger(correlationID, method, path string) zerolog.Logger {
	return log.With().
		Str("correlation_id", correlationID).
		Str("method", method).
		Str("path", path).
		Str("component", "http").
		Logger()
}

// LogPerformance logs a timed operation's duration and outcome.
func LogPerformance(logger zerolog.Logger, operation string, start time.Time, success bool) {
	duration := time.Since(start)

	event := logger.Info()
	if !success {
		event = logger.Error()
	}

	event.
		Str("operation", operation).
		Dur("duration", duration).
		Bool("success", success).
		Msg("performance metric")
}

// LogError logs an error with extra structured fields attached.
func LogError(logger zerolog.Logger, err error, message string, fields map[string]interface{}) {
	event := logger.Error().Err(err)

	for key, value := range fields {
		switch v := value.(type) {
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		case int64:
			event = event.Int64(key, v)
		case float64:
			event = event.Float64(key, v)
		case bool:
			event = event.Bool(key, v)
		case time.Duration:
			event = event.Dur(key, v)
		default:
			event = event.Interface(key, v)
		}
	}

	event.Msg(message)
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}
