// Where: internal/logging/logging.go
// What: Global zerolog setup and child-logger helpers.
// Why: One structured stream to stdout is all CloudWatch needs.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance. Init must run before use.
var Logger zerolog.Logger

// Config holds logging configuration.
type Config struct {
	// Level is one of debug, info, warn, error. Anything else falls
	// back to info.
	Level string
	// Console switches to human-readable output for local runs. The
	// deployed function always logs JSON.
	Console bool
	// Output defaults to stdout.
	Output io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Console {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}
	Logger = zerolog.New(output).With().Timestamp().Logger()
}

// WithComponent creates a child logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRequestID creates a child logger carrying the invocation's
// request id so one invocation's lines correlate.
func WithRequestID(base zerolog.Logger, requestID string) zerolog.Logger {
	if requestID == "" {
		return base
	}
	return base.With().Str("request_id", requestID).Logger()
}

// WithService creates a child logger scoped to one cluster/service
// pipeline within a deploy batch.
func WithService(base zerolog.Logger, cluster, service string) zerolog.Logger {
	return base.With().Str("cluster", cluster).Str("service", service).Logger()
}
