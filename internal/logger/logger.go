// Package logger wraps zerolog with the component-scoped loggers used
// across the coordinator's activities (dispatcher, registry, store,
// endpoint, supervisor, adminapi, worker).
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

// Init configures the package-level logger. level is parsed with
// zerolog.ParseLevel, defaulting to info on a bad value; pretty
// selects a human-readable console writer over newline-delimited JSON.
func Init(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)

	var output io.Writer = os.Stdout
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	log = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Get returns the base logger, used for the handful of top-level
// startup/shutdown lines that don't belong to a single component.
func Get() *zerolog.Logger {
	return &log
}

// WithComponent scopes log lines to one of the coordinator's
// activities (e.g. "dispatcher", "registry", "store").
func WithComponent(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithDispatch scopes log lines to the dispatcher's per-task,
// per-worker assignment path, where both ids are already known and
// would otherwise be attached field-by-field at every call site.
func WithDispatch(taskID, workerID string) zerolog.Logger {
	return log.With().
		Str("component", "dispatcher").
		Str("task_id", taskID).
		Str("worker_id", workerID).
		Logger()
}
