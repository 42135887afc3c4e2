package featurebank

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with featurebank-specific field helpers, so the
// pipeline logs consistent field names across stages.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithSource adds a source path field to the logger.
func (l *Logger) WithSource(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("source", path),
	}
}

// WithFeature adds a feature name field to the logger.
func (l *Logger) WithFeature(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("feature", name),
	}
}

// WithStage adds a pipeline stage field to the logger.
func (l *Logger) WithStage(stage string) *Logger {
	return &Logger{
		Logger: l.Logger.With("stage", stage),
	}
}
