package dimgo

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with dimgo-specific context.
// This provides structured logging with consistent field names.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithPos adds a chunk coordinate field to the logger.
func (l *Logger) WithPos(pos Pos) *Logger {
	return &Logger{
		Logger: l.Logger.With("pos", pos.String()),
	}
}

// WithKey adds a record key field to the logger.
func (l *Logger) WithKey(key uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", key),
	}
}

// WithGeneration adds a generation field to the logger.
func (l *Logger) WithGeneration(gen uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("generation", gen),
	}
}

// LogLoad logs a chunk load from storage.
func (l *Logger) LogLoad(ctx context.Context, pos Pos, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "chunk load failed",
			"pos", pos.String(),
			"duration", duration,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "chunk loaded",
			"pos", pos.String(),
			"duration", duration,
		)
	}
}

// LogGet logs a point lookup.
func (l *Logger) LogGet(ctx context.Context, dims []uint64, err error) {
	if err != nil {
		l.DebugContext(ctx, "get failed",
			"dims", dims,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "get completed",
			"dims", dims,
		)
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, key uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"key", key,
		)
	}
}

// LogUpdate logs an update operation.
func (l *Logger) LogUpdate(ctx context.Context, dims []uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"dims", dims,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "update completed",
			"dims", dims,
		)
	}
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(ctx context.Context, dims []uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed",
			"dims", dims,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "remove completed",
			"dims", dims,
		)
	}
}

// LogScan logs a range scan.
func (l *Logger) LogScan(ctx context.Context, matches int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scan failed",
			"matches", matches,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "scan completed",
			"matches", matches,
		)
	}
}

// LogInvalidate logs a chunk invalidation.
func (l *Logger) LogInvalidate(pos Pos) {
	l.Debug("chunk invalidated",
		"pos", pos.String(),
	)
}
