// src/logger/logger.go
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// L is the global logger. Until InitLogger runs it writes WARN and above to stdout.
var L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

type contextKey string

const loggerKey contextKey = "logger"

// ParseLevel maps a LOG_LEVEL string to a slog.Level, defaulting to INFO.
func ParseLevel(logLevelStr string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(logLevelStr)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// InitLogger initializes the global logger writing JSON to stdout.
// Call this once at startup, after loading config.
func InitLogger(logLevelStr string) {
	InitLoggerWithWriter(os.Stdout, logLevelStr)
}

// InitLoggerWithWriter initializes the global logger with a custom writer.
func InitLoggerWithWriter(w io.Writer, logLevelStr string) {
	level, ok := ParseLevel(logLevelStr)
	if !ok {
		slog.Warn("Invalid LOG_LEVEL specified, defaulting to INFO", "configuredLevel", logLevelStr)
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	L = slog.New(slog.NewJSONHandler(w, opts))
	slog.SetDefault(L)
	L.Info("Logger initialized", "level", level.String())
}

// FromContext retrieves a logger from context, or returns the global logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
			return logger
		}
	}
	return L
}

// ToContext embeds a slog.Logger into a context.Context.
func ToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Event logs a named observability event. Checks that used to live in debug output
// (totals summing up, invariants holding) are reported through here with an "event" key.
func Event(ctx context.Context, level slog.Level, name, msg string, args ...any) {
	FromContext(ctx).Log(ctx, level, msg, append([]any{"event", name}, args...)...)
}
