package jsonlog

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"runtime/debug"
)

type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps a level name to a Level. Unknown names yield LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "warn", "WARN":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) ToSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type contextKey string

const correlationIDKey = contextKey("correlation_id")

// WithCorrelationID returns a copy of ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the id stored by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

type Logger struct {
	minLevel Level
	slogger  *slog.Logger
}

func New(out io.Writer, minLevel Level, env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: minLevel.ToSlogLevel(),
	}

	if env == "development" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &Logger{
		minLevel: minLevel,
		slogger:  slog.New(handler),
	}
}

// With returns a logger that adds attrs to every entry.
func (l *Logger) With(attrs ...any) *Logger {
	return &Logger{
		minLevel: l.minLevel,
		slogger:  l.slogger.With(attrs...),
	}
}

// StdLogger adapts the logger for APIs that take a *log.Logger, such as
// http.Server.ErrorLog. Entries are written at error level.
func (l *Logger) StdLogger() *log.Logger {
	return slog.NewLogLogger(l.slogger.Handler(), slog.LevelError)
}

func (l *Logger) Info(msg string, attrs ...any) {
	l.slogger.Info(msg, attrs...)
}

func (l *Logger) Error(msg string, attrs ...any) {
	l.slogger.Error(msg, attrs...)
}

func (l *Logger) Debug(msg string, attrs ...any) {
	l.slogger.Debug(msg, attrs...)
}

func (l *Logger) Warn(msg string, attrs ...any) {
	l.slogger.Warn(msg, attrs...)
}

func withCorrelation(ctx context.Context, attrs []any) []any {
	if id := CorrelationID(ctx); id != "" {
		attrs = append(attrs, "correlation_id", id)
	}
	return attrs
}

func (l *Logger) InfoWithContext(ctx context.Context, msg string, attrs ...any) {
	l.Info(msg, withCorrelation(ctx, attrs)...)
}

func (l *Logger) ErrorWithContext(ctx context.Context, msg string, attrs ...any) {
	l.Error(msg, withCorrelation(ctx, attrs)...)
}

func (l *Logger) DebugWithContext(ctx context.Context, msg string, attrs ...any) {
	l.Debug(msg, withCorrelation(ctx, attrs)...)
}

func (l *Logger) WarnWithContext(ctx context.Context, msg string, attrs ...any) {
	l.Warn(msg, withCorrelation(ctx, attrs)...)
}

func (l *Logger) PrintFatal(err error, properties map[string]string) {
	attrs := make([]any, 0, len(properties)*2+4)
	attrs = append(attrs, "error", err.Error(), "stack", string(debug.Stack()))

	for key, value := range properties {
		attrs = append(attrs, key, value)
	}

	l.Error("fatal error", attrs...)
	os.Exit(1)
}
