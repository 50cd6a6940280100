// Package logging provides a configured slog logger with:
// - TTY detection for human-readable vs JSON output
// - LOG_FORMAT env var override (text/json)
// - LOG_LEVEL env var (debug/info/warn/error)
// - Source file:line info with shortened relative paths
// - Redaction of credential-bearing attributes
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type contextKey string

// Context keys carrying request-scoped log attributes.
const (
	AnalysisIDKey contextKey = "log_analysis_id"
	UserIDKey     contextKey = "log_user_id"
)

// New creates a logger writing to stdout.
func New() *slog.Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a configured logger writing to w.
// Format is LOG_FORMAT (text/json), else text when w is a terminal and JSON otherwise.
// Level is LOG_LEVEL (debug/info/warn/error, default: info).
func NewWithWriter(w io.Writer) *slog.Logger {
	logFormat := os.Getenv("LOG_FORMAT")
	useText := logFormat == "text"
	if logFormat == "" {
		if f, ok := w.(*os.File); ok {
			useText = isatty(f)
		}
	}

	wd, _ := os.Getwd()

	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(os.Getenv("LOG_LEVEL")),
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					if rel, err := filepath.Rel(wd, src.File); err == nil {
						src.File = rel
					} else {
						src.File = filepath.Base(src.File)
					}
				}
				return a
			}
			return redact(a)
		},
	}

	var handler slog.Handler
	if useText {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// SetDefault creates a new logger and sets it as the default slog logger.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

// WithAnalysisID stores an analysis ID for FromContext.
func WithAnalysisID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, AnalysisIDKey, id)
}

// WithUserID stores a user ID for FromContext.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// GetAnalysisID returns the analysis ID stored in ctx, if any.
func GetAnalysisID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(AnalysisIDKey).(string)
	return id
}

// GetUserID returns the user ID stored in ctx, if any.
func GetUserID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

// FromContext returns logger enriched with the IDs found in ctx.
// The original logger is returned unchanged when ctx carries none.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}
	var attrs []any
	if id := GetAnalysisID(ctx); id != "" {
		attrs = append(attrs, "analysis_id", id)
	}
	if id := GetUserID(ctx); id != "" {
		attrs = append(attrs, "user_id", id)
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}

// redact masks values whose key names a credential.
func redact(a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if strings.Contains(key, "api_key") || strings.Contains(key, "secret") || key == "authorization" || key == "token" {
		if a.Value.String() == "" {
			return slog.String(a.Key, "unset")
		}
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
