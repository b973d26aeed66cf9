// Package observability provides structured logging, metrics collection,
// and request correlation utilities for skinsight.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat specifies the output format for logs.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogConfig configures the logger. Level accepts a *slog.LevelVar so callers
// can raise verbosity after construction.
type LogConfig struct {
	Level     slog.Leveler
	Format    LogFormat
	Output    io.Writer
	AddSource bool
	Service   string
	Version   string
}

// defaultLogConfig returns text logs at info level on stderr.
func defaultLogConfig() LogConfig {
	return LogConfig{
		Level:   slog.LevelInfo,
		Format:  LogFormatText,
		Output:  os.Stderr,
		Service: "skinsight",
		Version: "dev",
	}
}

// NewLogger builds a logger whose records carry the service identity and the
// correlation fields stored on the context.
func NewLogger(cfg LogConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.Level == nil {
		cfg.Level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == LogFormatJSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	var attrs []slog.Attr
	if cfg.Service != "" {
		attrs = append(attrs, slog.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}
	return slog.New(&contextHandler{next: handler})
}

// LoggerFromEnv creates the logger used by the long-running binaries.
// SKINSIGHT_ENV=production switches to JSON with source locations;
// SKINSIGHT_LOG_LEVEL, SKINSIGHT_LOG_FORMAT and SKINSIGHT_VERSION override.
func LoggerFromEnv() *slog.Logger {
	cfg := defaultLogConfig()
	if os.Getenv("SKINSIGHT_ENV") == "production" {
		cfg.Format = LogFormatJSON
		cfg.Output = os.Stdout
		cfg.AddSource = true
		cfg.Version = "unknown"
	}
	if level := os.Getenv("SKINSIGHT_LOG_LEVEL"); level != "" {
		cfg.Level = ParseLevel(level)
	}
	if format := os.Getenv("SKINSIGHT_LOG_FORMAT"); format != "" {
		cfg.Format = LogFormat(strings.ToLower(format))
	}
	if version := os.Getenv("SKINSIGHT_VERSION"); version != "" {
		cfg.Version = version
	}
	return NewLogger(cfg)
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(level string) slog.Level {
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

// contextHandler copies correlation fields from the context onto each record.
type contextHandler struct {
	next slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := [...][2]string{
		{CorrelationIDKey, CorrelationIDFromContext(ctx)},
		{RequestIDKey, RequestIDFromContext(ctx)},
		{AccountIDKey, AccountIDFromContext(ctx)},
		{OperationKey, OperationFromContext(ctx)},
	}
	for _, field := range fields {
		if field[1] != "" {
			r.AddAttrs(slog.String(field[0], field[1]))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}
