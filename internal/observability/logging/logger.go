package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"opsglue/internal/handler/http/requestid"
)

// Options controls logger construction. Zero values fall back to LOG_FORMAT and
// LOG_LEVEL, then to JSON at info level on stdout.
type Options struct {
	// Format is "json" or "text"
	Format string

	// Level is one of debug, info, warn, error
	Level string

	// Writer receives log output
	Writer io.Writer
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// New creates a structured logger.
func New(opts Options) *slog.Logger {
	if opts.Format == "" {
		opts.Format = os.Getenv("LOG_FORMAT")
	}
	if opts.Level == "" {
		opts.Level = os.Getenv("LOG_LEVEL")
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	level := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(opts.Writer, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(opts.Writer, handlerOpts)
	}

	return slog.New(handler)
}

// NewLogger creates a JSON logger configured from the environment.
func NewLogger() *slog.Logger {
	return New(Options{})
}

// ForService returns a logger tagged with the service name.
func ForService(logger *slog.Logger, service string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("service", service))
}

// WithRequestID returns a logger that includes the request ID from ctx, if any.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	reqID := requestid.FromContext(ctx)
	if reqID == "" {
		return logger
	}
	return logger.With(slog.String("request_id", reqID))
}

// FromContext retrieves the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

type contextKey string

const loggerContextKey contextKey = "logger"
