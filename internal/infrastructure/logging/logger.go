package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/config"
)

// ServiceName is attached to every log record as the "service" attribute.
const ServiceName = "graylogic-appliances"

// Logger wraps slog.Logger so components can share one configured handler
// and derive child loggers with component-scoped attributes.
//
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to the destination named in cfg.Output.
func New(cfg config.LoggingConfig, version string) *Logger {
	return NewWithWriter(cfg, version, outputFor(cfg.Output))
}

// NewWithWriter creates a Logger writing to w. The cfg.Output field is ignored.
//
// Records carry service and version attributes. Format "text" selects the
// human-readable handler; anything else produces JSON.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

func outputFor(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel converts a string log level to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a child Logger with additional default attributes.
//
//	pollLog := logger.With("component", "cloud.poller")
//	pollLog.Info("fetched devices", "count", 3) // includes component=cloud.poller
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default creates a logger for use before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
