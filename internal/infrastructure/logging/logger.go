package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/shadowsync/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "shadowsync"

// redacted replaces the value of any sensitive attribute.
const redacted = "[REDACTED]"

// sensitiveKeys are attribute keys whose values never reach the output:
// device credentials and broker secrets.
var sensitiveKeys = map[string]bool{
	"cert_pem":    true,
	"key_pem":     true,
	"root_ca_pem": true,
	"password":    true,
}

// Logger is a slog.Logger with shadowsync defaults.
//
// It satisfies the narrow Logger interfaces declared by the sync, cloud,
// hardware, link and process packages, so one instance (or a Component of
// it) is handed to each of them.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to cfg.Output ("stdout" or "stderr").
func New(cfg config.LoggingConfig, version string) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(w, cfg, version)
}

// NewWithWriter creates a Logger writing to w. Format and level come from
// cfg; cfg.Output is ignored.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler).With(
			slog.String("service", serviceName),
			slog.String("version", version),
		),
	}
}

// redact hides the values of sensitiveKeys at any group depth.
func redact(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

// parseLevel maps debug, info, warn(ing) and error to slog levels; anything
// else is info.
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

// With returns a Logger that adds args to every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component tags entries with the subsystem that wrote them.
//
//	log.Component("channel").Info("shadow channel established")
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is the logger used before configuration is loaded: JSON at info
// level on stdout.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
