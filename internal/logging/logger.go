package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Config selects the handler and level of the process logger.
type Config struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// ParseLevel converts a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New builds a logger writing to w. Attributes pass through ReplaceAttr so
// sensitive values never reach the handler.
func New(w io.Writer, cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: ReplaceAttr,
	}

	var h slog.Handler
	switch cfg.Format {
	case "", "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(h), nil
}

// ReplaceAttr masks sensitive attributes. It has the slog.HandlerOptions
// ReplaceAttr signature.
func ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	switch v := a.Value.Any().(type) {
	case string:
		return slog.String(a.Key, SafeLogValue(a.Key, v).(string))
	case []string:
		if IsSensitiveField(a.Key) {
			return slog.Any(a.Key, SafeLogValue(a.Key, v))
		}
	default:
		if IsSensitiveField(a.Key) {
			return slog.String(a.Key, MaskedValue)
		}
	}
	return a
}
