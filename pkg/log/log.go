// Package log configures the process-wide slog logger.
package log

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Supported output formats.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

func Setup(logLevel string, format string) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, ParseLevel(logLevel), format)))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds the handler for the given format. Unknown formats fall back to text.
func NewHandler(out *os.File, level slog.Level, format string) slog.Handler {
	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	case FormatPretty:
		return tint.NewHandler(out, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
			NoColor:    !isatty.IsTerminal(out.Fd()),
		})
	default:
		return slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
