// Package logging builds the process logger: a tint console handler on
// stderr, optionally teed into a Shipper that forwards records to the
// analysis service.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// ParseLevel maps debug/info/warn/error to a slog level. Unknown values fall
// back to def.
func ParseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return def
}

// LevelForEnv is debug in development and warn everywhere else.
func LevelForEnv(env string) slog.Level {
	if strings.EqualFold(env, "development") || strings.EqualFold(env, "dev") {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewConsoleHandler writes colored output when w is a terminal.
func NewConsoleHandler(w io.Writer, level slog.Leveler) slog.Handler {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	})
}

// New returns a logger over the console handler, teed into shipper when
// one is given.
func New(w io.Writer, level slog.Leveler, shipper *Shipper) *slog.Logger {
	h := NewConsoleHandler(w, level)
	if shipper != nil {
		h = shipper.Handler(h)
	}
	return slog.New(h)
}
