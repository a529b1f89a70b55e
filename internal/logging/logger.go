// Package logging builds the process slog.Logger from config: level,
// text or JSON output on stdout, and an optional append-mode log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gotidy/internal/config"
)

// New returns a logger for cfg and a close func for the log file, if any.
func New(cfg config.LogConfig) (*slog.Logger, func() error, error) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.LogConfig, stdout io.Writer) (*slog.Logger, func() error, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	out := stdout
	closeFn := func() error { return nil }
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(stdout, f)
		closeFn = f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == config.LogJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closeFn, nil
}

// Discard is a logger that drops everything. Components fall back to it
// when constructed with a nil logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns l, or Discard() when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
