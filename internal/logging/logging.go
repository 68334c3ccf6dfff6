// Package logging sets up the structured logger shared by the CLI, the
// dashboard and the stores.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/emilianohg/cyclelog/internal/config"
)

// Open returns a JSON logger appending to the cyclelog log file. When
// verbose is set, records are also written as text to stderr. The returned
// closer must be called on shutdown.
func Open(verbose bool) (*slog.Logger, io.Closer, error) {
	if err := config.EnsureDirectories(); err != nil {
		return nil, nil, err
	}
	logPath, err := config.LogPath()
	if err != nil {
		return nil, nil, err
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	if verbose {
		handler = fanout{handler, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})}
	}
	return slog.New(handler), f, nil
}
