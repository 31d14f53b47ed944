// Package logging builds the zerolog loggers used across the reconciler.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/rs/zerolog"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates the root logger. Output is stdout, stderr or a file path that is
// opened for append. The closer releases the file and is a no-op for the
// standard streams.
func New(cfg models.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	switch cfg.Output {
	case "stdout":
		return NewWithWriter(cfg, os.Stdout), nopCloser{}, nil
	case "", "stderr":
		return NewWithWriter(cfg, os.Stderr), nopCloser{}, nil
	}

	file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	return NewWithWriter(cfg, file), file, nil
}

func NewWithWriter(cfg models.LoggingConfig, writer io.Writer) zerolog.Logger {
	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}

	return zerolog.New(writer).
		With().
		Timestamp().
		Logger().
		Level(parseLevel(cfg.Level))
}

// Component derives a child logger tagged with the component name.
func Component(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// parseLevel falls back to info for empty or unknown names.
func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}
