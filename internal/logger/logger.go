// Package logger builds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger handed to every component.
type Logger = zerolog.Logger

// Fields is a convenience alias for attaching several values at once.
type Fields map[string]interface{}

// New returns a logger for the given environment. Development environments
// get a human-readable console writer; everything else emits JSON lines.
func New(env string) Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(env string, w io.Writer) Logger {
	level := zerolog.InfoLevel
	out := w
	switch env {
	case "dev", "local":
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "test":
		level = zerolog.WarnLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "videotube-identity").Logger()
}

// With returns a child logger carrying the given fields.
func With(l Logger, fields Fields) Logger {
	return l.With().Fields(map[string]interface{}(fields)).Logger()
}
