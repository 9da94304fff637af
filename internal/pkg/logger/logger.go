// Package logger implements ports.Logger on zerolog.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/doeshing/notegen/internal/ports"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string
	// Format is "console" (default) or "json".
	Format string
	Writer io.Writer
}

// Logger routes structured fields to zerolog.
type Logger struct {
	zl zerolog.Logger
}

// New creates a Logger from opts.
func New(opts Options) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if !strings.EqualFold(opts.Format, "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Stamp}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	return &Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// NewNop discards everything.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.zl.Info().Fields(fields).Msg(msg)
}

func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.zl.Warn().Fields(fields).Msg(msg)
}

func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	l.zl.Error().Err(err).Fields(fields).Msg(msg)
}

var _ ports.Logger = (*Logger)(nil)
