// Package zlog adapts github.com/rs/zerolog to the snapdb.Logger
// interface, in the style of the pack's own zerolog wrappers: a
// package-level console/JSON logger with component-scoped children.
package zlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how New builds its underlying zerolog.Logger.
type Config struct {
	Level      zerolog.Level
	JSONOutput bool
	Output     io.Writer
}

// Logger wraps a zerolog.Logger and implements snapdb.Logger's single
// Printf method.
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger from cfg. The zero Config yields info-level
// console output to stderr.
func New(cfg Config) Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	level := cfg.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var z zerolog.Logger
	if cfg.JSONOutput {
		z = zerolog.New(output).Level(level).With().Timestamp().Logger()
	} else {
		z = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).Level(level).With().Timestamp().Logger()
	}
	return Logger{z: z}
}

// WithComponent returns a child Logger tagging every message with a
// "component" field, e.g. "unionreader" or "gc".
func (l Logger) WithComponent(component string) Logger {
	return Logger{z: l.z.With().Str("component", component).Logger()}
}

// Printf implements snapdb.Logger, logging at info level.
func (l Logger) Printf(format string, args ...any) {
	l.z.Info().Msgf(format, args...)
}
