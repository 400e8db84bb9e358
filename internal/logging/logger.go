// PgVault - PostgreSQL Backup and Recovery Engine
// Copyright 2026 PgVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pgvault/pgvault

// Package logging provides structured logging built on zerolog.
//
// Loggers are constructed once in main and injected into components;
// there is no package-level logger. Components receive a zerolog.Logger
// value and derive sub-loggers with component-specific context:
//
//	logger := logging.New(logging.Config{Level: "info", Format: "console"})
//	producer := backup.NewProducer(db, dir, logger)
//
// Two output formats are supported: "json" for machine consumption and
// "console" for human-readable terminal output.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum level to emit: trace, debug, info, warn,
	// error, fatal, panic. Unknown values fall back to info.
	Level string

	// Format selects the output encoding: "json" or "console".
	Format string

	// Caller adds file:line of the call site to each event.
	Caller bool

	// Output is the destination writer. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the standard production configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Caller: false,
		Output: os.Stderr,
	}
}

var fieldSetup sync.Once

// configureFields sets zerolog's process-wide field names and time
// format. zerolog stores these in package globals, so they are set
// exactly once regardless of how many loggers are constructed.
func configureFields() {
	fieldSetup.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
		zerolog.TimestampFieldName = "time"
		zerolog.LevelFieldName = "level"
		zerolog.MessageFieldName = "message"
		zerolog.CallerFieldName = "caller"
	})
}

// New constructs a logger from cfg. The returned logger carries a
// timestamp on every event and honors cfg.Level as its floor.
func New(cfg Config) zerolog.Logger {
	configureFields()

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
		}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}

	return ctx.Logger().Level(parseLevel(cfg.Level))
}

// parseLevel converts a level string to a zerolog.Level. Unknown
// values map to info rather than failing construction.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Nop returns a logger that discards everything. Useful as a default
// when a component is constructed without an explicit logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// NewTestLogger returns a debug-level JSON logger writing to w.
// Tests pass a bytes.Buffer and assert on the captured output.
func NewTestLogger(w io.Writer) zerolog.Logger {
	configureFields()
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}

// NewConsoleTestLogger returns a debug-level console logger writing
// to w, with colors disabled for stable assertions.
func NewConsoleTestLogger(w io.Writer) zerolog.Logger {
	configureFields()
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    true,
	}
	return zerolog.New(cw).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}
