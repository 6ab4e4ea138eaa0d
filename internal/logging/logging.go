// Package logging builds the zerolog loggers the rest of the application
// injects into its components. Loggers are constructed and passed down,
// never reached for through a package global.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output destinations.
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputFile   = "file"
)

// Formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects level, format, and destination for one logger.
type Config struct {
	// Level is a zerolog level name; unparseable values fall back to info.
	Level string

	// Format is "console" (human readable) or "json". Empty means console.
	Format string

	// Output is "stderr", "stdout", or "file". Empty means stderr.
	Output string

	// File is the log file path when Output is "file".
	File string

	// Caller annotates each event with the emitting file and line.
	Caller bool
}

// New builds a logger from cfg. The returned closer releases the log file
// when one was opened; it is a no-op otherwise.
func New(cfg Config) (zerolog.Logger, func() error, error) {
	noop := func() error { return nil }

	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer
	closer := noop
	switch cfg.Output {
	case OutputStdout:
		out = os.Stdout
	case OutputFile:
		if cfg.File == "" {
			return zerolog.Nop(), noop, fmt.Errorf("file output requires a log file path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			return zerolog.Nop(), noop, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return zerolog.Nop(), noop, fmt.Errorf("opening log file: %w", err)
		}
		out = f
		closer = f.Close
	case OutputStderr, "":
		out = os.Stderr
	default:
		return zerolog.Nop(), noop, fmt.Errorf("unknown log output %q", cfg.Output)
	}

	if !strings.EqualFold(cfg.Format, FormatJSON) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(lvl).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger(), closer, nil
}

// WithContext returns ctx carrying logger for retrieval via FromContext.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// FromContext returns the logger carried by ctx, or a disabled logger when
// none was attached.
func FromContext(ctx context.Context) zerolog.Logger {
	return *zerolog.Ctx(ctx)
}

// NewTest returns a logger suitable for tests: console format, warn level,
// writing to w.
func NewTest(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()
}
