// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing human-readable lines to stderr. Verbose
// enables debug-level output; otherwise only info and above is emitted.
// Logs go to stderr so command output on stdout stays machine-parseable.
func New(verbose bool) zerolog.Logger {
	return NewWriter(os.Stderr, verbose)
}

// NewWriter is New with an explicit destination, for tests.
func NewWriter(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
