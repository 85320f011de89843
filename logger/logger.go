package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls where and how verbosely logs are written.
type Options struct {
	Level   string    // debug, info, warn, error; empty means info
	File    string    // append logs to this file instead of Writer
	Writer  io.Writer // defaults to stderr
	Console bool      // human readable output instead of JSON
}

// New builds a zerolog logger. The returned closer releases the log file, if
// one was opened.
func New(o Options) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(o.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var out io.Writer = os.Stderr
	if o.Writer != nil {
		out = o.Writer
	}
	var closer io.Closer = nopCloser{}
	if o.File != "" {
		f, err := os.OpenFile(o.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("opening log file: %w", err)
		}
		out = f
		closer = f
	}
	if o.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: o.File != ""}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), closer, nil
}

func ParseLevel(s string) (zerolog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
