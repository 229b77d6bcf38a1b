// Package logging wires structured, leveled logging for the budget control
// core via zerolog. File output rotates through RotatingWriter; console
// output uses zerolog's human-friendly writer for local development.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger. logFile of "" or "-" logs to stderr only;
// format "console" pretty-prints for a terminal, anything else emits raw
// JSON lines suitable for log aggregation.
func New(level, logFile, format string) (zerolog.Logger, io.Closer, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if strings.EqualFold(format, "console") {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		writers = append(writers, os.Stderr)
	}

	if trimmed := strings.TrimSpace(logFile); trimmed != "" && trimmed != "-" {
		rw, err := NewRotatingWriter(trimmed, 64*1024*1024)
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		writers = append(writers, rw)
		closer = rw
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
