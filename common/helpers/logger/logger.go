package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger. format "json" writes raw JSON lines,
// anything else a human readable console.
func New(level string, format string) zerolog.Logger {
	return newWithWriter(os.Stdout, level, format)
}

func newWithWriter(out io.Writer, level string, format string) zerolog.Logger {
	var writer io.Writer = out
	if format != "json" {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(writer).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}

	return lvl
}
