// Package logging builds the process logger and hands the same sink to whatsmeow.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// ParseLevel maps a LOG_LEVEL value to a zerolog level, falling back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a console logger on stdout.
func New(level string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// WhatsApp wraps log as a whatsmeow logger for the given module.
// whatsmeow is chatty at info, so it never logs below warn.
func WhatsApp(log zerolog.Logger, module string) waLog.Logger {
	l := log.With().Str("module", module).Logger()
	if l.GetLevel() < zerolog.WarnLevel {
		l = l.Level(zerolog.WarnLevel)
	}
	return waLog.Zerolog(l)
}
