// README: zerolog-backed Logger with a component field.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type zerologLogger struct {
	log zerolog.Logger
}

// NewZerolog writes JSON lines to stdout, or console output when APP_ENV=dev.
func NewZerolog(component string) Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewZerologWriter(out, component)
}

// NewZerologWriter is NewZerolog with an explicit sink.
func NewZerologWriter(w io.Writer, component string) Logger {
	z := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	return &zerologLogger{log: z}
}

// SetLevel parses lvl ("debug", "info", ...) and applies it globally.
func SetLevel(lvl string) error {
	if lvl == "" {
		return nil
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(lvl))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

func (l *zerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *zerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *zerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *zerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *zerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
