// Package logger wraps zerolog.Logger with the constructors and context
// helpers used by the conformance CLI and HTTP service.
//
// Logger embeds zerolog.Logger, so the full zerolog API (Debug, Info, Warn,
// Error...) is available directly. Request-scoped loggers travel in the
// context and are recovered with FromContext or FromRequest.
package logger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a thin wrapper around zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// Config selects the level and the output encoding.
type Config struct {
	Level  string
	Format string // json or console
	Output io.Writer
}

// New constructs a *Logger for the given role label ("cli", "server",
// "runner"). Unknown levels fall back to info.
func New(role string, cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	l := zerolog.New(out).Level(level).With().
		Str("role", role).
		Timestamp().
		Logger()
	return &Logger{l}
}

// Nop returns a *Logger that discards all output.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// Child returns a logger inheriting the receiver's fields.
func (l *Logger) Child() *Logger {
	return &Logger{l.With().Logger()}
}

// Errorf, Warnf and Debugf let a *Logger serve as resty's client logger.
func (l *Logger) Errorf(format string, v ...any) { l.Error().Msg(fmt.Sprintf(format, v...)) }
func (l *Logger) Warnf(format string, v ...any)  { l.Warn().Msg(fmt.Sprintf(format, v...)) }
func (l *Logger) Debugf(format string, v ...any) { l.Debug().Msg(fmt.Sprintf(format, v...)) }

// FromContext returns the logger stored by zerolog's WithContext. When none
// was stored zerolog's default logger is returned, never nil.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}

// FromRequest is FromContext for the request's context.
func FromRequest(r *http.Request) *Logger {
	return FromContext(r.Context())
}
