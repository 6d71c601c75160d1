// Package log provides structured logging for GOFA training runs, built on
// zerolog. The engine logs one event per reported iteration (iteration index,
// ELBO, delta) and the data layer logs alignment and scaling decisions.
// Warnings raised through pkg/errors are routed here as structured events.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	goferrors "github.com/YuminosukeSato/gofa/pkg/errors"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str(ComponentKey, "gofa").Logger().
		Level(zerolog.WarnLevel)
)

func init() {
	// Route non-fatal warnings (convergence, likelihood mismatch) through
	// the structured logger.
	goferrors.SetWarningHandler(func(w error) {
		l := Logger()
		if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
			l.Warn().EmbedObject(obj).Msg(w.Error())
			return
		}
		l.Warn().Err(w).Msg("warning")
	})
}

// Logger returns the package logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger replaces the package logger. Intended for embedding GOFA into an
// application with its own zerolog configuration.
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// SetOutput redirects log output, keeping the current level and context.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Output(w)
}

// SetLevel sets the minimum emitted level.
func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(level)
}
