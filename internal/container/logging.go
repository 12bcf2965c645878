package container

import (
	"go.uber.org/zap"

	"github.com/garyjia/content-workflow/internal/application/service"
)

// kvLogger backs the key/value Logger interfaces of the application packages
// with a sugared zap logger. quiet routes Info to debug level.
type kvLogger struct {
	s     *zap.SugaredLogger
	quiet bool
}

func newKVLogger(logger *zap.Logger, quiet bool) *kvLogger {
	return &kvLogger{s: logger.WithOptions(zap.AddCallerSkip(1)).Sugar(), quiet: quiet}
}

func (l *kvLogger) Info(msg string, keysAndValues ...interface{}) {
	if l.quiet {
		l.s.Debugw(msg, keysAndValues...)
		return
	}
	l.s.Infow(msg, keysAndValues...)
}

func (l *kvLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

// NewLoggerAdapter exposes the adapter to the interface layer.
func NewLoggerAdapter(logger *zap.Logger) service.Logger {
	return newKVLogger(logger, false)
}
