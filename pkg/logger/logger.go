// Package logger constructs the structured loggers used across the Ember
// engine. Every subsystem receives its logger through a Config struct rather
// than reaching for a process-global one, which keeps embedders in control
// of where engine output goes.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a production-grade SugaredLogger named after the given service.
// The engine logs at lifecycle and rotation boundaries, so the default level
// is Info. The host package always builds its logger with this function;
// the options carry no logger override.
func New(service string) *zap.SugaredLogger {
	config := zap.NewProductionConfig()
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := config.Build()
	if err != nil {
		// Building the default production config cannot fail with the settings
		// above; fall back to a no-op logger rather than panicking inside a library.
		return zap.NewNop().Sugar()
	}

	return log.Sugar().Named(service)
}

// NewNop returns a logger that discards everything. Used by tests that
// build the internal engine layers directly.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
