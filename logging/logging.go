// Package logging implements tiercache.Logger backed by go.uber.org/zap.
package logging

import (
	"go.uber.org/zap"
)

// ZapLogger adapts a *zap.SugaredLogger to tiercache.Logger's
// Debug/Info/Warn/Error(msg string, keyvals ...interface{}) shape.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// New wraps an existing *zap.Logger.
func New(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: logger.Sugar()}
}

// NewProduction builds a ZapLogger using zap's production defaults (JSON
// encoding, info level and above).
func NewProduction() (*ZapLogger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return New(logger), nil
}

// NewDevelopment builds a ZapLogger using zap's development defaults
// (console encoding, debug level and above, stack traces on warn+).
func NewDevelopment() (*ZapLogger, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return New(logger), nil
}

func (l *ZapLogger) Debug(msg string, keyvals ...interface{}) { l.sugar.Debugw(msg, keyvals...) }
func (l *ZapLogger) Info(msg string, keyvals ...interface{})  { l.sugar.Infow(msg, keyvals...) }
func (l *ZapLogger) Warn(msg string, keyvals ...interface{})  { l.sugar.Warnw(msg, keyvals...) }
func (l *ZapLogger) Error(msg string, keyvals ...interface{}) { l.sugar.Errorw(msg, keyvals...) }

// Sync flushes any buffered log entries. Callers should invoke it on
// process shutdown; the error it returns is frequently benign (e.g.
// "invalid argument" syncing a non-file stdout on some platforms) and is
// safe to ignore in that case.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
