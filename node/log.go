package node

import (
	"sync/atomic"

	"github.com/loom-services/loom/gen"
	"go.uber.org/zap"
)

// gen.Log implementation backed by zap. The level gate lives here so it
// can be changed at runtime (see WatchConfig) without rebuilding the zap
// core; zap applies its own filtering below this one.

func createLog(logger *zap.Logger, level gen.LogLevel, fields ...zap.Field) *log {
	l := &log{
		logger: logger.With(fields...),
	}
	l.level.Store(int32(level))
	l.sugar = l.logger.WithOptions(zap.AddCallerSkip(1)).Sugar()
	return l
}

type log struct {
	level  atomic.Int32
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

func (l *log) Level() gen.LogLevel {
	return gen.LogLevel(l.level.Load())
}

func (l *log) SetLevel(level gen.LogLevel) error {
	if level < gen.LogLevelDebug {
		return gen.ErrIncorrect
	}
	if level > gen.LogLevelDisabled {
		return gen.ErrIncorrect
	}
	l.level.Store(int32(level))
	return nil
}

func (l *log) Debug(format string, args ...any) {
	if l.Level() > gen.LogLevelDebug {
		return
	}
	l.sugar.Debugf(format, args...)
}

func (l *log) Info(format string, args ...any) {
	if l.Level() > gen.LogLevelInfo {
		return
	}
	l.sugar.Infof(format, args...)
}

func (l *log) Warning(format string, args ...any) {
	if l.Level() > gen.LogLevelWarning {
		return
	}
	l.sugar.Warnf(format, args...)
}

func (l *log) Error(format string, args ...any) {
	if l.Level() > gen.LogLevelError {
		return
	}
	l.sugar.Errorf(format, args...)
}

// Panic writes through the error sink. It must never panic itself: the
// process runner calls it from inside a deferred recover, and a logger
// configured for development would re-panic there and take the whole
// program down with it.
func (l *log) Panic(format string, args ...any) {
	if l.Level() > gen.LogLevelPanic {
		return
	}
	l.sugar.Errorf(format, args...)
}
