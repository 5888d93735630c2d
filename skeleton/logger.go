package skeleton

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	nop    = zap.NewNop()
	logger atomic.Pointer[zap.Logger]
)

// Logger returns the package logger, a no-op logger unless SetLogger was called.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return nop
}

// SetLogger replaces the package logger. It is safe to call while conversions run.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}
