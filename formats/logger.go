// Package formats holds what the asset adapters share.
package formats

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	nop    = zap.NewNop()
	logger atomic.Pointer[zap.Logger]
)

// Logger returns the logger used by every adapter, a no-op logger unless
// SetLogger was called.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return nop
}

// SetLogger replaces the adapter logger.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}
