package utils

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewLogger builds the logger used by the browser and tools.
func NewLogger(verbose bool) (*zap.Logger, error) {
	var l *zap.Logger
	var err error
	if verbose {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create logger")
	}
	return l, nil
}
