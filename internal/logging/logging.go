// Package logging provides the structured logging interface every
// subsystem is constructed with, plus a go.uber.org/zap-backed
// implementation, grounded on the logger construction in
// Kuadrant-dns-operator/cmd/plugin/common/logging.go.
package logging

import (
	"go.uber.org/zap"
)

// Logger is the leveled, structured logging surface subsystems depend on.
// *zap.SugaredLogger already implements it.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// New builds a zap-backed Logger. dev selects the human-readable
// development encoder over the JSON production encoder, mirroring the
// --dev flag pattern used across the pack's cobra entrypoints.
func New(dev bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return base.Sugar(), nil
}

// Nop returns a Logger that discards everything, for tests and for
// subsystems constructed without an explicit logger.
func Nop() Logger {
	return zap.NewNop().Sugar()
}
