// Package logging centralizes zap construction so every package pulls a
// logger the same way the teacher repository does (go.uber.org/zap,
// package-level zap.L()/zap.S() after New installs the global logger).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls the logger built by New. The commands under cmd/ fill
// it in; core components never construct it directly.
type Options struct {
	Development bool
	Level       string
}

// New builds a zap.Logger and installs it as the package-global logger via
// zap.ReplaceGlobals, matching the teacher's reliance on zap.L() inside
// handlers that never receive a logger by parameter.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, err
		}
	}

	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
