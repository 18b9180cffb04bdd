// Package logging provides structured logging using uber/zap.
//
// Two modes: production (JSON output for machine parsing) and
// development (colored console output for human readability).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a configured logger. Development mode uses the console
// encoder with colored levels; production emits JSON at info level.
func New(development bool) *zap.Logger {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return zap.NewNop()
		}
		return logger
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
