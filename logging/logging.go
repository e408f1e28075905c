// Package logging builds the zap loggers used by the CLI and server.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects logger level and encoding
type Config struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// New creates a logger writing to stderr so stdout stays free for results
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	var zapConfig zap.Config
	if cfg.Development {
		// Development mode: console logging
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		// Production mode: structured JSON logging
		zapConfig = zap.NewProductionConfig()
		zapConfig.DisableStacktrace = true
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(zap.String("service", "tlsn-verifier")), nil
}

// Must is New for callers that cannot continue without a logger
func Must(cfg Config) *zap.Logger {
	logger, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return logger
}
