// Package logging builds the engine's zap logger from a config.LoggingConfig.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vantos-systems/workorder-engine/internal/config"
)

// New builds a zap.Logger for the given level/format. JSON format uses zap's
// production encoder; console format uses the development encoder for
// human-readable CLI output.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Format == config.LogFormatConsole {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level(cfg.Level))

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

func level(l config.LogLevel) zapcore.Level {
	switch l {
	case config.LogLevelDebug:
		return zapcore.DebugLevel
	case config.LogLevelWarn:
		return zapcore.WarnLevel
	case config.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
