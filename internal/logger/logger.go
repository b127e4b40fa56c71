package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/abhisek/trainer/internal/config"
)

// New builds the application logger. Production gets JSON output, everything
// else the human-readable development encoder. outputs replaces the default
// sinks; the terminal UI passes a file so log lines do not tear the screen.
func New(cfg *config.Config, outputs ...string) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Env == "production" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		// Keep the terminal UI readable.
		zc.OutputPaths = []string{"stderr"}
	}

	if cfg.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	if len(outputs) > 0 {
		zc.OutputPaths = outputs
	}

	return zc.Build()
}
