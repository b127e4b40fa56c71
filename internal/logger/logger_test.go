package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/abhisek/trainer/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zapcore.Level
	}{
		{"local", "debug", zapcore.DebugLevel},
		{"local", "warn", zapcore.WarnLevel},
		{"production", "error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.Env = tt.env
		cfg.LogLevel = tt.level

		log, err := New(cfg)
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(tt.want), "%s/%s", tt.env, tt.level)
		if tt.want > zapcore.DebugLevel {
			assert.False(t, log.Core().Enabled(tt.want-1), "%s/%s", tt.env, tt.level)
		}
	}
}

func TestNewBadLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "loud"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trainer.log")
	log, err := New(config.Default(), path)
	require.NoError(t, err)
	log.Info("hello")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
