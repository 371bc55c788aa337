// internal/logger/logger_test.go
package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "engine.log")
	log, err := New(&Config{LogFile: logFile, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Info("position opened")
	_ = log.Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"position opened"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNew_ConsoleOnlyWithoutFile(t *testing.T) {
	log, err := New(&Config{})
	require.NoError(t, err)
	log.Info("console only")
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "sniper.log", cfg.LogFile)
	assert.True(t, strings.HasSuffix(cfg.LogFile, ".log"))
	assert.Equal(t, 7, cfg.MaxAgeDays)
}

func TestNew_DevelopmentEnablesDebug(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "engine.log")
	log, err := New(&Config{LogFile: logFile, Development: true})
	require.NoError(t, err)

	log.Debug("verbose detail")
	_ = log.Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "verbose detail")
}
