package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/contractkit/gas"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, gas.DefaultSchedule(), cfg.Gas.Schedule)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contractkit.yaml")
	content := `
gas:
  limit: 5000
  schedule:
    storage_write: 42
storage:
  backend: sqlite
  path: /tmp/state.db
log:
  level: debug
metrics:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), cfg.Gas.Limit)
	assert.Equal(t, uint64(42), cfg.Gas.Schedule.StorageWrite)
	// Unset schedule entries keep their defaults
	assert.Equal(t, gas.DefaultSchedule().Call, cfg.Gas.Schedule.Call)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("CONTRACTKIT_GAS_LIMIT", "777")
	t.Setenv("CONTRACTKIT_LOG_LEVEL", "warn")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(777), cfg.Gas.Limit)
	assert.Equal(t, "warn", cfg.Log.Level)

	// Flags win over the environment
	fs := Flags()
	require.NoError(t, fs.Parse([]string{"--log.level=error"}))
	cfg, err = Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Storage.Backend = "redis"
	cfg.Events.Backend = "sqlite"
	cfg.Log.Level = "chatty"
	cfg.Gas.Limit = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage.backend")
	assert.Contains(t, err.Error(), "events.path is required")
	assert.Contains(t, err.Error(), "gas.limit")
	assert.Contains(t, err.Error(), "chatty")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
