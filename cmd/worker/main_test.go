package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningready/morningready/internal/config"
)

func TestLoadConfig_StampsBuildVersion(t *testing.T) {
	t.Setenv("APP_VERSION", "dev")
	prev := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = prev })

	cfg, err := loadConfig(config.Options{EnvFiles: []string{filepath.Join(t.TempDir(), "missing.env")}})
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", cfg.App.Version)
}

func TestLoadConfig_EnvVersionWins(t *testing.T) {
	t.Setenv("APP_VERSION", "2.0.0")

	cfg, err := loadConfig(config.Options{EnvFiles: []string{filepath.Join(t.TempDir(), "missing.env")}})
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", cfg.App.Version)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("APP_STORAGE", "sqlite")

	_, err := loadConfig(config.Options{EnvFiles: []string{filepath.Join(t.TempDir(), "missing.env")}})
	assert.Error(t, err)
}
