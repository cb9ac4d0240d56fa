package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 16, cfg.MaxCapacity)
	assert.Equal(t, 60.0, cfg.PoseRate)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_CAPACITY", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, 4, cfg.MaxCapacity)
}

func TestLoadRejectsCapacity(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAX_CAPACITY", "0")

	_, err := Load()
	assert.Error(t, err)
}
