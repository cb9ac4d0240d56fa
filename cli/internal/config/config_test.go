package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(Options{Name: "quest-1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, "1", cfg.GameVersion)
	assert.Equal(t, 4, cfg.Capacity)
	assert.Equal(t, "arena", cfg.Arena)
	assert.Equal(t, 20, cfg.TickHz)
	assert.Equal(t, []string{DefaultSTUN}, cfg.STUNServers())
	assert.Nil(t, cfg.TURNServers())

	// loopback is never wss
	assert.Equal(t, "ws://localhost:8080/ws", cfg.WebSocketURL())
	assert.Equal(t, "http://localhost:8080/rooms", cfg.RoomsURL())
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QUESTROOM_DOMAIN", "relay.example.com")
	t.Setenv("QUESTROOM_CAPACITY", "8")
	t.Setenv("TURN_SERVER", "turn.example.com")

	cfg, err := Load(Options{Capacity: 2, Name: "quest-1"})
	require.NoError(t, err)
	assert.Equal(t, "relay.example.com", cfg.Domain)
	assert.Equal(t, 2, cfg.Capacity)
	assert.Equal(t, "wss://relay.example.com/ws", cfg.WebSocketURL())
	assert.Equal(t, "https://relay.example.com/rooms", cfg.RoomsURL())
	assert.Contains(t, cfg.TURNServers(), "turns:turn.example.com:5349?transport=tcp")

	cfg, err = Load(Options{Domain: "10.0.0.5:8080", Insecure: true})
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.5:8080/ws", cfg.WebSocketURL())
	assert.NotEmpty(t, cfg.Name)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("QUESTROOM_ARENA=dojo\n"), 0o600))
	// godotenv does not override variables that are already set
	t.Setenv("QUESTROOM_ARENA", "")
	os.Unsetenv("QUESTROOM_ARENA")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "dojo", cfg.Arena)
}

func TestLoadValidates(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(Options{Capacity: 300})
	assert.Error(t, err)

	t.Setenv("QUESTROOM_TICK_HZ", "0")
	_, err = Load(Options{})
	assert.Error(t, err)
}
