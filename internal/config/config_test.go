package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, uint16(defaultPort), cfg.Port)
	assert.Equal(t, defaultMaxSessions, cfg.MaxSessions)
	assert.Equal(t, defaultTickRateHz, cfg.TickRateHz)
	assert.Greater(t, cfg.NumWorkers, 0)
}

func TestLoadFlagOverridesDefault(t *testing.T) {
	cfg, err := Load([]string{"--port=9999", "--workers=3"})
	require.NoError(t, err)

	assert.Equal(t, uint16(9999), cfg.Port)
	assert.Equal(t, 3, cfg.NumWorkers)
}

func TestLoadEnvironmentOverridesDefault(t *testing.T) {
	t.Setenv("PONGD_PORT", "8080")
	t.Setenv("PONGD_TICK_RATE", "20")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, uint16(8080), cfg.Port)
	assert.Equal(t, 20, cfg.TickRateHz)
}

func TestLoadFlagWinsOverEnvironment(t *testing.T) {
	t.Setenv("PONGD_PORT", "8080")

	cfg, err := Load([]string{"--port=7070"})
	require.NoError(t, err)

	assert.Equal(t, uint16(7070), cfg.Port)
}

func TestLoadRejectsNonPositiveTickRate(t *testing.T) {
	_, err := Load([]string{"--tick-rate=0"})
	assert.Error(t, err)
}

func TestTickDuration(t *testing.T) {
	cfg := Config{TickRateHz: 30}
	assert.InDelta(t, 33.33, cfg.TickDuration().Seconds()*1000, 0.5)
}

func TestLoadEnvFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "pongd-*.env")
	require.NoError(t, err)
	_, err = f.WriteString("PONGD_MAX_SESSIONS=42\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := Load([]string{"--env-file=" + f.Name()})
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.MaxSessions)
}
