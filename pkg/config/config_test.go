package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFromDefaults(t *testing.T) {
	cfg, err := ParseFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.Simulation.PacingDelay)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "api_key", cfg.AI.APIKeyName)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestParseFromOverrides(t *testing.T) {
	cfg, err := ParseFrom(map[string]string{
		"PORT":                    "9000",
		"APP_ENV":                 "production",
		"SIMULATION_PACING_DELAY": "250ms",
		"STORAGE_DRIVER":          "redis",
		"ALLOWED_ORIGINS":         "http://a.test,http://b.test",
	})
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 250*time.Millisecond, cfg.Simulation.PacingDelay)
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
}

func TestParseFromRejectsBadDuration(t *testing.T) {
	_, err := ParseFrom(map[string]string{"SIMULATION_PACING_DELAY": "soon"})
	assert.Error(t, err)
}
