package config_test

import (
	"log/slog"
	"ml-backend/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "dummy", cfg.ModelType)
	assert.Equal(t, config.StateDatabase, cfg.StateBackend)
	assert.Empty(t, cfg.RabbitMQURL)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "8000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STATE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("BASIC_AUTH_USER", "user")
	t.Setenv("BASIC_AUTH_PASS", "pass")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad state backend":  {"STATE_BACKEND": "etcd"},
		"redis without url":  {"STATE_BACKEND": "redis"},
		"half of basic auth": {"BASIC_AUTH_USER": "user"},
		"bad log level":      {"LOG_LEVEL": "loud"},
		"bad port":           {"PORT": "http"},
	}

	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := config.LoadConfig()
			assert.Error(t, err)
		})
	}
}
