package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PROMPTDECK_DATABASE_URL", "postgres://localhost:5432/promptdeck")
	t.Setenv("PROMPTDECK_AUTH_JWT_SECRET", testSecret)
}

func TestLoadFromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PROMPTDECK_SERVER_PORT", "9090")
	t.Setenv("PROMPTDECK_SERVER_LOG_LEVEL", "debug")
	t.Setenv("PROMPTDECK_LLM_OPENAI_API_KEY", "sk-test")
	t.Setenv("PROMPTDECK_WORKER_CONCURRENCY", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "postgres://localhost:5432/promptdeck", cfg.Database.URL)
	assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAIAPIKey)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.False(t, cfg.Server.Realtime)
	assert.Equal(t, 24, cfg.Auth.TokenLifetimeHours)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, 120, cfg.Worker.JobTimeoutSeconds)
	assert.True(t, cfg.Pipeline.AutoOptimization)
	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
}

func TestLoadRejectsMissingDatabaseURL(t *testing.T) {
	t.Setenv("PROMPTDECK_AUTH_JWT_SECRET", testSecret)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Database.URL")
}

func TestLoadRejectsShortJWTSecret(t *testing.T) {
	t.Setenv("PROMPTDECK_DATABASE_URL", "postgres://localhost:5432/promptdeck")
	t.Setenv("PROMPTDECK_AUTH_JWT_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Auth.JWTSecret")
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PROMPTDECK_SERVER_LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Server.LogLevel"))
}
