package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STREAM_API_KEY", "")
	t.Setenv("STREAM_API_SECRET", "")
	t.Setenv("PORT", "")
	t.Setenv("STREAM_TOKEN_TTL_SEC", "")
	t.Setenv("STREAM_POLL_INTERVAL_SEC", "")
	t.Setenv("STREAM_CALL_TYPE", "")
	t.Setenv("GETSTREAM_API_SECRET", "legacy-secret")
	t.Setenv("REGISTRY_BACKEND", "SQLite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, RegistrySQLite, cfg.Registry.Backend)
	assert.Equal(t, "legacy-secret", cfg.Stream.APISecret)
	assert.Equal(t, "livestream", cfg.Stream.CallType)
	assert.Equal(t, 24*time.Hour, cfg.Stream.TokenTTL())
	assert.Equal(t, 5*time.Second, cfg.LiveSession.PollInterval())
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("REGISTRY_BACKEND", "localstorage")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REGISTRY_BACKEND")
}

func TestScheduleLocation(t *testing.T) {
	loc, err := ScheduleConfig{Timezone: "Local"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = ScheduleConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = ScheduleConfig{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "w", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/w?sslmode=disable", c.DSN())
	c.URL = "postgres://x"
	assert.Equal(t, "postgres://x", c.DSN())
}
