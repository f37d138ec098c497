package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"domore/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: "9090"
repository:
  type: sqlite
  sqlite_path: /tmp/tasks.db
auth:
  secret: file-secret
  leeway: 1m
cache:
  enabled: false
  ttl: 30s
calendar:
  timezone: Europe/Berlin
  week_start: monday
worker:
  sweep_interval: 2m
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.GetServerAddr())
	assert.Equal(t, config.RepositorySQLite, cfg.Repository.Type)
	assert.Equal(t, "/tmp/tasks.db", cfg.Repository.SQLitePath)
	assert.Equal(t, time.Minute, cfg.Auth.Leeway)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 2*time.Minute, cfg.Worker.SweepInterval)

	cal, err := cfg.Calendar.Calendar()
	require.NoError(t, err)
	assert.Equal(t, time.Monday, cal.WeekStart)
	assert.Equal(t, "Europe/Berlin", cal.Location.String())
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  secret: s\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.GetServerAddr())
	assert.Equal(t, config.RepositoryMemory, cfg.Repository.Type)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 1024, cfg.Cache.Size)
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "auth:\n  secret: from-file\nserver:\n  port: \"8081\"\n")
	t.Setenv("DOMORE_AUTH_SECRET", "from-env")
	t.Setenv("DOMORE_SERVER_PORT", "7070")
	t.Setenv("DOMORE_CACHE_SIZE", "16")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 16, cfg.Cache.Size)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("DOMORE_AUTH_SECRET", "env-only")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.Auth.Secret)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown key", body: "auth:\n  secret: s\n  secrte: typo\n"},
		{name: "missing secret", body: "server:\n  port: \"1\"\n"},
		{name: "postgres without url", body: "auth:\n  secret: s\nrepository:\n  type: postgres\n"},
		{name: "unknown repository", body: "auth:\n  secret: s\nrepository:\n  type: mongo\n"},
		{name: "bad timezone", body: "auth:\n  secret: s\ncalendar:\n  timezone: Mars/Olympus\n"},
		{name: "bad week start", body: "auth:\n  secret: s\ncalendar:\n  week_start: someday\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
