package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "migrations", cfg.Database.MigrationsDir)
	assert.Equal(t, "1h", cfg.JWT.AccessTokenExpiration)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "admin", cfg.Seed.AdminUsername)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
  csrf_enabled: true
database:
  driver: memory
jwt:
  secret: from-file
redis:
  db: 2
logging:
  level: debug
  format: text
`)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("REDIS_DB", "5")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port, "env must win over file")
	assert.True(t, cfg.Server.CSRFEnabled)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 5, cfg.Redis.DB)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing secret", "database:\n  driver: memory\n"},
		{"unknown driver", "database:\n  driver: oracle\njwt:\n  secret: s\n"},
		{"bad expiration", "database:\n  driver: memory\njwt:\n  secret: s\n  access_token_expiration: soon\n"},
		{"bad log format", "database:\n  driver: memory\njwt:\n  secret: s\nlogging:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_BadEnvValue(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("REDIS_ENABLED", "maybe")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetPostgresConnectionString(t *testing.T) {
	cfg := &Config{}
	cfg.Database.User = "u"
	cfg.Database.Password = "p"
	cfg.Database.Host = "db"
	cfg.Database.Port = "5433"
	cfg.Database.DBName = "libris"

	assert.Equal(t, "postgres://u:p@db:5433/libris?sslmode=disable", cfg.GetPostgresConnectionString())
}
