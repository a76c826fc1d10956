package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "rewear.sqlite3", cfg.DB.DSN)
	assert.Equal(t, 168*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 100, cfg.InitialPoints)
	assert.False(t, cfg.Items.AutoApprove)
	assert.Equal(t, int64(5<<20), cfg.Items.MaxUploadBytes())
	assert.True(t, cfg.IsDev())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("REWEAR_DB_DRIVER", "postgres")
	t.Setenv("REWEAR_DB_DSN", "postgres://localhost/rewear")
	t.Setenv("REWEAR_AUTO_APPROVE_ITEMS", "true")
	t.Setenv("REWEAR_JWT_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "postgres://localhost/rewear", cfg.DB.DSN)
	assert.True(t, cfg.Items.AutoApprove)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("REWEAR_DB_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("REWEAR_ADDR=:9999\n"), 0o600))
	t.Setenv("REWEAR_ADDR", "")
	os.Unsetenv("REWEAR_ADDR")

	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("REWEAR_ADDR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
}
