package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "TELEGRAM_TOKEN", "REDIS_ADDR", "AMQP_URL", "REFRESH_INTERVAL_HOURS", "REFRESH_AHEAD_DAYS", "REFRESH_CONCURRENCY", "NAV_HORIZON_MONTHS", "ORPHAN_SCAN_TIME", "SUMMARY_TIME"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "habit_tracker.db", cfg.DatabaseURL)
	assert.Equal(t, "", cfg.HTTPAddr)
	assert.Equal(t, 6*time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 7, cfg.RefreshAheadDays)
	assert.Equal(t, 8, cfg.RefreshConcurrency)
	assert.Equal(t, 3, cfg.NavHorizonMonths)
	assert.Equal(t, "03:30", cfg.OrphanScanTime)
	assert.Equal(t, "08:00", cfg.SummaryTime)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", " data/app.db ")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REFRESH_INTERVAL_HOURS", "12")
	t.Setenv("REFRESH_CONCURRENCY", "0")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "data/app.db", cfg.DatabaseURL)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 12*time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 1, cfg.RefreshConcurrency)
}

func TestFromEnvRequiresSecretForHTTP(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("JWT_SECRET", "")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvInvalidIntervalFallsBack(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("REFRESH_INTERVAL_HOURS", "soon")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, cfg.RefreshInterval)
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "from-env.db")

	dir := t.TempDir()
	path := filepath.Join(dir, "creds.env")
	require.NoError(t, os.WriteFile(path, []byte("# store\nDATABASE_URL=/tmp/tracker.db\n"), 0o600))

	cfg, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/tracker.db", cfg.DatabaseURL)
	assert.Equal(t, "from-env.db", os.Getenv("DATABASE_URL"))

	empty := filepath.Join(dir, "empty.env")
	require.NoError(t, os.WriteFile(empty, []byte("TELEGRAM_TOKEN=x\n"), 0o600))
	_, err = LoadCredentials(empty)
	assert.Error(t, err)

	_, err = LoadCredentials(filepath.Join(dir, "missing.env"))
	assert.Error(t, err)
}
