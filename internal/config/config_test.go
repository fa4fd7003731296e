package config

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t) // no stray .env

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "config/catalog.yaml", cfg.CatalogPath)
	assert.Equal(t, time.Second, cfg.PacingMin)
	assert.Equal(t, 5*time.Second, cfg.PacingMax)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 1.0, cfg.ProviderRateLimit)
	assert.Equal(t, 6*time.Hour, cfg.LockTTL)
	assert.Equal(t, "0 6 * * *", cfg.RefreshCron)
	assert.False(t, cfg.EnableScheduler)
	assert.False(t, cfg.RedisEnabled)
}

func TestLoad_FromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DATA_DIR", "/var/cache/baseball")
	t.Setenv("PACING_MIN", "0s")
	t.Setenv("PACING_MAX", "250ms")
	t.Setenv("DATABASE_PASSWORD", "pw")
	t.Setenv("DATABASE_PORT", "6543")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/cache/baseball", cfg.DataDir)
	assert.Equal(t, time.Duration(0), cfg.PacingMin)
	assert.Equal(t, 250*time.Millisecond, cfg.PacingMax)
	assert.NoError(t, cfg.RequireDatabase())
	assert.Equal(t, 6543, cfg.DatabasePort)
	assert.Equal(t, "pw", cfg.DatabasePassword)
}

func TestLoad_RejectsInvertedPacing(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PACING_MIN", "10s")
	t.Setenv("PACING_MAX", "1s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PACING_MIN")
}

func TestValidate(t *testing.T) {
	base := Config{DataDir: "data", CatalogPath: "c.yaml", PacingMin: time.Second, PacingMax: time.Second}
	assert.NoError(t, base.Validate())

	noCron := base
	noCron.EnableScheduler = true
	assert.Error(t, noCron.Validate())

	noTTL := base
	noTTL.RedisEnabled = true
	assert.Error(t, noTTL.Validate())

	assert.Error(t, base.RequireDatabase())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestSetupLogger_UsesLoadedLevel(t *testing.T) {
	chdirTemp(t)
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "warn")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())

	SetupLogger(cfg)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	dev := &Config{AppEnv: "development", LogLevel: "debug"}
	assert.True(t, dev.IsDevelopment())
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
