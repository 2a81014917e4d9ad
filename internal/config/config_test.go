package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chtemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.API.ListenAddress)
	assert.Equal(t, 256, cfg.Cache.MaxMemoryMB)
	assert.Equal(t, int64(3600), cfg.Cache.DefaultTTLSeconds)
	assert.Equal(t, int64(30*24*3600), cfg.Cache.MaxTTLSeconds)
	assert.Equal(t, "lru", cfg.Cache.EvictionPolicy)
	assert.Equal(t, 10*time.Second, cfg.Cache.ReaperInterval)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, int64(1000), cfg.RateLimit.Limit)
	assert.True(t, cfg.Registry.Enabled)
	assert.Empty(t, cfg.TEE.Provider)
}

func TestEnvOverrides(t *testing.T) {
	chtemp(t)
	t.Setenv("DWS_CACHE_CACHE_MAX_MEMORY_MB", "512")
	t.Setenv("DWS_CACHE_LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://cache:secret@db/workers")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Cache.MaxMemoryMB)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres://cache:secret@db/workers", cfg.Registry.DatabaseURL)
	assert.Equal(t, "redis:6379", cfg.Registry.RedisAddr)
}

func TestPortShorthand(t *testing.T) {
	chtemp(t)
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.API.ListenAddress)
}

func TestConfigFile(t *testing.T) {
	chtemp(t)
	yaml := []byte(`
api:
  listen_address: ":7777"
cache:
  max_memory_mb: 64
tee:
  provider: simulated
  seed: test-seed
registry:
  store_driver: redis
  redis_addr: localhost:6379
`)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(wd, "config.yaml"), yaml, 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.API.ListenAddress)
	assert.Equal(t, 64, cfg.Cache.MaxMemoryMB)
	assert.Equal(t, "simulated", cfg.TEE.Provider)
	assert.Equal(t, "test-seed", cfg.TEE.Seed)
	assert.Equal(t, "redis", cfg.Registry.StoreDriver)
}
