package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-fulfillment/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SIM_API_KEY", "k")
	t.Setenv("JWT_SECRET", "s")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Minute, cfg.PaymentTimeout)
	assert.Equal(t, 10*time.Minute, cfg.TimeoutEvery)
	assert.Equal(t, 5*time.Minute, cfg.VerifyEvery)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, "s", cfg.JWTSecret)
	assert.True(t, cfg.SchedulerEnable)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PrefixedWinsOverPlain(t *testing.T) {
	t.Setenv("SIM_API_KEY", "plain")
	t.Setenv("STOREFRONT_SIM_API_KEY", "prefixed")
	t.Setenv("STOREFRONT_HTTP_ADDR", ":9999")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.APIKey)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STOREFRONT_REDIS_ADDR=cache:6379\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("STOREFRONT_REDIS_ADDR") })

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
}

func TestValidate(t *testing.T) {
	t.Setenv("SIM_API_KEY", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STOREFRONT_SIM_API_KEY", "")
	t.Setenv("STOREFRONT_JWT_SECRET", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIM_API_KEY")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidate_Intervals(t *testing.T) {
	base := config.Config{APIKey: "k", JWTSecret: "s", PaymentTimeout: time.Minute, TimeoutEvery: time.Minute, VerifyEvery: time.Minute}
	require.NoError(t, base.Validate())

	tests := []struct {
		name  string
		apply func(*config.Config)
		want  string
	}{
		{"zero sweep interval", func(c *config.Config) { c.TimeoutEvery = 0 }, "TIMEOUT_SWEEP_EVERY"},
		{"negative verify interval", func(c *config.Config) { c.VerifyEvery = -time.Second }, "VERIFY_PAYMENTS_EVERY"},
		{"zero payment timeout", func(c *config.Config) { c.PaymentTimeout = 0 }, "PAYMENT_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.apply(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, config.Config{LogLevel: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, config.Config{LogLevel: "loud"}.SlogLevel())
}
