package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("SessionTTL converts seconds to duration", func(t *testing.T) {
		cfg := &Config{SessionTTLSeconds: 3600}
		assert.Equal(t, time.Hour, cfg.SessionTTL())
	})

	t.Run("LinkingCodeTTL converts seconds to duration", func(t *testing.T) {
		cfg := &Config{LinkingCodeTTLSeconds: 600}
		assert.Equal(t, 10*time.Minute, cfg.LinkingCodeTTL())
	})

	t.Run("IsProduction checks APP_ENV", func(t *testing.T) {
		assert.True(t, (&Config{Environment: "production"}).IsProduction())
		assert.False(t, (&Config{Environment: "development"}).IsProduction())
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RedisURL:              "rediss://localhost:6379",
			SessionTTLSeconds:     3600,
			LinkingCodeTTLSeconds: 3600,
			VerifyRateLimitPerMin: 10,
			LookupRateLimitPerMin: 120,
		}
	}

	t.Run("accepts defaults", func(t *testing.T) {
		assert.NoError(t, valid().Validate(true))
	})

	t.Run("rejects non-positive session ttl", func(t *testing.T) {
		cfg := valid()
		cfg.SessionTTLSeconds = 0
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects linking code ttl over a day", func(t *testing.T) {
		cfg := valid()
		cfg.LinkingCodeTTLSeconds = int((25 * time.Hour).Seconds())
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects non-positive verify rate limit", func(t *testing.T) {
		cfg := valid()
		cfg.VerifyRateLimitPerMin = 0
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects non-positive linked child rate limit", func(t *testing.T) {
		cfg := valid()
		cfg.LookupRateLimitPerMin = 0
		assert.Error(t, cfg.Validate(false))
	})
}

func TestLoad(t *testing.T) {
	t.Run("loads config with defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/test")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("SESSION_TTL_SECONDS")
		os.Unsetenv("LINKING_CODE_TTL_SECONDS")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("APP_ENV")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, 2592000, cfg.SessionTTLSeconds)
		assert.Equal(t, 3600, cfg.LinkingCodeTTLSeconds)
		assert.Equal(t, 10, cfg.VerifyRateLimitPerMin)
		assert.Equal(t, 120, cfg.LookupRateLimitPerMin)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.False(t, cfg.IsProduction())
	})

	t.Run("loads custom values", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/test")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("PORT", "3000")
		t.Setenv("LINKING_CODE_TTL_SECONDS", "600")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, 600, cfg.LinkingCodeTTLSeconds)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails without required DATABASE_URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		os.Unsetenv("DATABASE_URL")
		t.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fails without required REDIS_URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/test")
		t.Setenv("REDIS_URL", "")
		os.Unsetenv("REDIS_URL")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadDevice(t *testing.T) {
	t.Run("loads defaults", func(t *testing.T) {
		t.Setenv("ZOOMI_BACKEND_URL", "")
		os.Unsetenv("ZOOMI_BACKEND_URL")
		t.Setenv("ZOOMI_STORE_PATH", "")
		os.Unsetenv("ZOOMI_STORE_PATH")

		cfg, err := LoadDevice()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", cfg.BackendURL)
		assert.Equal(t, "zoomi-device.db", cfg.StorePath)
		assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	})

	t.Run("rejects zero timeout", func(t *testing.T) {
		t.Setenv("ZOOMI_REQUEST_TIMEOUT_SECONDS", "0")

		_, err := LoadDevice()
		assert.Error(t, err)
	})
}
