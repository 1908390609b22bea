package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL,required"`
	SessionTTLSeconds     int    `env:"SESSION_TTL_SECONDS" envDefault:"2592000"`
	LinkingCodeTTLSeconds int    `env:"LINKING_CODE_TTL_SECONDS" envDefault:"3600"`
	VerifyRateLimitPerMin int    `env:"VERIFY_RATE_LIMIT_PER_MIN" envDefault:"10"`
	LookupRateLimitPerMin int    `env:"LINKED_CHILD_RATE_LIMIT_PER_MIN" envDefault:"120"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
	Environment           string `env:"APP_ENV" envDefault:"development"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) LinkingCodeTTL() time.Duration {
	return time.Duration(c.LinkingCodeTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be positive")
	}
	if c.LinkingCodeTTLSeconds <= 0 {
		return fmt.Errorf("LINKING_CODE_TTL_SECONDS must be positive")
	}
	if c.LinkingCodeTTL() > MaxLinkingCodeTTL {
		return fmt.Errorf("LINKING_CODE_TTL_SECONDS must not exceed %d", int(MaxLinkingCodeTTL.Seconds()))
	}
	if c.VerifyRateLimitPerMin <= 0 {
		return fmt.Errorf("VERIFY_RATE_LIMIT_PER_MIN must be positive")
	}
	if c.LookupRateLimitPerMin <= 0 {
		return fmt.Errorf("LINKED_CHILD_RATE_LIMIT_PER_MIN must be positive")
	}

	if isProduction && strings.HasPrefix(c.RedisURL, "redis://") {
		log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// DeviceConfig configures the device-side client.
type DeviceConfig struct {
	BackendURL            string `env:"ZOOMI_BACKEND_URL" envDefault:"http://localhost:8080"`
	StorePath             string `env:"ZOOMI_STORE_PATH" envDefault:"zoomi-device.db"`
	RequestTimeoutSeconds int    `env:"ZOOMI_REQUEST_TIMEOUT_SECONDS" envDefault:"10"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"warn"`
}

func (c *DeviceConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func LoadDevice() (*DeviceConfig, error) {
	var cfg DeviceConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse device config: %w", err)
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("ZOOMI_REQUEST_TIMEOUT_SECONDS must be positive")
	}
	return &cfg, nil
}
