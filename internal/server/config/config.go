// Package config handles configuration for the identity service: defaults,
// a JSON overlay, CLIO_IDENTITY_* environment variables and command-line
// flags, applied in that order.
package config

import (
	"time"

	"github.com/nrana15/clio/internal/common"
)

const EnvDevelopment = "development"

// Config holds runtime settings for the identity service.
type Config struct {
	Addr            string        `env:"ADDR"`
	DatabaseDSN     string        `env:"DATABASE_DSN"`
	SecretKey       string        `env:"SECRET_KEY"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL"`
	OtpLifetime     time.Duration `env:"OTP_LIFETIME"`
	OtpMaxAttempts  int           `env:"OTP_MAX_ATTEMPTS"`
	// StartRate is the sustained number of /auth/otp/start calls allowed
	// per identifier per minute; StartBurst is the bucket size.
	StartRate    float64 `env:"START_RATE"`
	StartBurst   int     `env:"START_BURST"`
	Environment  string  `env:"ENVIRONMENT"`
	LogLevel     string  `env:"LOG_LEVEL"`
	OtelEndpoint string  `env:"OTEL_ENDPOINT"`
}

// LoadDefaults populates Config with development defaults. The secret key
// must be overridden outside development.
func (c *Config) LoadDefaults() {
	c.Addr = ":8080"
	c.DatabaseDSN = "identity.db"
	c.SecretKey = "change-this-in-production"
	c.AccessTokenTTL = 30 * time.Minute
	c.RefreshTokenTTL = 7 * 24 * time.Hour
	c.OtpLifetime = common.OtpLifetimeSeconds * time.Second
	c.OtpMaxAttempts = common.OtpMaxAttempts
	c.StartRate = 5
	c.StartBurst = 3
	c.Environment = EnvDevelopment
	c.LogLevel = "info"
}

// DevMode reports whether issued codes are echoed back to the caller.
func (c *Config) DevMode() bool {
	return c.Environment == EnvDevelopment
}

func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
