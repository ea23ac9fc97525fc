package config

import (
	"encoding/json"
	"os"

	"github.com/nrana15/clio/internal/flagx"
	"github.com/nrana15/clio/internal/timex"
)

// JsonConfig is the file form of Config. Zero values keep the current
// setting.
type JsonConfig struct {
	Addr            string         `json:"addr"`
	DatabaseDSN     string         `json:"database_dsn"`
	SecretKey       string         `json:"secret_key"`
	AccessTokenTTL  timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL timex.Duration `json:"refresh_token_ttl"`
	OtpLifetime     timex.Duration `json:"otp_lifetime"`
	OtpMaxAttempts  int            `json:"otp_max_attempts"`
	StartRate       float64        `json:"start_rate"`
	StartBurst      int            `json:"start_burst"`
	Environment     string         `json:"environment"`
	LogLevel        string         `json:"log_level"`
	OtelEndpoint    string         `json:"otel_endpoint"`
}

// parseJson loads the file named by -c/-config and panics if it cannot be
// read or decoded.
func parseJson(cfg *Config) {
	path := flagx.ConfigFile()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}
	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	for dst, v := range map[*string]string{
		&cfg.Addr:         jc.Addr,
		&cfg.DatabaseDSN:  jc.DatabaseDSN,
		&cfg.SecretKey:    jc.SecretKey,
		&cfg.Environment:  jc.Environment,
		&cfg.LogLevel:     jc.LogLevel,
		&cfg.OtelEndpoint: jc.OtelEndpoint,
	} {
		if v != "" {
			*dst = v
		}
	}

	if jc.AccessTokenTTL.Duration > 0 {
		cfg.AccessTokenTTL = jc.AccessTokenTTL.Duration
	}
	if jc.RefreshTokenTTL.Duration > 0 {
		cfg.RefreshTokenTTL = jc.RefreshTokenTTL.Duration
	}
	if jc.OtpLifetime.Duration > 0 {
		cfg.OtpLifetime = jc.OtpLifetime.Duration
	}
	if jc.OtpMaxAttempts > 0 {
		cfg.OtpMaxAttempts = jc.OtpMaxAttempts
	}
	if jc.StartRate > 0 {
		cfg.StartRate = jc.StartRate
	}
	if jc.StartBurst > 0 {
		cfg.StartBurst = jc.StartBurst
	}
}
