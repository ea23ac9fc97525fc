package config

import (
	"encoding/json"
	"os"

	"github.com/nrana15/clio/internal/flagx"
	"github.com/nrana15/clio/internal/timex"
)

// JsonConfig is the file form of Config. Zero values leave the current
// setting alone.
type JsonConfig struct {
	BaseURL        string         `json:"base_url"`
	CheckInterval  timex.Duration `json:"check_interval"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	StepTimeout    timex.Duration `json:"step_timeout"`
	DataDir        string         `json:"data_dir"`
	LogLevel       string         `json:"log_level"`
	OtelEndpoint   string         `json:"otel_endpoint"`
	Biometric      string         `json:"biometric"`
	TrustBlock     []string       `json:"trust_block"`
}

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
	setString(&cfg.BaseURL, jc.BaseURL)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.OtelEndpoint, jc.OtelEndpoint)
	setString(&cfg.Biometric, jc.Biometric)

	if jc.CheckInterval.Duration > 0 {
		cfg.CheckInterval = jc.CheckInterval.Duration
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.StepTimeout.Duration > 0 {
		cfg.StepTimeout = jc.StepTimeout.Duration
	}
	if jc.TrustBlock != nil {
		cfg.TrustBlock = jc.TrustBlock
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
