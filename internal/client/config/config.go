package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nrana15/clio/internal/client/devicetrust"
)

const (
	BiometricFprintd = "fprintd"
	BiometricNone    = "none"
)

// Config holds runtime settings for the clio client.
type Config struct {
	BaseURL        string        `env:"BASE_URL"`
	CheckInterval  time.Duration `env:"CHECK_INTERVAL"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	StepTimeout    time.Duration `env:"STEP_TIMEOUT"`
	DataDir        string        `env:"DATA_DIR"`
	LogLevel       string        `env:"LOG_LEVEL"`
	OtelEndpoint   string        `env:"OTEL_ENDPOINT"`
	Biometric      string        `env:"BIOMETRIC"`
	// TrustBlock lists the threat kinds that block startup. Nil means
	// devicetrust.DefaultPolicy.
	TrustBlock []string `env:"TRUST_BLOCK" envSeparator:","`
}

func (c *Config) LoadDefaults() {
	c.BaseURL = "http://127.0.0.1:8080"
	c.CheckInterval = time.Minute
	c.RequestTimeout = 15 * time.Second
	c.StepTimeout = 30 * time.Second
	c.DataDir = defaultDataDir()
	c.LogLevel = "info"
	c.Biometric = BiometricFprintd
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".clio"
	}
	return filepath.Join(dir, "clio")
}

// TrustPolicy builds the device trust policy from TrustBlock.
func (c *Config) TrustPolicy() (devicetrust.Policy, error) {
	if c.TrustBlock == nil {
		return devicetrust.DefaultPolicy(), nil
	}
	p := devicetrust.Policy{}
	for _, name := range c.TrustBlock {
		kind, err := devicetrust.ParseThreatKind(name)
		if err != nil {
			return nil, fmt.Errorf("trust_block: %w", err)
		}
		p[kind] = true
	}
	return p, nil
}

// LoadConfig applies defaults, then JSON, environment and flags. It panics
// on malformed input, same as the flag package does on bad flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
