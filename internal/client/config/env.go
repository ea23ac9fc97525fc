package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "CLIO_"

// parseEnv overlays CLIO_* variables. Unset variables keep the current
// value.
func parseEnv(cfg *Config) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		panic(fmt.Errorf("parse env: %w", err))
	}
}
