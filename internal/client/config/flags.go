package config

import (
	"time"

	"github.com/nrana15/clio/internal/flagx"
)

func parseFlags(cfg *Config) {
	fs, args := flagx.NewFlagSet("main", []string{"-a", "-i", "-d", "-t", "-l"})

	fs.StringVar(&cfg.BaseURL, "a", cfg.BaseURL, "base URL of the identity service")
	checkInterval := fs.Int("i", int(cfg.CheckInterval.Seconds()), "session check interval (in seconds)")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.CheckInterval = time.Duration(*checkInterval) * time.Second
	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
