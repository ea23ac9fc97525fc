// Package config loads runtime configuration for the clio client.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Environment variables prefixed CLIO_.
//  4. Command-line flags.
//
// Flags
//
//	-a string   base URL of the identity service
//	-i int      periodic session check interval (seconds)
//	-d string   data directory holding the local database and device key
//	-t int      request timeout (seconds)
//	-l string   log level (debug, info, warn, error)
//
// # JSON schema
//
// Durations are timex.Duration values, so "30s" and integer nanoseconds both
// work:
//
//	{
//	  "base_url": "http://127.0.0.1:8080",
//	  "check_interval": "1m",
//	  "request_timeout": "15s",
//	  "step_timeout": "30s",
//	  "data_dir": "/home/me/.config/clio",
//	  "log_level": "info",
//	  "otel_endpoint": "",
//	  "biometric": "fprintd",
//	  "trust_block": ["root", "jailbreak"]
//	}
package config
