package config

import (
	"time"

	"github.com/nrana15/clio/internal/flagx"
)

// parseFlags overlays command-line flags:
//
//	-a string   listen address (e.g. ":8080")
//	-d string   SQLite DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-e string   environment; "development" echoes OTP codes
func parseFlags(cfg *Config) {
	fs, args := flagx.NewFlagSet("main", []string{"-a", "-d", "-s", "-t", "-r", "-e"})

	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "address and port to run server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	accessTTL := fs.Int("t", int(cfg.AccessTokenTTL.Minutes()), "access token validity (in minutes)")
	refreshTTL := fs.Int("r", int(cfg.RefreshTokenTTL.Minutes()), "refresh token validity (in minutes)")
	fs.StringVar(&cfg.Environment, "e", cfg.Environment, "environment")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.AccessTokenTTL = time.Duration(*accessTTL) * time.Minute
	cfg.RefreshTokenTTL = time.Duration(*refreshTTL) * time.Minute
}
