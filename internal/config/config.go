// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CAMPUSPASS"

// Config holds everything cmd/api needs to wire the service.
type Config struct {
	Addr          string
	PGDSN         string
	TimeZone      string
	SweepInterval time.Duration
	RateBurst     int
	RatePerSec    int
	SendGridKey   string
	NotifyFrom    string
	AppName       string
}

// Load reads configuration. A .env file in the working directory is loaded
// first if present; real environment variables win over it.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("pg_dsn", "")
	v.SetDefault("timezone", "Local")
	v.SetDefault("sweep_interval", 10*time.Minute)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("rate_per_sec", 10)
	v.SetDefault("sendgrid_key", "")
	v.SetDefault("notify_from", "noreply@localhost")
	v.SetDefault("app_name", "campuspass")

	cfg := Config{
		Addr:          v.GetString("addr"),
		PGDSN:         v.GetString("pg_dsn"),
		TimeZone:      v.GetString("timezone"),
		SweepInterval: v.GetDuration("sweep_interval"),
		RateBurst:     v.GetInt("rate_burst"),
		RatePerSec:    v.GetInt("rate_per_sec"),
		SendGridKey:   v.GetString("sendgrid_key"),
		NotifyFrom:    v.GetString("notify_from"),
		AppName:       v.GetString("app_name"),
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("sweep interval must be positive, got %s", cfg.SweepInterval)
	}
	return cfg, nil
}

// Location resolves the configured service-day time zone.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
