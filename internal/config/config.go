// Package config defines service configuration and its loading hooks.
package config

import (
	"time"
)

// Config contains process configuration
type Config struct {
	// Environment selects logging format and defaults: development, staging, production.
	Environment string `koanf:"environment"`

	// LogLevel controls verbosity: trace, debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `koanf:"database_url"`

	// RedisURL enables the shared active-tariff cache when set.
	RedisURL string `koanf:"redis_url"`

	// CacheTTL bounds how long an active-tariff list is served from cache.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// MetricsEnabled exposes /metrics.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New returns a Config populated with defaults
func New() *Config {
	return &Config{
		Environment:     "development",
		LogLevel:        "info",
		Addr:            ":8080",
		CacheTTL:        5 * time.Minute,
		MetricsEnabled:  true,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}
