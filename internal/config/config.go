// Package config loads nimbus settings from NIMBUS_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds process-wide settings. CLI flags default from it.
type Config struct {
	Backend   string `env:"NIMBUS_BACKEND" envDefault:"sqlite"`
	DBPath    string `env:"NIMBUS_DB" envDefault:"nimbus.db"`
	Namespace string `env:"NIMBUS_NAMESPACE" envDefault:"guest"`

	RedisAddr     string `env:"NIMBUS_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"NIMBUS_REDIS_PASSWORD"`
	RedisDB       int    `env:"NIMBUS_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"NIMBUS_REDIS_PREFIX" envDefault:"nimbus:"`

	Listen   string `env:"NIMBUS_LISTEN" envDefault:"127.0.0.1:3233"`
	LogLevel string `env:"NIMBUS_LOG_LEVEL" envDefault:"info"`
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendSQLite, BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("NIMBUS_BACKEND: unknown backend %q (want sqlite, memory or redis)", c.Backend)
	}
	if c.Namespace == "" {
		return fmt.Errorf("NIMBUS_NAMESPACE: must not be empty")
	}
	if c.Backend == BackendSQLite && c.DBPath == "" {
		return fmt.Errorf("NIMBUS_DB: required for the sqlite backend")
	}
	return nil
}
