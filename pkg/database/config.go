package database

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Pool defaults. One pool serves the worker pool, API reads, and the
// retention sweep; a research run holds at most a handful of
// connections at a time.
const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

// LoadConfigFromEnv builds the database configuration from DB_*
// environment variables. Malformed numeric or duration values are
// startup errors rather than silent fallbacks.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		Host:     envOr("DB_HOST", "localhost"),
		User:     envOr("DB_USER", "curator"),
		Password: os.Getenv("DB_PASSWORD"),
		Database: envOr("DB_NAME", "curator"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	}

	var err error
	if cfg.Port, err = envInt("DB_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("DB_PORT out of range: %d", cfg.Port)
	}
	if cfg.MaxOpenConns, err = envInt("DB_MAX_OPEN_CONNS", defaultMaxOpenConns); err != nil {
		return Config{}, err
	}
	if cfg.MaxIdleConns, err = envInt("DB_MAX_IDLE_CONNS", defaultMaxIdleConns); err != nil {
		return Config{}, err
	}
	if cfg.ConnMaxLifetime, err = envDuration("DB_CONN_MAX_LIFETIME", defaultConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if cfg.ConnMaxIdleTime, err = envDuration("DB_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime); err != nil {
		return Config{}, err
	}

	// database/sql silently caps idle at open; make the effective
	// value visible in the config we log and report.
	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return d, nil
}
