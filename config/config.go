// Package config loads server configuration from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the exchange server.
type Config struct {
	// Addr is the TCP listen address for trader connections.
	Addr string

	// DataFile is the historical command file replayed by the market data
	// feed. Empty disables the feed.
	DataFile string

	// ReplayInterval is the pacing delay between replayed feed commands.
	ReplayInterval time.Duration

	// FeedMinConns is the live connection count that triggers the feed.
	FeedMinConns int

	// OutboundBuffer is the per-connection outbound line buffer size.
	OutboundBuffer int

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string
}

// Load reads configuration from a .env file (if present) and environment
// variables, applying defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:           getEnv("EXCHANGE_ADDR", ":5501"),
		DataFile:       getEnv("EXCHANGE_DATA_FILE", ""),
		ReplayInterval: getEnvDuration("EXCHANGE_REPLAY_INTERVAL", 10*time.Millisecond),
		FeedMinConns:   getEnvInt("EXCHANGE_FEED_MIN_CONNS", 2),
		OutboundBuffer: getEnvInt("EXCHANGE_OUTBOUND_BUFFER", 256),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("EXCHANGE_ADDR cannot be empty")
	}
	if c.ReplayInterval <= 0 {
		return fmt.Errorf("EXCHANGE_REPLAY_INTERVAL must be > 0")
	}
	if c.FeedMinConns < 1 {
		return fmt.Errorf("EXCHANGE_FEED_MIN_CONNS must be >= 1")
	}
	if c.OutboundBuffer < 1 {
		return fmt.Errorf("EXCHANGE_OUTBOUND_BUFFER must be >= 1")
	}

	validLevels := map[string]bool{"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: DEBUG, INFO, WARN, ERROR")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
