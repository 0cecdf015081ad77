package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/platinummonkey/corpus/pkg/observability"
	"github.com/platinummonkey/corpus/pkg/schemes"
	"github.com/platinummonkey/corpus/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Storage configuration
	Storage storage.Config

	// Cache configuration
	Cache CacheConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// CacheConfig holds the tenant config cache settings
type CacheConfig struct {
	// Size bounds the number of cached scheme entries across all tenants
	// and revisions.
	Size int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Storage:       loadStorageConfig(),
		Cache:         loadCacheConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if url := getEnv("CORPUS_POSTGRES_URL", ""); url != "" {
		cfg.URL = url
	}
	if maxConns := getEnvInt("CORPUS_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("CORPUS_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("CORPUS_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}
	if lifetime := getEnvDuration("CORPUS_POSTGRES_MAX_LIFETIME", 0); lifetime > 0 {
		cfg.MaxLifetime = lifetime
	}
	if idle := getEnvDuration("CORPUS_POSTGRES_MAX_IDLE_TIME", 0); idle > 0 {
		cfg.MaxIdleTime = idle
	}

	return cfg
}

// loadCacheConfig loads cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Size: getEnvInt("CORPUS_CONFIG_CACHE_SIZE", schemes.DefaultCacheSize),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("CORPUS_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("CORPUS_METRICS_ENABLED", true),
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Storage.URL == "" {
		return fmt.Errorf("CORPUS_POSTGRES_URL is required")
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("CORPUS_CONFIG_CACHE_SIZE must be positive")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
