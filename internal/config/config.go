package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Auth    AuthConfig
	Nonce   NonceConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// AuthConfig holds message and session settings
type AuthConfig struct {
	AppName            string
	Domain             string
	URI                string
	ClockSkewTolerance time.Duration
	SessionSecret      string
	PersistentSecret   string
	SessionTTL         time.Duration
	PersistentTTL      time.Duration
}

// NonceConfig selects and tunes the nonce registry
type NonceConfig struct {
	Store         string // memory or redis
	RedisURL      string
	Events        string // none or redis
	TTL           time.Duration
	ConsumedGrace time.Duration
	SweepInterval time.Duration
}

// LoggingConfig holds log settings
type LoggingConfig struct {
	Level  string
	Format string
}

const devSecret = "dev-secret-change-in-production"

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("CURA_ADDR", ":9000"),
			ShutdownTimeout: getEnvDuration("CURA_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			AppName:            getEnv("CURA_APP_NAME", "Cura"),
			Domain:             getEnv("CURA_DOMAIN", ""),
			URI:                getEnv("CURA_URI", ""),
			ClockSkewTolerance: getEnvDuration("CURA_CLOCK_SKEW", 30*time.Second),
			SessionSecret:      getEnv("CURA_SESSION_SECRET", devSecret),
			PersistentSecret:   getEnv("CURA_PERSISTENT_SECRET", devSecret+"-persistent"),
			SessionTTL:         getEnvDuration("CURA_SESSION_TTL", 15*time.Minute),
			PersistentTTL:      getEnvDuration("CURA_PERSISTENT_TTL", 7*24*time.Hour),
		},
		Nonce: NonceConfig{
			Store:         strings.ToLower(getEnv("CURA_NONCE_STORE", "memory")),
			RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Events:        strings.ToLower(getEnv("CURA_EVENTS", "none")),
			TTL:           getEnvDuration("CURA_NONCE_TTL", 5*time.Minute),
			ConsumedGrace: getEnvDuration("CURA_NONCE_GRACE", 30*time.Second),
			SweepInterval: getEnvDuration("CURA_SWEEP_INTERVAL", time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("CURA_LOG_LEVEL", "info"),
			Format: getEnv("CURA_LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Auth.AppName == "" {
		return fmt.Errorf("app name is required")
	}
	if c.Auth.SessionSecret == "" || c.Auth.PersistentSecret == "" {
		return fmt.Errorf("session secrets are required")
	}
	if c.Auth.SessionSecret == c.Auth.PersistentSecret {
		return fmt.Errorf("session and persistent secrets must differ")
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.PersistentTTL <= 0 {
		return fmt.Errorf("session TTLs must be positive")
	}
	if c.Nonce.TTL <= 0 {
		return fmt.Errorf("nonce TTL must be positive")
	}
	if c.Nonce.SweepInterval < time.Second {
		return fmt.Errorf("sweep interval must be at least one second")
	}

	switch c.Nonce.Store {
	case "memory":
	case "redis":
		if c.Nonce.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis nonce store")
		}
	default:
		return fmt.Errorf("unknown nonce store %q", c.Nonce.Store)
	}

	switch c.Nonce.Events {
	case "none", "redis":
	default:
		return fmt.Errorf("unknown events backend %q", c.Nonce.Events)
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Nonce.Store == "redis" || c.Nonce.Events == "redis"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
