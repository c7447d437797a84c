// Package config provides configuration management for the groceries API server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	DefaultServerPort        = 8080
	DefaultLogLevel          = "info"
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMetricsEnabled    = true
	DefaultFeedEnabled       = true
	DefaultReadTimeout       = 15 * time.Second
	DefaultWriteTimeout      = 15 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultConfigFile        = "config.yaml"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "APP_"

// Environment variable names.
const (
	EnvConfigFile        = "APP_CONFIG_FILE"
	EnvServerPort        = "APP_SERVER_PORT"
	EnvLogLevel          = "APP_LOG_LEVEL"
	EnvShutdownTimeout   = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled    = "APP_METRICS_ENABLED"
	EnvFeedEnabled       = "APP_FEED_ENABLED"
	EnvReadTimeout       = "APP_READ_TIMEOUT"
	EnvWriteTimeout      = "APP_WRITE_TIMEOUT"
	EnvIdleTimeout       = "APP_IDLE_TIMEOUT"
	EnvReadHeaderTimeout = "APP_READ_HEADER_TIMEOUT"
)

// Config holds the application configuration.
type Config struct {
	ServerPort      int           `koanf:"server_port"`
	LogLevel        string        `koanf:"log_level"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MetricsEnabled  bool          `koanf:"metrics_enabled"`
	FeedEnabled     bool          `koanf:"feed_enabled"`

	// HTTP server timeouts.
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidHTTPTimeout     = errors.New("HTTP server timeouts must be positive")
)

// defaults returns the built-in configuration values keyed like Config.
func defaults() map[string]any {
	return map[string]any{
		"server_port":         DefaultServerPort,
		"log_level":           DefaultLogLevel,
		"shutdown_timeout":    DefaultShutdownTimeout,
		"metrics_enabled":     DefaultMetricsEnabled,
		"feed_enabled":        DefaultFeedEnabled,
		"read_timeout":        DefaultReadTimeout,
		"write_timeout":       DefaultWriteTimeout,
		"idle_timeout":        DefaultIdleTimeout,
		"read_header_timeout": DefaultReadHeaderTimeout,
	}
}

// envKey maps APP_SERVER_PORT to server_port.
func envKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
}

// Load reads the configuration. Later sources override earlier ones:
// built-in defaults, the YAML file named by APP_CONFIG_FILE (config.yaml if
// unset), envFile (.env if empty), then the process environment.
// Missing files are skipped.
func Load(envFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	configFile := os.Getenv(EnvConfigFile)
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading config file %s: %w", configFile, err)
	}

	if envFile == "" {
		envFile = ".env"
	}
	if err := loadEnvFile(k, envFile); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadEnvFile merges APP_ variables from a dotenv file without touching the
// process environment.
func loadEnvFile(k *koanf.Koanf, path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading env file %s: %w", path, err)
	}

	m := make(map[string]any, len(values))
	for name, value := range values {
		if strings.HasPrefix(name, EnvPrefix) {
			m[envKey(name)] = value
		}
	}

	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}

	return nil
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 || c.ReadHeaderTimeout <= 0 {
		return ErrInvalidHTTPTimeout
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}
