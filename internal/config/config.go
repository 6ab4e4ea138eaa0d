// Package config loads and validates the application configuration from
// YAML, with environment variable overrides. A Config is built once at
// startup and handed to the components that need it; nothing in this
// package is a process-wide global.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmelo/painel/internal/asyncstate"
	"github.com/dmelo/painel/internal/cache"
	"github.com/dmelo/painel/internal/logging"
)

// Defaults applied when the file and environment say nothing.
const (
	DefaultDriver = "sqlite"

	// DefaultConfigDir is the per-user directory holding config.yaml,
	// relative to the home directory.
	DefaultConfigDir = ".painel"

	// DefaultDBFile is the sqlite database file inside DefaultConfigDir,
	// used when no DSN is configured.
	DefaultDBFile = "painel.db"
)

// Environment variable names. Cache TTL and enablement are owned by the
// cache package (PAINEL_CACHE_TTL, PAINEL_CACHE_ENABLED).
const (
	EnvConfigFile = "PAINEL_CONFIG"
	EnvDriver     = "PAINEL_DB_DRIVER"
	EnvDSN        = "PAINEL_DB_DSN"
	EnvLogLevel   = "PAINEL_LOG_LEVEL"
	EnvDebounce   = "PAINEL_DEBOUNCE"
)

// DatabaseConfig selects and tunes the backend adapter.
type DatabaseConfig struct {
	// Driver is a registered adapter name, e.g. "sqlite" or "memory".
	Driver string `yaml:"driver"`

	// DSN is the driver-specific connection string.
	DSN string `yaml:"dsn"`

	// RateLimit caps backend calls per second; zero disables the limiter.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the limiter burst size; defaults to 1 when RateLimit is set.
	RateBurst int `yaml:"rate_burst"`
}

// CacheConfig tunes the read cache.
type CacheConfig struct {
	// TTL accepts a bare number of seconds or a Go duration string.
	TTL string `yaml:"ttl"`

	// Disabled turns the cache into a pass-through.
	Disabled bool `yaml:"disabled"`
}

// RetryConfig shapes the retry loop for failed reads.
type RetryConfig struct {
	Count int           `yaml:"count"`
	Delay time.Duration `yaml:"delay"`

	// Strategy is "fixed" or "exponential".
	Strategy string `yaml:"strategy"`
}

// LoggingConfig selects the logger's level, format, and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Retry    RetryConfig    `yaml:"retry"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Debounce is the coordinator's trailing collapse window. Zero (the
	// default) keeps reads immediate; only in-flight dedup applies.
	Debounce time.Duration `yaml:"debounce"`
}

// New returns a Config with defaults only.
func New() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: DefaultDriver},
		Cache:    CacheConfig{TTL: cache.DefaultTTL.String()},
		Retry:    RetryConfig{Strategy: "fixed"},
		Logging:  LoggingConfig{Level: "info", Format: "console", Output: "stderr"},
	}
}

// Load builds the effective configuration: defaults, then the YAML file,
// then environment overrides. path may be empty, in which case PAINEL_CONFIG
// and finally ~/.painel/config.yaml are consulted; a missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, DefaultConfigDir, "config.yaml")
		}
	}
	if path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	// First run with no file and no environment still has a working sqlite
	// backend: the database lives next to config.yaml.
	if cfg.Database.Driver == DefaultDriver && cfg.Database.DSN == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Database.DSN = filepath.Join(home, DefaultConfigDir, DefaultDBFile)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path onto cfg. A missing file leaves
// cfg unchanged.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables onto cfg. Unparseable values are
// ignored in favor of what the file and defaults produced.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDriver); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv(EnvDSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvDebounce); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.Debounce = d
		} else if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			cfg.Debounce = time.Duration(secs) * time.Second
		}
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Database.Driver == "" {
		return fmt.Errorf("database.driver cannot be empty")
	}
	if c.Cache.TTL != "" {
		if _, err := cache.ParseTTL(c.Cache.TTL); err != nil {
			return fmt.Errorf("cache.ttl: %w", err)
		}
	}
	if c.Retry.Count < 0 {
		return fmt.Errorf("retry.count cannot be negative")
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay cannot be negative")
	}
	switch c.Retry.Strategy {
	case "", "fixed", "exponential":
	default:
		return fmt.Errorf("retry.strategy must be fixed or exponential, got %q", c.Retry.Strategy)
	}
	if c.Database.RateLimit < 0 {
		return fmt.Errorf("database.rate_limit cannot be negative")
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce cannot be negative")
	}
	return nil
}

// RetryPolicy converts the retry section into the policy the async
// containers consume.
func (c *Config) RetryPolicy() asyncstate.RetryPolicy {
	return asyncstate.RetryPolicy{
		Count:    c.Retry.Count,
		Delay:    c.Retry.Delay,
		Strategy: asyncstate.RetryStrategy(c.Retry.Strategy),
	}
}

// LoggingConfig converts the logging section for the logging package.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
		File:   c.Logging.File,
	}
}

// CacheTTL returns the parsed cache TTL.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTL == "" {
		return cache.DefaultTTL
	}
	ttl, err := cache.ParseTTL(c.Cache.TTL)
	if err != nil {
		return cache.DefaultTTL
	}
	return ttl
}
