package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmelo/painel/internal/asyncstate"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_Defaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, DefaultDriver, cfg.Database.Driver)
	assert.Zero(t, cfg.Debounce)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 0, cfg.Retry.Count)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
  dsn: ""
  rate_limit: 10
cache:
  ttl: "30"
retry:
  count: 3
  delay: 50ms
  strategy: exponential
logging:
  level: debug
  format: json
debounce: 150ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.InDelta(t, 10.0, cfg.Database.RateLimit, 0.001)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL())
	assert.Equal(t, 150*time.Millisecond, cfg.Debounce)
	assert.Equal(t, "debug", cfg.Logging.Level)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.Count)
	assert.Equal(t, 50*time.Millisecond, policy.Delay)
	assert.Equal(t, asyncstate.RetryExponential, policy.Strategy)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDriver, cfg.Database.Driver)
}

func TestLoad_DefaultSQLiteDSN(t *testing.T) {
	t.Setenv(EnvDriver, "")
	t.Setenv(EnvDSN, "")
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Database.DSN)
	assert.True(t, strings.HasSuffix(cfg.Database.DSN, filepath.Join(DefaultConfigDir, DefaultDBFile)),
		"DSN %q should end in the default database path", cfg.Database.DSN)
}

func TestLoad_NonSQLiteDriverKeepsEmptyDSN(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: memory\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "database: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
logging:
  level: warn
`)
	t.Setenv(EnvDriver, "sqlite")
	t.Setenv(EnvDSN, "/tmp/painel.db")
	t.Setenv(EnvLogLevel, "trace")
	t.Setenv(EnvDebounce, "75ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/painel.db", cfg.Database.DSN)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, 75*time.Millisecond, cfg.Debounce)
}

func TestLoad_EnvDebounceSeconds(t *testing.T) {
	t.Setenv(EnvDebounce, "2")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Debounce)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "EmptyDriver",
			mutate:  func(c *Config) { c.Database.Driver = "" },
			wantErr: "database.driver",
		},
		{
			name:    "BadTTL",
			mutate:  func(c *Config) { c.Cache.TTL = "eternal" },
			wantErr: "cache.ttl",
		},
		{
			name:    "NegativeRetryCount",
			mutate:  func(c *Config) { c.Retry.Count = -1 },
			wantErr: "retry.count",
		},
		{
			name:    "UnknownStrategy",
			mutate:  func(c *Config) { c.Retry.Strategy = "jittered" },
			wantErr: "retry.strategy",
		},
		{
			name:    "NegativeRateLimit",
			mutate:  func(c *Config) { c.Database.RateLimit = -1 },
			wantErr: "rate_limit",
		},
		{
			name:    "NegativeDebounce",
			mutate:  func(c *Config) { c.Debounce = -time.Second },
			wantErr: "debounce",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoggingConfigConversion(t *testing.T) {
	cfg := New()
	cfg.Logging = LoggingConfig{Level: "debug", Format: "json", Output: "file", File: "/tmp/p.log"}
	lc := cfg.LoggingConfig()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "json", lc.Format)
	assert.Equal(t, "file", lc.Output)
	assert.Equal(t, "/tmp/p.log", lc.File)
}
