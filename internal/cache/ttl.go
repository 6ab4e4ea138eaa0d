package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TTL configuration defaults and bounds.
const (
	// DefaultTTL is the default entry lifetime.
	DefaultTTL = 5 * time.Minute

	// MinTTL is the minimum allowed TTL.
	MinTTL = time.Second

	// MaxTTL is the maximum allowed TTL.
	MaxTTL = 24 * time.Hour

	// EnvTTL is the environment variable overriding the TTL. Accepts a Go
	// duration ("90s", "10m") or plain seconds ("300").
	EnvTTL = "PAINEL_CACHE_TTL"

	// EnvEnabled is the environment variable enabling/disabling the cache.
	EnvEnabled = "PAINEL_CACHE_ENABLED"
)

// ErrInvalidTTL is returned for TTLs outside the allowed range.
var ErrInvalidTTL = fmt.Errorf("cache TTL must be between %s and %s", MinTTL, MaxTTL)

// ParseTTL parses a TTL given as a Go duration string or plain seconds and
// validates it against the allowed range.
func ParseTTL(s string) (time.Duration, error) {
	var d time.Duration
	if seconds, err := strconv.Atoi(s); err == nil {
		d = time.Duration(seconds) * time.Second
	} else {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid TTL format %q: %w", s, err)
		}
		d = parsed
	}
	if d < MinTTL || d > MaxTTL {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidTTL, d)
	}
	return d, nil
}

// TTLFromEnv reads the TTL override from the environment, falling back to
// def (or DefaultTTL when def is zero) when unset or invalid.
func TTLFromEnv(def time.Duration) time.Duration {
	if def == 0 {
		def = DefaultTTL
	}
	raw := os.Getenv(EnvTTL)
	if raw == "" {
		return def
	}
	ttl, err := ParseTTL(raw)
	if err != nil {
		return def
	}
	return ttl
}

// EnabledFromEnv reads the cache toggle from the environment. The cache is
// enabled by default.
func EnabledFromEnv() bool {
	raw := os.Getenv(EnvEnabled)
	if raw == "" {
		return true
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return enabled
}
