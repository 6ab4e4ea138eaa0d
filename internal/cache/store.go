package cache

import (
	"encoding/json"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// Stats is a snapshot of the store's contents.
type Stats struct {
	// Size is the number of live (non-expired) entries.
	Size int

	// Keys lists the live entry keys.
	Keys []string

	// LastUpdate is the time of the most recent Set or Patch, zero when the
	// store was never written.
	LastUpdate time.Time
}

// Store is the in-memory TTL store of last-known-good result sets.
// Safe for concurrent use.
type Store struct {
	ttl     time.Duration
	enabled bool
	logger  zerolog.Logger

	// mu serializes read-modify-write sequences (Patch) and lastUpdate.
	mu         sync.Mutex
	entries    *gocache.Cache
	lastUpdate time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger attaches a logger for hit/miss diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Disabled turns every operation into a no-op miss. Used when the cache is
// switched off by configuration.
func Disabled() Option {
	return func(s *Store) { s.enabled = false }
}

// New creates a store with DefaultTTL unless overridden.
func New(opts ...Option) *Store {
	s := &Store{
		ttl:     DefaultTTL,
		enabled: true,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	// No janitor goroutine: expiry is checked on access, and entries are few
	// (one per distinct query signature per session).
	s.entries = gocache.New(s.ttl, 0)
	return s
}

// TTL returns the configured entry lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the live entry for key, or nil on miss or expiry.
func (s *Store) Get(key string) *Entry {
	if !s.enabled {
		return nil
	}
	v, ok := s.entries.Get(key)
	if !ok {
		s.logger.Debug().Str("key", key).Msg("cache miss")
		return nil
	}
	entry := v.(*Entry)
	s.logger.Debug().Str("key", key).Dur("age", entry.Age()).Msg("cache hit")
	return entry
}

// Set stores data under key with a fresh timestamp and a full TTL.
func (s *Store) Set(key string, data json.RawMessage) {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Set(key, newEntry(key, data), s.ttl)
	s.lastUpdate = time.Now()
}

// Patch rewrites the data of a live entry in place via fn, keeping the
// entry's StoredAt and expiry deadline unchanged. Returns false when the key
// has no live entry or fn fails; the entry is untouched in either case.
func (s *Store) Patch(key string, fn func(json.RawMessage) (json.RawMessage, error)) bool {
	if !s.enabled {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, deadline, ok := s.entries.GetWithExpiration(key)
	if !ok {
		return false
	}
	entry := v.(*Entry)
	next, err := fn(entry.Data)
	if err != nil {
		s.logger.Debug().Str("key", key).Err(err).Msg("cache patch rejected")
		return false
	}
	// Replace rather than mutate, keeping StoredAt and the original expiry
	// deadline, so readers holding the old entry are unaffected.
	s.entries.Set(key, &Entry{Key: key, Data: next, StoredAt: entry.StoredAt}, time.Until(deadline))
	s.lastUpdate = time.Now()
	s.logger.Debug().Str("key", key).Msg("cache patched in place")
	return true
}

// IsValid reports whether a live (unexpired) entry exists for key.
func (s *Store) IsValid(key string) bool {
	if !s.enabled {
		return false
	}
	_, ok := s.entries.Get(key)
	return ok
}

// Invalidate drops the entry for key, if any.
func (s *Store) Invalidate(key string) {
	if !s.enabled {
		return
	}
	s.entries.Delete(key)
}

// InvalidateAll drops every entry. Called on logout and principal change.
func (s *Store) InvalidateAll() {
	if !s.enabled {
		return
	}
	s.entries.Flush()
}

// Stats returns a snapshot of the live entries.
func (s *Store) Stats() Stats {
	if !s.enabled {
		return Stats{}
	}
	s.mu.Lock()
	last := s.lastUpdate
	s.mu.Unlock()

	items := s.entries.Items()
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	return Stats{Size: len(items), Keys: keys, LastUpdate: last}
}
