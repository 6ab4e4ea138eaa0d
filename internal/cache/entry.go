package cache

import (
	"encoding/json"
	"time"
)

// Entry is a single cached result set. Data holds the encoded records of one
// read; StoredAt is when the set was last fetched from the backend. Patching
// rewrites Data but leaves StoredAt alone, so freshness always reflects the
// last backend read, not the last local edit.
type Entry struct {
	// Key is the structural cache key (see GenerateKey).
	Key string `json:"key"`

	// Data is the cached result set, JSON-encoded.
	Data json.RawMessage `json:"data"`

	// StoredAt is when the data was fetched from the backend.
	StoredAt time.Time `json:"stored_at"`
}

// newEntry creates an entry timestamped now.
func newEntry(key string, data json.RawMessage) *Entry {
	return &Entry{Key: key, Data: data, StoredAt: time.Now()}
}

// Age returns the duration since the entry was fetched.
func (e *Entry) Age() time.Duration {
	return time.Since(e.StoredAt)
}
