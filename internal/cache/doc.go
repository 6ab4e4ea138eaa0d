// Package cache provides the in-memory TTL store of last-known-good result
// sets that sits between the facade and the database client. Key features:
//   - Entries scoped by principal and full query signature (SHA-256 keys),
//     so two users or two differently-filtered reads never collide
//   - Configurable TTL (default 5 minutes) via config file, environment
//     variable, or CLI flag
//   - In-place patching after writes: a confirmed create/update/delete edits
//     the cached result set without refreshing its timestamp, avoiding a
//     refetch round trip
//
// The store is an injectable instance, not an ambient global; each session
// (and each test) constructs its own.
package cache
