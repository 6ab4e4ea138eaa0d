// Package database defines the vendor-agnostic data-access contract the rest
// of the application is built on: the Client CRUD interface, the filter and
// query descriptor types with their fluent builders, the normalized error
// taxonomy, and the driver registry that concrete backend adapters plug into.
//
// Nothing in this package talks to a backend. Adapters (see the memstore and
// sqlitedb subpackages) implement Client and register themselves with the
// registry; everything above this boundary (cache, coordinator, facade)
// depends only on the types declared here.
package database
