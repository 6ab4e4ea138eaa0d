// Package facade exposes the typed per-collection CRUD surface the domain
// hooks consume. A Collection composes the database client, the TTL cache,
// and the request coordinator behind five operations (FindAll, FindByID,
// Create, UpdateByID, DeleteByID) and keeps an async-state container in sync
// so observers always see cache and list state move together.
package facade

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dmelo/painel/internal/asyncstate"
	"github.com/dmelo/painel/internal/batch"
	"github.com/dmelo/painel/internal/cache"
	"github.com/dmelo/painel/internal/coordinator"
	"github.com/dmelo/painel/internal/database"
)

// DefaultOwnerColumn is the record column stamped with the principal's id on
// every write.
const DefaultOwnerColumn = "user_id"

// QueryOptions narrows a FindAll read.
type QueryOptions struct {
	Filters []database.Filter
	OrderBy []database.OrderBy
	Limit   int
}

// Config wires a Collection. Client is mandatory; a nil Cache or
// Coordinator gets a private default instance.
type Config struct {
	Client      database.Client
	Cache       *cache.Store
	Coordinator *coordinator.Coordinator

	// OwnerColumn overrides DefaultOwnerColumn.
	OwnerColumn string

	// Retry is applied to reads through the async container.
	Retry asyncstate.RetryPolicy

	// BatchSize is the chunk size for CreateMany; zero means batch.DefaultSize.
	BatchSize int

	Logger zerolog.Logger
}

// Collection is the typed CRUD surface over one backend table. T must be a
// JSON-mappable record shape. Safe for concurrent use.
type Collection[T any] struct {
	name        string
	ownerColumn string
	client      database.Client
	cache       *cache.Store
	coord       *coordinator.Coordinator
	state       *asyncstate.State[[]T]
	chunks      *batch.Processor[database.Record]
	logger      zerolog.Logger
}

// NewCollection creates the facade for one collection.
func NewCollection[T any](name string, cfg Config) (*Collection[T], error) {
	if name == "" {
		return nil, database.NewError(database.KindValidation, "collection name cannot be empty")
	}
	if cfg.Client == nil {
		return nil, database.NewError(database.KindValidation, "collection requires a database client")
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.New()
	}
	if cfg.Coordinator == nil {
		cfg.Coordinator = coordinator.New()
	}
	if cfg.OwnerColumn == "" {
		cfg.OwnerColumn = DefaultOwnerColumn
	}
	chunks := batch.NewWithDefaults[database.Record]()
	if cfg.BatchSize > 0 {
		var err error
		chunks, err = batch.New[database.Record](cfg.BatchSize)
		if err != nil {
			return nil, database.WrapError(database.KindValidation, "batch size", err)
		}
	}

	return &Collection[T]{
		name:        name,
		ownerColumn: cfg.OwnerColumn,
		client:      cfg.Client,
		cache:       cfg.Cache,
		coord:       cfg.Coordinator,
		state:       asyncstate.New(asyncstate.WithRetry[[]T](cfg.Retry), asyncstate.WithLogger[[]T](cfg.Logger)),
		chunks:      chunks,
		logger:      cfg.Logger.With().Str("collection", name).Logger(),
	}, nil
}

// Name returns the backend table name.
func (c *Collection[T]) Name() string {
	return c.name
}

// State exposes the async container observers subscribe to.
func (c *Collection[T]) State() *asyncstate.State[[]T] {
	return c.state
}

// FindAll returns the records visible to principal, narrowed by opts.
// Reads are cache-first: a live entry is served without a backend call; on
// miss, concurrent identical reads collapse into one backend select whose
// result refreshes the cache.
func (c *Collection[T]) FindAll(ctx context.Context, principal database.Principal, opts QueryOptions) ([]T, error) {
	key, err := c.readKey(principal, opts)
	if err != nil {
		return nil, err
	}

	if entry := c.cache.Get(key); entry != nil {
		items, err := decodeList[T](entry.Data)
		if err == nil {
			// Fresh entry: no loading transition, observers move straight to
			// the cached value.
			c.state.SetData(items)
			return items, nil
		}
		// Undecodable entry: drop it and fall through to a clean fetch.
		c.cache.Invalidate(key)
	}

	return c.state.Execute(ctx, func(ctx context.Context) ([]T, error) {
		v, err := c.coord.Run(ctx, key, func(ctx context.Context) (any, error) {
			// A joiner may arrive after the first execution already
			// refreshed the cache; serve that instead of re-fetching.
			if entry := c.cache.Get(key); entry != nil {
				if items, err := decodeList[T](entry.Data); err == nil {
					return items, nil
				}
			}
			rows, err := c.client.Select(ctx, c.name, database.SelectOptions{
				Filters: c.scopeFilters(principal, opts.Filters),
				OrderBy: opts.OrderBy,
				Limit:   opts.Limit,
			})
			if err != nil {
				// The failed fetch leaves any existing entry untouched;
				// stale data stays servable.
				return nil, database.Normalize(err)
			}
			raw, items, err := encodeList[T](rows)
			if err != nil {
				return nil, err
			}
			c.cache.Set(key, raw)
			return items, nil
		})
		if err != nil {
			return nil, err
		}
		return v.([]T), nil
	})
}

// FindByID returns the record with the given id, or nil when it does not
// exist. Visibility is scoped to principal like every read.
func (c *Collection[T]) FindByID(ctx context.Context, principal database.Principal, id string) (*T, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, database.NewError(database.KindValidation, "id cannot be empty")
	}

	rows, err := c.client.Select(ctx, c.name, database.SelectOptions{
		Filters: c.scopeFilters(principal, database.NewFilter().Eq(database.IDColumn, id).Build()),
		Limit:   1,
	})
	if err != nil {
		return nil, database.Normalize(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	item, err := decodeOne[T](rows[0])
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Invalidate drops every cached read of this collection for principal. Used
// after writes whose result shape cannot be derived locally (e.g. a nested
// child insert that changes a parent aggregate).
func (c *Collection[T]) Invalidate(principal database.Principal) {
	prefix := c.keyPrefix(principal)
	for _, key := range c.cache.Stats().Keys {
		if strings.HasPrefix(key, prefix) {
			c.cache.Invalidate(key)
		}
	}
}

// ClearCache drops every entry in the shared cache store and resets the
// container. Called on logout or principal change, when nothing cached is
// valid for the next session.
func (c *Collection[T]) ClearCache() {
	c.cache.InvalidateAll()
	c.state.Reset()
}

// readKey builds the structural cache/coordination key for one read.
func (c *Collection[T]) readKey(principal database.Principal, opts QueryOptions) (string, error) {
	if err := requirePrincipal(principal); err != nil {
		return "", err
	}
	return cache.GenerateKey(cache.KeyParams{
		Principal: principal.ID,
		Table:     c.name,
		Operation: database.OperationSelect,
		Filters:   opts.Filters,
		OrderBy:   opts.OrderBy,
		Limit:     opts.Limit,
	})
}

// keyPrefix returns the cache key prefix shared by every read of this
// collection for principal.
func (c *Collection[T]) keyPrefix(principal database.Principal) string {
	return c.name + ":" + principal.ID + ":"
}

// scopeFilters prepends the owner filter so reads only see the principal's
// rows, then applies the caller's filters.
func (c *Collection[T]) scopeFilters(principal database.Principal, filters []database.Filter) []database.Filter {
	scoped := make([]database.Filter, 0, len(filters)+1)
	scoped = append(scoped, database.Filter{Column: c.ownerColumn, Operator: database.OpEq, Value: principal.ID})
	return append(scoped, filters...)
}

func requirePrincipal(principal database.Principal) error {
	if principal.ID == "" {
		return database.WrapError(database.KindAuth, "facade call", database.ErrNoPrincipal)
	}
	return nil
}

// decodeList decodes a cached result set into typed items.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, database.WrapError(database.KindUnknown, "decoding cached result set", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// encodeList encodes backend rows once and decodes them into typed items,
// so the cache holds exactly the bytes the typed result came from.
func encodeList[T any](rows []database.Record) (json.RawMessage, []T, error) {
	if rows == nil {
		rows = []database.Record{}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, nil, database.WrapError(database.KindUnknown, "encoding result set", err)
	}
	items, err := decodeList[T](raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, items, nil
}

// decodeOne maps a single backend row to the typed shape.
func decodeOne[T any](row database.Record) (T, error) {
	var item T
	raw, err := json.Marshal(row)
	if err != nil {
		return item, database.WrapError(database.KindUnknown, "encoding record", err)
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, database.WrapError(database.KindUnknown, "decoding record", err)
	}
	return item, nil
}

// encodeOne maps a typed value to a backend record.
func encodeOne[T any](item T) (database.Record, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, database.WrapError(database.KindValidation, "encoding record", err)
	}
	var rec database.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, database.WrapError(database.KindValidation, "record shape must be a JSON object", err)
	}
	return rec, nil
}
