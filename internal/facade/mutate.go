package facade

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dmelo/painel/internal/database"
)

// Create inserts one record owned by principal and returns the stored shape.
// The principal's unconstrained cached read is patched in place before Create
// returns, so an immediately following FindAll serves the new record without
// a backend round trip. Filtered, limited, or ordered reads are invalidated.
func (c *Collection[T]) Create(ctx context.Context, principal database.Principal, item T) (T, error) {
	var zero T
	if err := requirePrincipal(principal); err != nil {
		return zero, err
	}
	rec, err := c.toOwnedRecord(principal, item)
	if err != nil {
		return zero, err
	}

	stored, err := c.client.Insert(ctx, c.name, []database.Record{rec}, database.InsertOptions{Returning: true})
	if err != nil {
		return zero, database.Normalize(err)
	}
	if len(stored) == 0 {
		return zero, database.NewError(database.KindUnknown, "insert returned no record")
	}

	c.patchUnconstrained(principal, func(rows []database.Record) []database.Record {
		return append([]database.Record{stored[0]}, rows...)
	})

	created, err := decodeOne[T](stored[0])
	if err != nil {
		return zero, err
	}
	c.state.Update(func(items []T) []T {
		return append([]T{created}, items...)
	})
	c.logger.Debug().Str("id", database.RecordID(stored[0])).Msg("record created")
	return created, nil
}

// CreateMany inserts items in chunks. Each chunk is atomic on the backend;
// a failing chunk stops the run and already committed chunks stay. Cached
// reads are invalidated rather than patched, a partial run leaves no way to
// derive the cached shape locally.
func (c *Collection[T]) CreateMany(ctx context.Context, principal database.Principal, items []T) ([]T, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []T{}, nil
	}
	records := make([]database.Record, 0, len(items))
	for _, item := range items {
		rec, err := c.toOwnedRecord(principal, item)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	created := make([]T, 0, len(items))
	err := c.chunks.Process(ctx, records, func(ctx context.Context, chunk []database.Record, _ int) error {
		stored, err := c.client.Insert(ctx, c.name, chunk, database.InsertOptions{Returning: true})
		if err != nil {
			return database.Normalize(err)
		}
		for _, rec := range stored {
			item, err := decodeOne[T](rec)
			if err != nil {
				return err
			}
			created = append(created, item)
		}
		return nil
	})

	if len(created) > 0 {
		c.Invalidate(principal)
	}
	if err != nil {
		return created, err
	}
	c.state.Update(func(items []T) []T {
		return append(append([]T{}, created...), items...)
	})
	return created, nil
}

// UpdateByID applies the changed columns to the record with the given id and
// returns the updated shape. The unconstrained cached read is patched in
// place; constrained reads are invalidated, the change may move the record
// out of a cached filter or ordering.
func (c *Collection[T]) UpdateByID(ctx context.Context, principal database.Principal, id string, changes database.Record) (T, error) {
	var zero T
	if err := requirePrincipal(principal); err != nil {
		return zero, err
	}
	if id == "" {
		return zero, database.NewError(database.KindValidation, "id cannot be empty")
	}
	if len(changes) == 0 {
		return zero, database.NewError(database.KindValidation, "update requires at least one changed column")
	}

	updated, err := c.client.Update(ctx, c.name, changes,
		c.scopeFilters(principal, database.NewFilter().Eq(database.IDColumn, id).Build()),
		database.UpdateOptions{Returning: true})
	if err != nil {
		return zero, database.Normalize(err)
	}
	if len(updated) == 0 {
		return zero, database.NewError(database.KindNotFound, "record not found: "+id)
	}

	c.patchUnconstrained(principal, func(rows []database.Record) []database.Record {
		for i, row := range rows {
			if database.RecordID(row) == id {
				rows[i] = updated[0]
			}
		}
		return rows
	})

	item, err := decodeOne[T](updated[0])
	if err != nil {
		return zero, err
	}
	c.state.Update(func(items []T) []T {
		for i := range items {
			if itemID(items[i]) == id {
				items[i] = item
			}
		}
		return items
	})
	return item, nil
}

// DeleteByID removes the record with the given id. It reports whether a
// record was actually removed. Cached reads are patched in place.
func (c *Collection[T]) DeleteByID(ctx context.Context, principal database.Principal, id string) (bool, error) {
	if err := requirePrincipal(principal); err != nil {
		return false, err
	}
	if id == "" {
		return false, database.NewError(database.KindValidation, "id cannot be empty")
	}

	removed, err := c.client.Delete(ctx, c.name,
		c.scopeFilters(principal, database.NewFilter().Eq(database.IDColumn, id).Build()),
		database.DeleteOptions{Returning: true})
	if err != nil {
		return false, database.Normalize(err)
	}
	if len(removed) == 0 {
		return false, nil
	}

	c.patchLists(principal, func(rows []database.Record) []database.Record {
		kept := rows[:0:0]
		for _, row := range rows {
			if database.RecordID(row) != id {
				kept = append(kept, row)
			}
		}
		return kept
	})
	c.state.Update(func(items []T) []T {
		kept := items[:0:0]
		for _, item := range items {
			if itemID(item) != id {
				kept = append(kept, item)
			}
		}
		return kept
	})
	return true, nil
}

// toOwnedRecord encodes item and stamps the owner column from principal.
func (c *Collection[T]) toOwnedRecord(principal database.Principal, item T) (database.Record, error) {
	rec, err := encodeOne(item)
	if err != nil {
		return nil, err
	}
	rec[c.ownerColumn] = principal.ID
	return rec, nil
}

// patchLists rewrites every cached result set of this collection for
// principal through fn. Entry timestamps and expiry deadlines are kept, a
// patch is a write-through of already validated data, not a fresh read.
// Safe only for rewrites that cannot violate a read's filters, limit, or
// order, such as removing a record.
func (c *Collection[T]) patchLists(principal database.Principal, fn func([]database.Record) []database.Record) {
	prefix := c.keyPrefix(principal)
	for _, key := range c.cache.Stats().Keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		c.patchList(key, fn)
	}
}

// patchUnconstrained rewrites the principal's unconstrained read through fn
// and invalidates every constrained one. A new or changed record may not
// satisfy a cached read's filters, limit, or order, so those result sets
// cannot be derived locally; they refetch on next access.
func (c *Collection[T]) patchUnconstrained(principal database.Principal, fn func([]database.Record) []database.Record) {
	unconstrained, err := c.readKey(principal, QueryOptions{})
	if err != nil {
		return
	}
	prefix := c.keyPrefix(principal)
	for _, key := range c.cache.Stats().Keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if key != unconstrained {
			c.cache.Invalidate(key)
			continue
		}
		c.patchList(key, fn)
	}
}

// patchList applies fn to one cached result set.
func (c *Collection[T]) patchList(key string, fn func([]database.Record) []database.Record) {
	c.cache.Patch(key, func(raw json.RawMessage) (json.RawMessage, error) {
		var rows []database.Record
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, err
		}
		rows = fn(rows)
		if rows == nil {
			rows = []database.Record{}
		}
		return json.Marshal(rows)
	})
}

// itemID extracts the id column from a typed value via its JSON shape.
func itemID[T any](item T) string {
	rec, err := encodeOne(item)
	if err != nil {
		return ""
	}
	return database.RecordID(rec)
}
