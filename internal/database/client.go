package database

import "context"

// SelectOptions narrows a read. Zero value selects all columns and rows.
type SelectOptions struct {
	// Columns restricts the returned columns; empty means all.
	Columns []string

	// Filters AND-combine to narrow the result set.
	Filters []Filter

	// OrderBy sorts the result set, applied in order.
	OrderBy []OrderBy

	// Limit caps the number of rows; zero means no limit.
	Limit int

	// Single expects exactly one row; adapters return a not_found error
	// when no row matches.
	Single bool
}

// InsertOptions configures a write of new records.
type InsertOptions struct {
	// Returning asks the adapter to return the inserted rows.
	Returning bool

	// Upsert replaces an existing row on primary-key conflict instead of
	// failing with a conflict error.
	Upsert bool
}

// UpdateOptions configures an update of existing records.
type UpdateOptions struct {
	Returning bool
}

// DeleteOptions configures a delete.
type DeleteOptions struct {
	Returning bool
}

// Client is the uniform CRUD surface over a table-like backend. Exactly one
// concrete adapter implements it at runtime; everything above depends only
// on this contract.
//
// Contract requirements for adapters:
//   - multiple filters AND-combine
//   - a failed operation leaves no partial effect
//   - every backend-specific error is normalized to a *Error before return
type Client interface {
	// Select reads rows from table, narrowed by opts.
	Select(ctx context.Context, table string, opts SelectOptions) ([]Record, error)

	// Insert writes new rows. With opts.Returning the stored rows (including
	// any adapter-stamped ids) come back in input order.
	Insert(ctx context.Context, table string, records []Record, opts InsertOptions) ([]Record, error)

	// Update applies changes to every row matching filters.
	Update(ctx context.Context, table string, changes Record, filters []Filter, opts UpdateOptions) ([]Record, error)

	// Delete removes every row matching filters.
	Delete(ctx context.Context, table string, filters []Filter, opts DeleteOptions) ([]Record, error)

	// CurrentUser returns the authenticated principal, or ErrNoPrincipal
	// (auth kind) when the session is anonymous.
	CurrentUser(ctx context.Context) (*Principal, error)

	// Connected reports whether the client is usable.
	Connected() bool

	// Close releases the client. Further calls fail with ErrNotConnected.
	Close() error
}

// EventType classifies a change-feed notification.
type EventType string

// Change-feed event types.
const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one change-feed notification.
type Event struct {
	Table  string
	Type   EventType
	Record Record
}

// Watcher is implemented by adapters that can push change notifications.
// Subscribe registers fn for changes on table matching filters and returns
// a cancel function. The capability is optional; callers type-assert.
type Watcher interface {
	Subscribe(table string, filters []Filter, fn func(Event)) (cancel func(), err error)
}
