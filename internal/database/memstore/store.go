// Package memstore is the in-memory database adapter. It implements the full
// Client contract plus the optional change feed, and is both the default
// backend for a fresh installation and the workhorse of the test suite.
package memstore

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/dmelo/painel/internal/database"
)

// DriverName is the registry name of this adapter.
const DriverName = "memory"

func init() {
	database.MustRegister(
		database.DriverInfo{Name: DriverName, ContractVersion: database.ContractVersion},
		func(string) (database.Client, error) { return New(), nil },
	)
}

// Store is an in-memory, table-per-key record store. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	tables    map[string][]database.Record
	principal *database.Principal
	closed    bool

	subsMu sync.Mutex
	subs   map[int]*subscription
	nextID int
}

// New creates an empty store with no authenticated principal.
func New() *Store {
	return &Store{
		tables: make(map[string][]database.Record),
		subs:   make(map[int]*subscription),
	}
}

// SetPrincipal installs the authenticated identity returned by CurrentUser.
// Passing nil reverts the store to an anonymous session.
func (s *Store) SetPrincipal(p *database.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = p
}

// Select implements database.Client.
func (s *Store) Select(ctx context.Context, table string, opts database.SelectOptions) ([]database.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	rows := s.tables[table]
	var matched []database.Record
	for _, row := range rows {
		ok, err := matchAll(row, opts.Filters)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if ok {
			matched = append(matched, database.CloneRecord(row))
		}
	}
	s.mu.RUnlock()

	sortRecords(matched, opts.OrderBy)
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	if len(opts.Columns) > 0 {
		matched = project(matched, opts.Columns)
	}
	if opts.Single {
		if len(matched) == 0 {
			return nil, database.Errorf(database.KindNotFound, "no row in %s matches filters", table)
		}
		if len(matched) > 1 {
			return nil, database.Errorf(database.KindConflict, "%d rows in %s match a single-row query", len(matched), table)
		}
	}
	return matched, nil
}

// Insert implements database.Client. Records without an id get a fresh ULID.
// On id conflict the whole insert fails with no partial effect, unless
// opts.Upsert replaces the existing row.
func (s *Store) Insert(ctx context.Context, table string, records []database.Record, opts database.InsertOptions) ([]database.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, database.NewError(database.KindValidation, "insert requires at least one record")
	}

	s.mu.Lock()
	// Work on a copy so a conflict partway through leaves no partial effect.
	next := append([]database.Record(nil), s.tables[table]...)
	index := make(map[string]int, len(next))
	for i, row := range next {
		index[database.RecordID(row)] = i
	}

	stored := make([]database.Record, 0, len(records))
	for _, rec := range records {
		row := database.CloneRecord(rec)
		id := database.RecordID(row)
		if id == "" {
			id = ulid.Make().String()
			row[database.IDColumn] = id
		}
		if at, exists := index[id]; exists {
			if !opts.Upsert {
				s.mu.Unlock()
				return nil, database.Errorf(database.KindConflict, "row %q already exists in %s", id, table)
			}
			next[at] = row
		} else {
			index[id] = len(next)
			next = append(next, row)
		}
		stored = append(stored, row)
	}
	s.tables[table] = next
	s.mu.Unlock()

	for _, row := range stored {
		s.notify(database.Event{Table: table, Type: database.EventInsert, Record: database.CloneRecord(row)})
	}
	return database.CloneRecords(stored), nil
}

// Update implements database.Client.
func (s *Store) Update(ctx context.Context, table string, changes database.Record, filters []database.Filter, opts database.UpdateOptions) ([]database.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, database.NewError(database.KindValidation, "update requires at least one changed column")
	}

	s.mu.Lock()
	rows := s.tables[table]
	next := append([]database.Record(nil), rows...)
	var updated []database.Record
	for i, row := range rows {
		ok, err := matchAll(row, filters)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if !ok {
			continue
		}
		changed := database.CloneRecord(row)
		for k, v := range changes {
			if k == database.IDColumn {
				continue // primary key is immutable
			}
			changed[k] = v
		}
		next[i] = changed
		updated = append(updated, database.CloneRecord(changed))
	}
	s.tables[table] = next
	s.mu.Unlock()

	for _, row := range updated {
		s.notify(database.Event{Table: table, Type: database.EventUpdate, Record: database.CloneRecord(row)})
	}
	return updated, nil
}

// Delete implements database.Client.
func (s *Store) Delete(ctx context.Context, table string, filters []database.Filter, opts database.DeleteOptions) ([]database.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	rows := s.tables[table]
	kept := rows[:0:0]
	var removed []database.Record
	for _, row := range rows {
		ok, err := matchAll(row, filters)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if ok {
			removed = append(removed, row)
		} else {
			kept = append(kept, row)
		}
	}
	s.tables[table] = kept
	s.mu.Unlock()

	for _, row := range removed {
		s.notify(database.Event{Table: table, Type: database.EventDelete, Record: database.CloneRecord(row)})
	}
	return database.CloneRecords(removed), nil
}

// CurrentUser implements database.Client.
func (s *Store) CurrentUser(ctx context.Context) (*database.Principal, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return nil, database.WrapError(database.KindAuth, "current user", database.ErrNoPrincipal)
	}
	p := *s.principal
	return &p, nil
}

// Connected implements database.Client.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Close implements database.Client.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.tables = make(map[string][]database.Record)
	s.mu.Unlock()

	s.subsMu.Lock()
	s.subs = make(map[int]*subscription)
	s.subsMu.Unlock()
	return nil
}

// ready rejects calls on a closed store or a done context.
func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return database.WrapError(database.KindConnection, "context done", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return database.WrapError(database.KindConnection, "memstore", database.ErrNotConnected)
	}
	return nil
}

func project(rows []database.Record, columns []string) []database.Record {
	out := make([]database.Record, len(rows))
	for i, row := range rows {
		slim := make(database.Record, len(columns))
		for _, col := range columns {
			if v, ok := row[col]; ok {
				slim[col] = v
			}
		}
		out[i] = slim
	}
	return out
}

var (
	_ database.Client  = (*Store)(nil)
	_ database.Watcher = (*Store)(nil)
)
