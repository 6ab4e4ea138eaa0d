// Package sqlitedb is the SQLite-backed database adapter. Collections are
// stored as JSON documents in a single table; the Client contract's filter
// and order descriptors compile to parameterized json_extract SQL.
package sqlitedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	// Registers the sqlite3 driver with database/sql.
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/dmelo/painel/internal/database"
)

// DriverName is the registry name of this adapter.
const DriverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS painel_records (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
`

func init() {
	database.MustRegister(
		database.DriverInfo{Name: DriverName, ContractVersion: database.ContractVersion},
		func(dsn string) (database.Client, error) { return Open(dsn) },
	)
}

// Client is the SQLite implementation of database.Client.
type Client struct {
	db *sql.DB

	mu        sync.RWMutex
	principal *database.Principal
	closed    bool
}

// Open opens (creating if necessary) the SQLite database at dsn. The usual
// go-sqlite3 DSN forms work, including ":memory:".
func Open(dsn string) (*Client, error) {
	if dsn == "" {
		return nil, database.NewError(database.KindValidation, "sqlite DSN cannot be empty")
	}
	// A plain file path may sit in a directory that does not exist yet,
	// such as ~/.painel on first run.
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, normalize("creating database directory", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, normalize("opening database", err)
	}
	// A single connection keeps :memory: databases coherent and sidesteps
	// SQLITE_BUSY between writer connections.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, normalize("creating schema", err)
	}
	return &Client{db: db}, nil
}

// SetPrincipal installs the authenticated identity returned by CurrentUser.
func (c *Client) SetPrincipal(p *database.Principal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.principal = p
}

// Select implements database.Client.
func (c *Client) Select(ctx context.Context, table string, opts database.SelectOptions) ([]database.Record, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	where, params, err := compileWhere(opts.Filters)
	if err != nil {
		return nil, err
	}
	query := "SELECT data FROM painel_records WHERE collection = ?" + where + compileOrder(opts.OrderBy)
	params = append([]any{table}, params...)
	if opts.Limit > 0 {
		query += " LIMIT ?"
		params = append(params, opts.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, normalize("selecting from "+table, err)
	}
	defer rows.Close()

	var out []database.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, normalize("scanning row", err)
		}
		var rec database.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, database.WrapError(database.KindUnknown, "decoding stored record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, normalize("iterating rows", err)
	}

	if len(opts.Columns) > 0 {
		for i, rec := range out {
			slim := make(database.Record, len(opts.Columns))
			for _, col := range opts.Columns {
				if v, ok := rec[col]; ok {
					slim[col] = v
				}
			}
			out[i] = slim
		}
	}
	if opts.Single {
		if len(out) == 0 {
			return nil, database.Errorf(database.KindNotFound, "no row in %s matches filters", table)
		}
		if len(out) > 1 {
			return nil, database.Errorf(database.KindConflict, "%d rows in %s match a single-row query", len(out), table)
		}
	}
	return out, nil
}

// Insert implements database.Client. The whole batch commits in one
// transaction; a conflict rolls everything back.
func (c *Client) Insert(ctx context.Context, table string, records []database.Record, opts database.InsertOptions) ([]database.Record, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, database.NewError(database.KindValidation, "insert requires at least one record")
	}

	stmt := "INSERT INTO painel_records (collection, id, data) VALUES (?, ?, ?)"
	if opts.Upsert {
		stmt += " ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data"
	}

	var stored []database.Record
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		for _, rec := range records {
			row := database.CloneRecord(rec)
			id := database.RecordID(row)
			if id == "" {
				id = ulid.Make().String()
				row[database.IDColumn] = id
			}
			raw, err := json.Marshal(row)
			if err != nil {
				return database.WrapError(database.KindValidation, "encoding record", err)
			}
			if _, err := tx.ExecContext(ctx, stmt, table, id, raw); err != nil {
				return normalize("inserting into "+table, err)
			}
			stored = append(stored, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Update implements database.Client. Matching rows are rewritten inside one
// transaction: read, merge changes in memory, write back.
func (c *Client) Update(ctx context.Context, table string, changes database.Record, filters []database.Filter, opts database.UpdateOptions) ([]database.Record, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, database.NewError(database.KindValidation, "update requires at least one changed column")
	}

	where, params, err := compileWhere(filters)
	if err != nil {
		return nil, err
	}

	var updated []database.Record
	err = c.withTx(ctx, func(tx *sql.Tx) error {
		query := "SELECT id, data FROM painel_records WHERE collection = ?" + where + " ORDER BY id ASC"
		rows, err := tx.QueryContext(ctx, query, append([]any{table}, params...)...)
		if err != nil {
			return normalize("selecting for update", err)
		}

		type pending struct {
			id  string
			raw []byte
		}
		var writes []pending
		for rows.Next() {
			var id string
			var raw []byte
			if err := rows.Scan(&id, &raw); err != nil {
				rows.Close()
				return normalize("scanning row", err)
			}
			var rec database.Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				rows.Close()
				return database.WrapError(database.KindUnknown, "decoding stored record", err)
			}
			for k, v := range changes {
				if k == database.IDColumn {
					continue // primary key is immutable
				}
				rec[k] = v
			}
			next, err := json.Marshal(rec)
			if err != nil {
				rows.Close()
				return database.WrapError(database.KindValidation, "encoding record", err)
			}
			writes = append(writes, pending{id: id, raw: next})
			updated = append(updated, rec)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return normalize("iterating rows", err)
		}
		rows.Close()

		for _, w := range writes {
			if _, err := tx.ExecContext(ctx,
				"UPDATE painel_records SET data = ? WHERE collection = ? AND id = ?",
				w.raw, table, w.id); err != nil {
				return normalize("updating "+table, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete implements database.Client.
func (c *Client) Delete(ctx context.Context, table string, filters []database.Filter, opts database.DeleteOptions) ([]database.Record, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	where, params, err := compileWhere(filters)
	if err != nil {
		return nil, err
	}

	var removed []database.Record
	err = c.withTx(ctx, func(tx *sql.Tx) error {
		query := "SELECT data FROM painel_records WHERE collection = ?" + where + " ORDER BY id ASC"
		args := append([]any{table}, params...)
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return normalize("selecting for delete", err)
		}
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				rows.Close()
				return normalize("scanning row", err)
			}
			var rec database.Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				rows.Close()
				return database.WrapError(database.KindUnknown, "decoding stored record", err)
			}
			removed = append(removed, rec)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return normalize("iterating rows", err)
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM painel_records WHERE collection = ?"+where, args...); err != nil {
			return normalize("deleting from "+table, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// CurrentUser implements database.Client.
func (c *Client) CurrentUser(ctx context.Context) (*database.Principal, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.principal == nil {
		return nil, database.WrapError(database.KindAuth, "current user", database.ErrNoPrincipal)
	}
	p := *c.principal
	return &p, nil
}

// Connected implements database.Client.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// Close implements database.Client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.db.Close(); err != nil {
		return normalize("closing database", err)
	}
	return nil
}

func (c *Client) ready() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return database.WrapError(database.KindConnection, "sqlite", database.ErrNotConnected)
	}
	return nil
}

func (c *Client) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return normalize("beginning transaction", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return normalize("committing transaction", err)
	}
	return nil
}

var _ database.Client = (*Client)(nil)
