package sqlitedb

import (
	"context"
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/dmelo/painel/internal/database"
)

// normalize maps a go-sqlite3 error into the vendor-neutral taxonomy. Every
// error leaving this package goes through here.
func normalize(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return database.WrapError(database.KindConnection, op, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return database.WrapError(database.KindConflict, op, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			// Another writer holds the database; transient, worth retrying.
			return database.WrapError(database.KindRateLimit, op, err)
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrIoErr:
			return database.WrapError(database.KindConnection, op, err)
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
			return database.WrapError(database.KindPermission, op, err)
		default:
			return database.WrapError(database.KindUnknown, op, err)
		}
	}
	return database.WrapError(database.KindUnknown, op, err)
}
