// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios. For example, ErrNotFound indicates that a looked-up row does
// not exist, while ErrConflict signals that a conditional write lost a
// race against a concurrent writer (e.g. a coupon hitting its usage limit
// between validation and apply).
package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
// Handlers translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// IsDuplicateKey reports whether err is a unique-key violation.  Generated
// order numbers and ticket codes rely on it to retry with a fresh value.
func IsDuplicateKey(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// querier is the subset of *sql.DB and *sql.Tx used by the repositories.
type querier interface {
    ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
    QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// pick returns tx when the call participates in a transaction and db
// otherwise.
func pick(db *sql.DB, tx *sql.Tx) querier {
    if tx != nil {
        return tx
    }
    return db
}

// noRows maps sql.ErrNoRows onto ErrNotFound and passes other errors through.
func noRows(err error) error {
    if errors.Is(err, sql.ErrNoRows) {
        return ErrNotFound
    }
    return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...any) error
}

func nullUint64(n sql.NullInt64) *uint64 {
    if !n.Valid {
        return nil
    }
    v := uint64(n.Int64)
    return &v
}

func nullInt64(n sql.NullInt64) *int64 {
    if !n.Valid {
        return nil
    }
    v := n.Int64
    return &v
}

func nullInt(n sql.NullInt64) *int {
    if !n.Valid {
        return nil
    }
    v := int(n.Int64)
    return &v
}

func nullString(n sql.NullString) *string {
    if !n.Valid {
        return nil
    }
    v := n.String
    return &v
}

func nullTime(n sql.NullTime) *time.Time {
    if !n.Valid {
        return nil
    }
    v := n.Time.UTC()
    return &v
}

// dateOnly formats a calendar date for DATE columns.
func dateOnly(t time.Time) string { return t.Format(time.DateOnly) }
