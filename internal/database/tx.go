package database

import (
	"context"
	"database/sql"
	"fmt"
)

// TxRunner runs a function inside a single database transaction.  Every
// multi-row mutation of the booking core goes through it so that a failure
// in any step leaves no partial state behind.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// SQLTxRunner is the *sql.DB backed TxRunner.
type SQLTxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) *SQLTxRunner { return &SQLTxRunner{db: db} }

// WithinTx begins a transaction, calls fn and commits when fn returns nil.
// Any error from fn (or a panic) rolls the transaction back.
func (r *SQLTxRunner) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
