package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"expense-ledger/internal/ledger"
)

// Tx is a unit of work over a single database transaction.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

var _ ledger.Tx = (*Tx)(nil)

// WithinTx runs fn in one transaction. The transaction commits when fn
// returns nil and rolls back on error or panic.
func (db *DB) WithinTx(ctx context.Context, fn func(ledger.Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := sqlTx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Failed to roll back transaction", "error", err)
		}
	}()

	if err := fn(&Tx{tx: sqlTx, dialect: db.dialect}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}
	committed = true
	return nil
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, rebind(t.dialect, query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, rebind(t.dialect, query), args...)
}

