package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx, so repositories run inside or outside a transaction.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// RunInTx runs fn in a transaction. A nil return commits, anything else rolls back.
func RunInTx(ctx context.Context, db *DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := db.X.BeginTxx(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}
