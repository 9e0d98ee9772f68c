package db

import (
	"context"
	"database/sql"
)

// WithTx runs fn inside a transaction, it is committed only if fn returns nil.
func WithTx(ctx context.Context, database *sql.DB, fn func(qry *Queries) error) error {
	sqltx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	err = fn(New(sqltx))
	if err != nil {
		sqltx.Rollback()
		return err
	}
	return sqltx.Commit()
}
