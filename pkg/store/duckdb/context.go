package duckdb

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func GetTransaction(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// Conn returns the transaction carried by ctx, or db when there is none.
func Conn(ctx context.Context, db *sql.DB) Querier {
	if tx := GetTransaction(ctx); tx != nil {
		return tx
	}
	return db
}

// InTransaction runs fn inside the transaction carried by ctx, or opens a new
// one on db and commits it when fn succeeds.
func InTransaction(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if tx := GetTransaction(ctx); tx != nil {
		return fn(ctx, tx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(WithTransaction(ctx, tx), tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
