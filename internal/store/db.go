package store

import (
	"context"
	"database/sql"
)

// DBTX is the query surface a store needs from database/sql. Both *sql.DB
// and *sql.Tx satisfy it, so the same store type can run standalone or
// join a caller-owned transaction via WithTx. All task and user queries
// go through these three methods.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
