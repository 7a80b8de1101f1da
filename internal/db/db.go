// Package db is the hand-written Postgres query layer. It keeps the shape of
// a generated querier — a DBTX abstraction, a Queries struct, and a Querier
// interface — so the store can run the same queries inside or outside a
// transaction and tests can stub the whole surface.
package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// New returns a Queries bound to the given connection or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries executes all SQL in this package against its DBTX.
type Queries struct {
	db DBTX
}

// WithTx returns a Queries scoped to the transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}
