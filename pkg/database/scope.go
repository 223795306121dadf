package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx shared by pooled connections and transactions.
// Repositories only see this, so the same code runs inside or outside a tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Scope carries the connection (or transaction) a request is using.
type Scope struct {
	Conn    Querier
	release func()
}

// NewScope wraps conn. release may be nil.
func NewScope(conn Querier, release func()) *Scope {
	return &Scope{Conn: conn, release: release}
}

// Close releases the underlying connection back to the pool.
// This MUST be called for scopes obtained from Acquire.
func (s *Scope) Close() {
	if s == nil || s.release == nil {
		return
	}
	s.release()
	s.release = nil
}

// Acquire takes a connection from the pool.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) Acquire(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return NewScope(conn, conn.Release), nil
}
