package database

import (
	"context"
	"fmt"
)

// Transactor runs a function inside a single database transaction.
type Transactor interface {
	// WithinTx begins a transaction on the connection in ctx and calls fn with
	// a context whose scope is the transaction. The transaction commits if fn
	// returns nil and rolls back otherwise. Nested calls reuse the outer tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txScopeKey struct{}

type pgxTransactor struct{}

// NewTransactor returns a Transactor over the scope stored in context.
func NewTransactor() Transactor {
	return &pgxTransactor{}
}

var _ Transactor = (*pgxTransactor)(nil)

func (t *pgxTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txScopeKey{}) != nil {
		return fn(ctx)
	}

	scope, ok := GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	txCtx := context.WithValue(SetScope(ctx, NewScope(tx, nil)), txScopeKey{}, true)
	if err := fn(txCtx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
