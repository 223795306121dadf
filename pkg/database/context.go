package database

import (
	"context"
)

type contextKey string

const (
	// ScopeKey is the context key for storing the request's database scope.
	ScopeKey contextKey = "dbScope"
)

// GetScope retrieves the database scope from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok && scope != nil
}

// SetScope stores the database scope in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// ScopeProvider creates scoped contexts for work that runs outside an HTTP
// request, such as discovery tasks and the periodic sweep.
type ScopeProvider interface {
	WithScope(ctx context.Context) (context.Context, func(), error)
}

type poolScopeProvider struct {
	db *DB
}

// NewScopeProvider creates a ScopeProvider backed by the pool.
func NewScopeProvider(db *DB) ScopeProvider {
	return &poolScopeProvider{db: db}
}

var _ ScopeProvider = (*poolScopeProvider)(nil)

// WithScope returns a context holding a fresh pooled connection.
// The cleanup function must be called when the scope is no longer needed.
func (p *poolScopeProvider) WithScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := p.db.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), scope.Close, nil
}
