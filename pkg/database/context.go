package database

import "context"

type contextKey string

// ScopeKey is the context key for storing the request's database connection.
const ScopeKey contextKey = "dbScope"

// GetScope retrieves the database scope from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok && scope != nil && scope.Conn != nil
}

// SetScope stores the database scope in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}
