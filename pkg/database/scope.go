package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Scope holds one pooled connection for the lifetime of a request or job.
// Repositories read it from the context so a whole model run shares a connection.
type Scope struct {
	Conn *pgxpool.Conn
}

// Close releases the connection back to the pool. Safe to call on a nil Conn.
func (s *Scope) Close() {
	if s.Conn == nil {
		return
	}
	s.Conn.Release()
	s.Conn = nil
}

// Acquire takes a connection from the pool.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) Acquire(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Scope{Conn: conn}, nil
}

// WithScope acquires a connection and returns a context carrying it, plus the
// cleanup function that releases it.
func (db *DB) WithScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := db.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), scope.Close, nil
}
