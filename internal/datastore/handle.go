package datastore

import (
	"context"
	"database/sql"
	"sync/atomic"
)

// Handle is a connection checked out of a restaurant's pool with that
// restaurant's database selected. It must be released exactly once.
type Handle struct {
	conn      *sql.Conn
	datastore string
	router    *Router
	released  atomic.Bool
}

// Datastore returns the name of the database selected on the handle.
func (h *Handle) Datastore() string {
	return h.datastore
}

// ExecContext executes a statement on the handle's connection.
func (h *Handle) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return h.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the handle's connection.
func (h *Handle) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return h.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the handle's connection.
func (h *Handle) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return h.conn.QueryRowContext(ctx, query, args...)
}

// Release returns the connection to its pool. Calls after the first are no-ops.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		h.router.recordDoubleRelease(h.datastore)
		return
	}
	h.router.release(h)
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	return h.released.Load()
}
