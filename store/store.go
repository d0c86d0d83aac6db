// Package store defines the statement store used for staging and permanent
// artifact storage, and provides an in-memory implementation.
//
// A Repository hands out Connections. Writes happen inside a transaction
// started with Begin and become visible to other connections only on Commit.
// Reads see the connection's own uncommitted writes.
package store

import (
	"context"

	"github.com/c360studio/semvault/statement"
)

// Graph is the read/write surface shared by connections and in-process
// helpers that rewrite statements in place.
type Graph interface {
	// Add inserts statements. Statements already present are ignored.
	Add(ctx context.Context, stmts ...statement.Statement) error

	// Remove deletes every statement matching p and returns how many were removed.
	Remove(ctx context.Context, p statement.Pattern) (int, error)

	// Match returns every statement matching p.
	Match(ctx context.Context, p statement.Pattern) ([]statement.Statement, error)
}

// Connection is a session against a repository.
type Connection interface {
	Graph

	// Begin starts a transaction.
	Begin(ctx context.Context) error

	// IsActive reports whether a transaction is open.
	IsActive() bool

	// Commit makes the transaction's writes visible.
	Commit(ctx context.Context) error

	// Rollback discards the transaction's writes. It is a no-op without
	// an active transaction.
	Rollback(ctx context.Context) error

	// Contexts lists the named graphs holding at least one statement.
	Contexts(ctx context.Context) ([]string, error)

	// Close releases the connection, rolling back any open transaction.
	Close() error
}

// Repository creates connections.
type Repository interface {
	Connect(ctx context.Context) (Connection, error)
}

// Count returns the number of statements in a context.
func Count(ctx context.Context, g Graph, context string) (int, error) {
	stmts, err := g.Match(ctx, statement.InContext(context))
	if err != nil {
		return 0, err
	}
	return len(stmts), nil
}

// CopyContext copies every statement of src into dst, re-homed under dstContext.
func CopyContext(ctx context.Context, src Graph, srcContext string, dst Graph, dstContext string) (int, error) {
	stmts, err := src.Match(ctx, statement.InContext(srcContext))
	if err != nil {
		return 0, err
	}
	if len(stmts) == 0 {
		return 0, nil
	}
	if err := dst.Add(ctx, statement.WithContext(stmts, dstContext)...); err != nil {
		return 0, err
	}
	return len(stmts), nil
}
