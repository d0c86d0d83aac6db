package store

import "errors"

// Common store errors.
var (
	// ErrNoTransaction is returned when a write is attempted outside a transaction.
	ErrNoTransaction = errors.New("no active transaction")

	// ErrTransactionActive is returned by Begin when a transaction is already open.
	ErrTransactionActive = errors.New("transaction already active")

	// ErrClosed is returned when a closed connection is used.
	ErrClosed = errors.New("connection closed")

	// ErrConflict is returned on commit when another writer changed the same data.
	ErrConflict = errors.New("concurrent modification")
)
