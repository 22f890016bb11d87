// Package metadata persists small key/value items the client needs across
// restarts: username, offline-login salt and verifier, session token.
package metadata

import "context"

// Repository is a tiny key/value store backed by the local database.
type Repository interface {
	// Get returns the stored value; sql.ErrNoRows is passed through so
	// callers can distinguish "absent" from failure.
	Get(ctx context.Context, name string) ([]byte, error)

	// Set inserts or replaces the value.
	Set(ctx context.Context, name string, value []byte) error

	// DeleteAll wipes every item. Called on device reset.
	DeleteAll(ctx context.Context) error
}
