// Package journal persists JournalEntry records in the local SQLite store.
package journal

import (
	"context"
	"time"

	"github.com/stepwise-app/stepwise/internal/client/models"
)

// Repository describes storage operations for journal entries.
// Implementations are backed by the local SQLite database.
type Repository interface {
	// Upsert inserts a new entry or rewrites an existing one by ID.
	Upsert(ctx context.Context, e *models.JournalEntry) error

	// GetByID returns a single entry, including its encrypted body and
	// tombstones. Missing rows yield common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.JournalEntry, error)

	// List returns the user's non-deleted entries, newest first, without
	// the encrypted body column (lazy decryption: listings never pay the
	// decrypt cost).
	List(ctx context.Context, userID string) ([]models.JournalEntry, error)

	// MarkDeleted tombstones an entry. The row survives until the remote
	// deletion is acknowledged.
	MarkDeleted(ctx context.Context, id string, now time.Time) error

	// MarkSynced records remote acknowledgement. The status flips to
	// synced only if the row was not edited after the given snapshot time;
	// it reports whether the flip happened.
	MarkSynced(ctx context.Context, id string, remoteID string, asOf time.Time) (bool, error)

	// MarkError flags the entry for user attention after terminal failure.
	MarkError(ctx context.Context, id string) error

	// MarkPending resets the status for an explicit user retry.
	MarkPending(ctx context.Context, id string) error

	// Purge removes an acknowledged tombstone for good.
	Purge(ctx context.Context, id string) error
}
