// Package achievements persists milestone records in the local SQLite store.
package achievements

import (
	"context"
	"time"

	"github.com/stepwise-app/stepwise/internal/client/models"
)

// Repository describes storage operations for achievements. Achievements are
// granted locally (never edited), so there is no update path beyond sync
// bookkeeping.
type Repository interface {
	Insert(ctx context.Context, a *models.Achievement) error

	// GetByID returns one achievement; common.ErrNotFound when missing.
	GetByID(ctx context.Context, id string) (*models.Achievement, error)

	// HasKind reports whether the user already earned the given milestone.
	HasKind(ctx context.Context, userID, kind string) (bool, error)

	// List returns the user's achievements, newest first.
	List(ctx context.Context, userID string) ([]models.Achievement, error)

	MarkDeleted(ctx context.Context, id string, now time.Time) error
	MarkSynced(ctx context.Context, id string, remoteID string, asOf time.Time) (bool, error)
	MarkError(ctx context.Context, id string) error
	MarkPending(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
}
