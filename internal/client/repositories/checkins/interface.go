// Package checkins persists DailyCheckIn records in the local SQLite store.
package checkins

import (
	"context"
	"time"

	"github.com/stepwise-app/stepwise/internal/client/models"
)

// Repository describes storage operations for daily check-ins.
type Repository interface {
	Upsert(ctx context.Context, c *models.DailyCheckIn) error

	// GetByID returns one check-in, tombstones included; common.ErrNotFound
	// when missing.
	GetByID(ctx context.Context, id string) (*models.DailyCheckIn, error)

	// GetByDay returns the user's check-in for a calendar day, if any.
	GetByDay(ctx context.Context, userID, day string) (*models.DailyCheckIn, error)

	// List returns the user's non-deleted check-ins, newest day first,
	// without the encrypted note column.
	List(ctx context.Context, userID string) ([]models.DailyCheckIn, error)

	// ListDays returns up to limit distinct check-in days, newest first.
	// Used for streak computation.
	ListDays(ctx context.Context, userID string, limit int) ([]string, error)

	MarkDeleted(ctx context.Context, id string, now time.Time) error
	MarkSynced(ctx context.Context, id string, remoteID string, asOf time.Time) (bool, error)
	MarkError(ctx context.Context, id string) error
	MarkPending(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
}
