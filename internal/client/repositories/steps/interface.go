// Package steps persists StepWork records in the local SQLite store.
package steps

import (
	"context"
	"time"

	"github.com/stepwise-app/stepwise/internal/client/models"
)

// Repository describes storage operations for step-work answers.
type Repository interface {
	Upsert(ctx context.Context, w *models.StepWork) error

	// GetByID returns one answer, tombstones included; common.ErrNotFound
	// when missing.
	GetByID(ctx context.Context, id string) (*models.StepWork, error)

	// List returns the user's non-deleted answers ordered by step number,
	// without the encrypted answer column.
	List(ctx context.Context, userID string) ([]models.StepWork, error)

	MarkDeleted(ctx context.Context, id string, now time.Time) error
	MarkSynced(ctx context.Context, id string, remoteID string, asOf time.Time) (bool, error)
	MarkError(ctx context.Context, id string) error
	MarkPending(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
}
