// Package syncqueue persists the ordered, durable log of pending mutations.
//
// The queue holds references only — (table, record id, operation) — never
// record content; the engine reads the current row from the record store at
// send time. At most one active item may exist per record: new mutations
// coalesce into the existing item instead of appending duplicates.
package syncqueue

import (
	"context"
	"time"

	"github.com/stepwise-app/stepwise/internal/client/models"
)

// Repository describes the durable mutation queue.
type Repository interface {
	// Enqueue records a mutation, applying the coalescing rules:
	//   - update over a pending insert stays a single insert (the engine
	//     reads the latest row at send time, so the payload follows);
	//   - update over a pending update stays a single update with reset
	//     retry bookkeeping;
	//   - delete over any pending item replaces it with a single delete,
	//     since the end state makes earlier pending content irrelevant.
	// A failed leftover for the same record is superseded and removed.
	Enqueue(ctx context.Context, table, recordID string, op models.Operation, now time.Time) error

	// DequeueBatch returns up to limit active items whose backoff delay has
	// elapsed, in creation order (FIFO), so per-record mutation order is
	// preserved. It verifies the one-active-item-per-record invariant and
	// returns common.ErrQueueCorrupt on violation.
	DequeueBatch(ctx context.Context, limit int, now time.Time) ([]models.QueueItem, error)

	// Ack removes a successfully applied item.
	Ack(ctx context.Context, itemID int64) error

	// Reschedule books a retryable failure: retry_count+1, next attempt
	// after delay, cause recorded as last_error.
	Reschedule(ctx context.Context, itemID int64, delay time.Duration, cause string, now time.Time) error

	// Fail moves an item out of the active queue after terminal failure,
	// keeping it (with last_error) until the user retries or discards.
	Fail(ctx context.Context, itemID int64, cause string) error

	// Reactivate returns a failed item to the active queue with reset retry
	// bookkeeping. Used by the explicit user-triggered retry.
	Reactivate(ctx context.Context, table, recordID string, now time.Time) error

	// GetForRecord returns the single queue item referencing the record,
	// active or failed; common.ErrNotFound when none exists.
	GetForRecord(ctx context.Context, table, recordID string) (*models.QueueItem, error)

	// ActiveCount reports the number of items awaiting sync.
	ActiveCount(ctx context.Context) (int, error)
}
