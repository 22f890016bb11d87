package syncqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stepwise-app/stepwise/internal/client/models"
	"github.com/stepwise-app/stepwise/internal/common"
	"github.com/stepwise-app/stepwise/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
// Enqueue is meant to run inside the same transaction as the record mutation
// it belongs to, so both commit or both roll back.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, table, recordID string, op models.Operation, now time.Time) error {
	// A fresh mutation supersedes any failed leftover for the record.
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE table_name = ? AND record_id = ? AND state = ?`,
		table, recordID, string(models.QueueStateFailed))
	if err != nil {
		return fmt.Errorf("drop failed queue item: %w", err)
	}

	var itemID int64
	var existing string
	err = r.db.QueryRowContext(ctx,
		`SELECT id, operation FROM sync_queue WHERE table_name = ? AND record_id = ? AND state = ?`,
		table, recordID, string(models.QueueStateActive)).Scan(&itemID, &existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return r.insert(ctx, table, recordID, op, now)
	case err != nil:
		return fmt.Errorf("lookup queue item: %w", err)
	}

	return r.coalesce(ctx, itemID, models.Operation(existing), op, now)
}

func (r *SQLiteRepository) insert(ctx context.Context, table, recordID string, op models.Operation, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_queue (table_name, record_id, operation, created_at, retry_count, next_attempt_at, state)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		table, recordID, string(op), now.Unix(), now.Unix(), string(models.QueueStateActive))
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// coalesce merges op into the existing active item. created_at is kept so the
// item holds its FIFO position; retry bookkeeping resets because the mutation
// now carries new content.
func (r *SQLiteRepository) coalesce(ctx context.Context, itemID int64, existing, op models.Operation, now time.Time) error {
	var merged models.Operation
	switch op {
	case models.OpDelete:
		// Delete supersedes insert/update; pending content becomes irrelevant.
		merged = models.OpDelete
	case models.OpUpdate:
		if existing == models.OpDelete {
			return fmt.Errorf("%w: update enqueued over pending delete for item %d", common.ErrQueueCorrupt, itemID)
		}
		// Update over pending insert stays an insert; over update stays update.
		merged = existing
	case models.OpInsert:
		// Record ids are fresh uuids; an insert can never meet a pending item.
		return fmt.Errorf("%w: duplicate insert for item %d", common.ErrQueueCorrupt, itemID)
	default:
		return fmt.Errorf("unknown operation %q", op)
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET operation = ?, retry_count = 0, next_attempt_at = ?, last_error = NULL WHERE id = ?`,
		string(merged), now.Unix(), itemID)
	if err != nil {
		return fmt.Errorf("coalesce queue item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DequeueBatch(ctx context.Context, limit int, now time.Time) ([]models.QueueItem, error) {
	if err := r.checkInvariant(ctx); err != nil {
		return nil, err
	}

	query := `SELECT id, table_name, record_id, operation, created_at, retry_count, next_attempt_at, last_error, state
		FROM sync_queue
		WHERE state = ? AND next_attempt_at <= ?
		ORDER BY created_at, id
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, string(models.QueueStateActive), now.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue batch: %w", err)
	}
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// checkInvariant detects two active items for one record. The partial unique
// index makes this unreachable through this repository; a violation means the
// database was modified behind our back and the drain must not guess at
// ordering.
func (r *SQLiteRepository) checkInvariant(ctx context.Context) error {
	var table, recordID string
	err := r.db.QueryRowContext(ctx,
		`SELECT table_name, record_id FROM sync_queue WHERE state = ?
		 GROUP BY table_name, record_id HAVING count(*) > 1 LIMIT 1`,
		string(models.QueueStateActive)).Scan(&table, &recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("queue invariant check: %w", err)
	}
	return fmt.Errorf("%w: multiple active items for %s/%s", common.ErrQueueCorrupt, table, recordID)
}

func (r *SQLiteRepository) Ack(ctx context.Context, itemID int64) error {
	return expectOne(r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, itemID))
}

func (r *SQLiteRepository) Reschedule(ctx context.Context, itemID int64, delay time.Duration, cause string, now time.Time) error {
	query := `UPDATE sync_queue
		SET retry_count = retry_count + 1, next_attempt_at = ?, last_error = ?
		WHERE id = ? AND state = ?`
	return expectOne(r.db.ExecContext(ctx, query,
		now.Add(delay).Unix(), cause, itemID, string(models.QueueStateActive)))
}

func (r *SQLiteRepository) Fail(ctx context.Context, itemID int64, cause string) error {
	query := `UPDATE sync_queue SET state = ?, last_error = ? WHERE id = ?`
	return expectOne(r.db.ExecContext(ctx, query, string(models.QueueStateFailed), cause, itemID))
}

func (r *SQLiteRepository) Reactivate(ctx context.Context, table, recordID string, now time.Time) error {
	query := `UPDATE sync_queue
		SET state = ?, retry_count = 0, next_attempt_at = ?, last_error = NULL
		WHERE table_name = ? AND record_id = ? AND state = ?`
	return expectOne(r.db.ExecContext(ctx, query,
		string(models.QueueStateActive), now.Unix(), table, recordID, string(models.QueueStateFailed)))
}

func (r *SQLiteRepository) GetForRecord(ctx context.Context, table, recordID string) (*models.QueueItem, error) {
	query := `SELECT id, table_name, record_id, operation, created_at, retry_count, next_attempt_at, last_error, state
		FROM sync_queue WHERE table_name = ? AND record_id = ?
		ORDER BY state LIMIT 1`
	row := r.db.QueryRowContext(ctx, query, table, recordID)
	item, err := scanItem(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

func (r *SQLiteRepository) ActiveCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sync_queue WHERE state = ?`, string(models.QueueStateActive)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("active count: %w", err)
	}
	return n, nil
}

func scanItem(scan func(dest ...any) error) (*models.QueueItem, error) {
	var item models.QueueItem
	var op, state string
	var created, next int64
	var lastError sql.NullString
	err := scan(&item.ID, &item.TableName, &item.RecordID, &op,
		&created, &item.RetryCount, &next, &lastError, &state)
	if err != nil {
		return nil, err
	}
	item.Op = models.Operation(op)
	item.State = models.QueueState(state)
	item.CreatedAt = time.Unix(created, 0).UTC()
	item.NextAttemptAt = time.Unix(next, 0).UTC()
	if lastError.Valid {
		item.LastError = &lastError.String
	}
	return &item, nil
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return common.ErrNotFound
	}
	return nil
}
