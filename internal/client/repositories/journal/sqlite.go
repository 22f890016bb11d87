package journal

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
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, e *models.JournalEntry) error {
	query := `INSERT INTO journal_entries
			(id, user_id, mood, body_enc, created_at, updated_at, sync_status, remote_id, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mood = excluded.mood,
			body_enc = excluded.body_enc,
			updated_at = excluded.updated_at,
			sync_status = excluded.sync_status,
			deleted = excluded.deleted`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.Mood, e.BodyEnc,
		e.CreatedAt.Unix(), e.UpdatedAt.Unix(),
		string(e.SyncStatus), e.RemoteID, boolToInt(e.Deleted))
	if err != nil {
		return fmt.Errorf("upsert journal entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.JournalEntry, error) {
	query := `SELECT id, user_id, mood, body_enc, created_at, updated_at, sync_status, remote_id, deleted
		FROM journal_entries WHERE id = ?`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get journal entry: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	query := `SELECT id, user_id, mood, created_at, updated_at, sync_status, remote_id
		FROM journal_entries WHERE user_id = ? AND deleted = 0
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var result []models.JournalEntry
	for rows.Next() {
		var e models.JournalEntry
		var created, updated int64
		var status string
		var remoteID sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Mood, &created, &updated, &status, &remoteID); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		e.UpdatedAt = time.Unix(updated, 0).UTC()
		e.SyncStatus = models.SyncStatus(status)
		if remoteID.Valid {
			e.RemoteID = &remoteID.String
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE journal_entries
		SET deleted = 1, sync_status = ?, updated_at = ?
		WHERE id = ? AND deleted = 0`
	return expectOne(r.db.ExecContext(ctx, query, string(models.SyncStatusPending), now.Unix(), id))
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, remoteID string, asOf time.Time) (bool, error) {
	query := `UPDATE journal_entries
		SET sync_status = ?, remote_id = ?
		WHERE id = ? AND updated_at <= ?`
	res, err := r.db.ExecContext(ctx, query, string(models.SyncStatusSynced), remoteID, id, asOf.Unix())
	if err != nil {
		return false, fmt.Errorf("mark synced: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *SQLiteRepository) MarkError(ctx context.Context, id string) error {
	query := `UPDATE journal_entries SET sync_status = ? WHERE id = ?`
	return expectOne(r.db.ExecContext(ctx, query, string(models.SyncStatusError), id))
}

func (r *SQLiteRepository) MarkPending(ctx context.Context, id string) error {
	query := `UPDATE journal_entries SET sync_status = ? WHERE id = ?`
	return expectOne(r.db.ExecContext(ctx, query, string(models.SyncStatusPending), id))
}

func (r *SQLiteRepository) Purge(ctx context.Context, id string) error {
	query := `DELETE FROM journal_entries WHERE id = ? AND deleted = 1`
	return expectOne(r.db.ExecContext(ctx, query, id))
}

func scanEntry(row *sql.Row) (*models.JournalEntry, error) {
	var e models.JournalEntry
	var body, remoteID sql.NullString
	var created, updated int64
	var status string
	var deleted int
	if err := row.Scan(&e.ID, &e.UserID, &e.Mood, &body, &created, &updated, &status, &remoteID, &deleted); err != nil {
		return nil, err
	}
	if body.Valid {
		e.BodyEnc = &body.String
	}
	if remoteID.Valid {
		e.RemoteID = &remoteID.String
	}
	e.CreatedAt = time.Unix(created, 0).UTC()
	e.UpdatedAt = time.Unix(updated, 0).UTC()
	e.SyncStatus = models.SyncStatus(status)
	e.Deleted = deleted != 0
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
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
