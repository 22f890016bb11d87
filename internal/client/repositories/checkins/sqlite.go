package checkins

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

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, c *models.DailyCheckIn) error {
	query := `INSERT INTO daily_checkins
			(id, user_id, day, mood, craving, note_enc, created_at, updated_at, sync_status, remote_id, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mood = excluded.mood,
			craving = excluded.craving,
			note_enc = excluded.note_enc,
			updated_at = excluded.updated_at,
			sync_status = excluded.sync_status,
			deleted = excluded.deleted`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.UserID, c.Day, c.Mood, c.Craving, c.NoteEnc,
		c.CreatedAt.Unix(), c.UpdatedAt.Unix(),
		string(c.SyncStatus), c.RemoteID, boolToInt(c.Deleted))
	if err != nil {
		return fmt.Errorf("upsert check-in: %w", err)
	}
	return nil
}

const selectCols = `id, user_id, day, mood, craving, note_enc, created_at, updated_at, sync_status, remote_id, deleted`

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.DailyCheckIn, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM daily_checkins WHERE id = ?`, id)
	return scanCheckIn(row)
}

func (r *SQLiteRepository) GetByDay(ctx context.Context, userID, day string) (*models.DailyCheckIn, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectCols+` FROM daily_checkins WHERE user_id = ? AND day = ? AND deleted = 0`,
		userID, day)
	return scanCheckIn(row)
}

func (r *SQLiteRepository) List(ctx context.Context, userID string) ([]models.DailyCheckIn, error) {
	query := `SELECT id, user_id, day, mood, craving, created_at, updated_at, sync_status, remote_id
		FROM daily_checkins WHERE user_id = ? AND deleted = 0
		ORDER BY day DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	defer rows.Close()

	var result []models.DailyCheckIn
	for rows.Next() {
		var c models.DailyCheckIn
		var created, updated int64
		var status string
		var remoteID sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &c.Day, &c.Mood, &c.Craving,
			&created, &updated, &status, &remoteID); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0).UTC()
		c.UpdatedAt = time.Unix(updated, 0).UTC()
		c.SyncStatus = models.SyncStatus(status)
		if remoteID.Valid {
			c.RemoteID = &remoteID.String
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) ListDays(ctx context.Context, userID string, limit int) ([]string, error) {
	query := `SELECT DISTINCT day FROM daily_checkins
		WHERE user_id = ? AND deleted = 0
		ORDER BY day DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list check-in days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE daily_checkins
		SET deleted = 1, sync_status = ?, updated_at = ?
		WHERE id = ? AND deleted = 0`
	return expectOne(r.db.ExecContext(ctx, query, string(models.SyncStatusPending), now.Unix(), id))
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, remoteID string, asOf time.Time) (bool, error) {
	query := `UPDATE daily_checkins
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
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE daily_checkins SET sync_status = ? WHERE id = ?`, string(models.SyncStatusError), id))
}

func (r *SQLiteRepository) MarkPending(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE daily_checkins SET sync_status = ? WHERE id = ?`, string(models.SyncStatusPending), id))
}

func (r *SQLiteRepository) Purge(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx,
		`DELETE FROM daily_checkins WHERE id = ? AND deleted = 1`, id))
}

func scanCheckIn(row *sql.Row) (*models.DailyCheckIn, error) {
	var c models.DailyCheckIn
	var note, remoteID sql.NullString
	var created, updated int64
	var status string
	var deleted int
	err := row.Scan(&c.ID, &c.UserID, &c.Day, &c.Mood, &c.Craving, &note,
		&created, &updated, &status, &remoteID, &deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get check-in: %w", err)
	}
	if note.Valid {
		c.NoteEnc = &note.String
	}
	if remoteID.Valid {
		c.RemoteID = &remoteID.String
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	c.UpdatedAt = time.Unix(updated, 0).UTC()
	c.SyncStatus = models.SyncStatus(status)
	c.Deleted = deleted != 0
	return &c, nil
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
