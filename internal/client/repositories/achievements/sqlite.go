package achievements

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

func (r *SQLiteRepository) Insert(ctx context.Context, a *models.Achievement) error {
	query := `INSERT INTO achievements
			(id, user_id, kind, days, earned_at, created_at, updated_at, sync_status, remote_id, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.Kind, a.Days, a.EarnedAt.Unix(),
		a.CreatedAt.Unix(), a.UpdatedAt.Unix(),
		string(a.SyncStatus), a.RemoteID, boolToInt(a.Deleted))
	if err != nil {
		return fmt.Errorf("insert achievement: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Achievement, error) {
	query := `SELECT id, user_id, kind, days, earned_at, created_at, updated_at, sync_status, remote_id, deleted
		FROM achievements WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	var a models.Achievement
	var remoteID sql.NullString
	var earned, created, updated int64
	var status string
	var deleted int
	err := row.Scan(&a.ID, &a.UserID, &a.Kind, &a.Days, &earned,
		&created, &updated, &status, &remoteID, &deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get achievement: %w", err)
	}
	if remoteID.Valid {
		a.RemoteID = &remoteID.String
	}
	a.EarnedAt = time.Unix(earned, 0).UTC()
	a.CreatedAt = time.Unix(created, 0).UTC()
	a.UpdatedAt = time.Unix(updated, 0).UTC()
	a.SyncStatus = models.SyncStatus(status)
	a.Deleted = deleted != 0
	return &a, nil
}

func (r *SQLiteRepository) HasKind(ctx context.Context, userID, kind string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM achievements WHERE user_id = ? AND kind = ? AND deleted = 0`,
		userID, kind).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("achievement lookup: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) List(ctx context.Context, userID string) ([]models.Achievement, error) {
	query := `SELECT id, user_id, kind, days, earned_at, created_at, updated_at, sync_status, remote_id
		FROM achievements WHERE user_id = ? AND deleted = 0
		ORDER BY earned_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var result []models.Achievement
	for rows.Next() {
		var a models.Achievement
		var earned, created, updated int64
		var status string
		var remoteID sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.Kind, &a.Days, &earned,
			&created, &updated, &status, &remoteID); err != nil {
			return nil, err
		}
		a.EarnedAt = time.Unix(earned, 0).UTC()
		a.CreatedAt = time.Unix(created, 0).UTC()
		a.UpdatedAt = time.Unix(updated, 0).UTC()
		a.SyncStatus = models.SyncStatus(status)
		if remoteID.Valid {
			a.RemoteID = &remoteID.String
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE achievements
		SET deleted = 1, sync_status = ?, updated_at = ?
		WHERE id = ? AND deleted = 0`
	return expectOne(r.db.ExecContext(ctx, query, string(models.SyncStatusPending), now.Unix(), id))
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, remoteID string, asOf time.Time) (bool, error) {
	query := `UPDATE achievements
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
		`UPDATE achievements SET sync_status = ? WHERE id = ?`, string(models.SyncStatusError), id))
}

func (r *SQLiteRepository) MarkPending(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE achievements SET sync_status = ? WHERE id = ?`, string(models.SyncStatusPending), id))
}

func (r *SQLiteRepository) Purge(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx,
		`DELETE FROM achievements WHERE id = ? AND deleted = 1`, id))
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
