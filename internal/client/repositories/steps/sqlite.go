package steps

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

func (r *SQLiteRepository) Upsert(ctx context.Context, w *models.StepWork) error {
	query := `INSERT INTO step_work
			(id, user_id, step_number, prompt, answer_enc, created_at, updated_at, sync_status, remote_id, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			answer_enc = excluded.answer_enc,
			updated_at = excluded.updated_at,
			sync_status = excluded.sync_status,
			deleted = excluded.deleted`
	_, err := r.db.ExecContext(ctx, query,
		w.ID, w.UserID, w.StepNumber, w.Prompt, w.AnswerEnc,
		w.CreatedAt.Unix(), w.UpdatedAt.Unix(),
		string(w.SyncStatus), w.RemoteID, boolToInt(w.Deleted))
	if err != nil {
		return fmt.Errorf("upsert step work: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.StepWork, error) {
	query := `SELECT id, user_id, step_number, prompt, answer_enc, created_at, updated_at, sync_status, remote_id, deleted
		FROM step_work WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	var w models.StepWork
	var answer, remoteID sql.NullString
	var created, updated int64
	var status string
	var deleted int
	err := row.Scan(&w.ID, &w.UserID, &w.StepNumber, &w.Prompt, &answer,
		&created, &updated, &status, &remoteID, &deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get step work: %w", err)
	}
	if answer.Valid {
		w.AnswerEnc = &answer.String
	}
	if remoteID.Valid {
		w.RemoteID = &remoteID.String
	}
	w.CreatedAt = time.Unix(created, 0).UTC()
	w.UpdatedAt = time.Unix(updated, 0).UTC()
	w.SyncStatus = models.SyncStatus(status)
	w.Deleted = deleted != 0
	return &w, nil
}

func (r *SQLiteRepository) List(ctx context.Context, userID string) ([]models.StepWork, error) {
	query := `SELECT id, user_id, step_number, prompt, created_at, updated_at, sync_status, remote_id
		FROM step_work WHERE user_id = ? AND deleted = 0
		ORDER BY step_number, created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list step work: %w", err)
	}
	defer rows.Close()

	var result []models.StepWork
	for rows.Next() {
		var w models.StepWork
		var created, updated int64
		var status string
		var remoteID sql.NullString
		if err := rows.Scan(&w.ID, &w.UserID, &w.StepNumber, &w.Prompt,
			&created, &updated, &status, &remoteID); err != nil {
			return nil, err
		}
		w.CreatedAt = time.Unix(created, 0).UTC()
		w.UpdatedAt = time.Unix(updated, 0).UTC()
		w.SyncStatus = models.SyncStatus(status)
		if remoteID.Valid {
			w.RemoteID = &remoteID.String
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE step_work
		SET deleted = 1, sync_status = ?, updated_at = ?
		WHERE id = ? AND deleted = 0`
	return expectOne(r.db.ExecContext(ctx, query, string(models.SyncStatusPending), now.Unix(), id))
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, remoteID string, asOf time.Time) (bool, error) {
	query := `UPDATE step_work
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
		`UPDATE step_work SET sync_status = ? WHERE id = ?`, string(models.SyncStatusError), id))
}

func (r *SQLiteRepository) MarkPending(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE step_work SET sync_status = ? WHERE id = ?`, string(models.SyncStatusPending), id))
}

func (r *SQLiteRepository) Purge(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx,
		`DELETE FROM step_work WHERE id = ? AND deleted = 1`, id))
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
