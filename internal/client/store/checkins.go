package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stepwise-app/stepwise/internal/client/models"
	"github.com/stepwise-app/stepwise/internal/common"
	"github.com/stepwise-app/stepwise/internal/cryptox"
)

// Streak milestones that grant achievements, in days.
var streakMilestones = []struct {
	days int
	kind string
}{
	{7, models.AchievementStreak7},
	{30, models.AchievementStreak30},
	{90, models.AchievementStreak90},
}

// RecordCheckIn saves the user's check-in for a calendar day. A second
// check-in on the same day rewrites the first (one row per day). Newly
// crossed streak milestones are granted in the same transaction, each with
// its own queued insert, and returned to the caller.
func (s *Store) RecordCheckIn(ctx context.Context, key []byte, userID, day string, mood, craving int, note *string) (*models.DailyCheckIn, []models.Achievement, error) {
	if _, err := time.Parse(models.DayFormat, day); err != nil {
		return nil, nil, fmt.Errorf("bad day %q: %w", day, err)
	}
	noteEnc, err := cryptox.EncryptField(key, note)
	if err != nil {
		return nil, nil, fmt.Errorf("encrypt note: %w", err)
	}

	now := s.now().UTC()
	var checkIn *models.DailyCheckIn
	var granted []models.Achievement

	err = s.withTx(ctx, func(ctx context.Context, r repos) error {
		existing, err := r.checkins.GetByDay(ctx, userID, day)
		switch {
		case err == nil:
			existing.Mood = mood
			existing.Craving = craving
			existing.NoteEnc = noteEnc
			existing.UpdatedAt = now
			existing.SyncStatus = models.SyncStatusPending
			checkIn = existing
			if err := r.checkins.Upsert(ctx, checkIn); err != nil {
				return err
			}
			if err := r.queue.Enqueue(ctx, checkIn.Table(), checkIn.ID, models.OpUpdate, now); err != nil {
				return err
			}
		case errors.Is(err, common.ErrNotFound):
			checkIn = &models.DailyCheckIn{
				ID:         uuid.NewString(),
				UserID:     userID,
				Day:        day,
				Mood:       mood,
				Craving:    craving,
				NoteEnc:    noteEnc,
				CreatedAt:  now,
				UpdatedAt:  now,
				SyncStatus: models.SyncStatusPending,
			}
			if err := r.checkins.Upsert(ctx, checkIn); err != nil {
				return err
			}
			if err := r.queue.Enqueue(ctx, checkIn.Table(), checkIn.ID, models.OpInsert, now); err != nil {
				return err
			}
		default:
			return err
		}

		granted, err = s.grantMilestones(ctx, r, userID, day, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return checkIn, granted, nil
}

// grantMilestones computes the consecutive-day streak ending at day and
// inserts any milestone achievements not yet earned.
func (s *Store) grantMilestones(ctx context.Context, r repos, userID, day string, now time.Time) ([]models.Achievement, error) {
	days, err := r.checkins.ListDays(ctx, userID, 128)
	if err != nil {
		return nil, err
	}
	streak := streakLength(days, day)

	var granted []models.Achievement
	for _, m := range streakMilestones {
		if streak < m.days {
			continue
		}
		earned, err := r.achievements.HasKind(ctx, userID, m.kind)
		if err != nil {
			return nil, err
		}
		if earned {
			continue
		}

		a := models.Achievement{
			ID:         uuid.NewString(),
			UserID:     userID,
			Kind:       m.kind,
			Days:       m.days,
			EarnedAt:   now,
			CreatedAt:  now,
			UpdatedAt:  now,
			SyncStatus: models.SyncStatusPending,
		}
		if err := r.achievements.Insert(ctx, &a); err != nil {
			return nil, err
		}
		if err := r.queue.Enqueue(ctx, a.Table(), a.ID, models.OpInsert, now); err != nil {
			return nil, err
		}
		granted = append(granted, a)
	}
	return granted, nil
}

// streakLength counts consecutive days in days (sorted newest first) ending
// at end. Days before the first gap do not count.
func streakLength(days []string, end string) int {
	cur, err := time.Parse(models.DayFormat, end)
	if err != nil {
		return 0
	}

	have := make(map[string]bool, len(days))
	for _, d := range days {
		have[d] = true
	}

	streak := 0
	for have[cur.Format(models.DayFormat)] {
		streak++
		cur = cur.AddDate(0, 0, -1)
	}
	return streak
}

// GetCheckIn returns the check-in and its decrypted note.
func (s *Store) GetCheckIn(ctx context.Context, key []byte, id string) (*models.DailyCheckIn, *string, error) {
	c, err := bind(s.db).checkins.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	note, err := cryptox.DecryptField(key, c.NoteEnc)
	if err != nil {
		return nil, nil, fmt.Errorf("check-in %s: %w", id, err)
	}
	return c, note, nil
}

// ListCheckIns returns check-ins without notes; nothing is decrypted.
func (s *Store) ListCheckIns(ctx context.Context, userID string) ([]models.DailyCheckIn, error) {
	return bind(s.db).checkins.List(ctx, userID)
}

// DeleteCheckIn tombstones a check-in pending remote deletion.
func (s *Store) DeleteCheckIn(ctx context.Context, id string) error {
	now := s.now().UTC()
	return s.withTx(ctx, func(ctx context.Context, r repos) error {
		if err := r.checkins.MarkDeleted(ctx, id, now); err != nil {
			return err
		}
		return r.queue.Enqueue(ctx, models.TableCheckIns, id, models.OpDelete, now)
	})
}

// Streak reports the user's current consecutive check-in streak ending today.
func (s *Store) Streak(ctx context.Context, userID string) (int, error) {
	days, err := bind(s.db).checkins.ListDays(ctx, userID, 128)
	if err != nil {
		return 0, err
	}
	return streakLength(days, s.now().UTC().Format(models.DayFormat)), nil
}
