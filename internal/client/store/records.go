package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stepwise-app/stepwise/internal/client/models"
	"github.com/stepwise-app/stepwise/internal/cryptox"
)

// --- journal entries ------------------------------------------------------

// CreateJournalEntry encrypts the body, persists the entry as pending and
// enqueues its insert, all in one transaction.
func (s *Store) CreateJournalEntry(ctx context.Context, key []byte, userID string, mood int, body *string) (*models.JournalEntry, error) {
	bodyEnc, err := cryptox.EncryptField(key, body)
	if err != nil {
		return nil, fmt.Errorf("encrypt body: %w", err)
	}

	now := s.now().UTC()
	e := &models.JournalEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Mood:       mood,
		BodyEnc:    bodyEnc,
		CreatedAt:  now,
		UpdatedAt:  now,
		SyncStatus: models.SyncStatusPending,
	}

	err = s.withTx(ctx, func(ctx context.Context, r repos) error {
		if err := r.journal.Upsert(ctx, e); err != nil {
			return err
		}
		return r.queue.Enqueue(ctx, e.Table(), e.ID, models.OpInsert, now)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateJournalEntry re-encrypts and rewrites the entry. The record returns
// to pending; its queued mutation coalesces with any still-unsent item.
func (s *Store) UpdateJournalEntry(ctx context.Context, key []byte, id string, mood int, body *string) error {
	bodyEnc, err := cryptox.EncryptField(key, body)
	if err != nil {
		return fmt.Errorf("encrypt body: %w", err)
	}
	now := s.now().UTC()

	return s.withTx(ctx, func(ctx context.Context, r repos) error {
		e, err := r.journal.GetByID(ctx, id)
		if err != nil {
			return err
		}
		e.Mood = mood
		e.BodyEnc = bodyEnc
		e.UpdatedAt = now
		e.SyncStatus = models.SyncStatusPending
		if err := r.journal.Upsert(ctx, e); err != nil {
			return err
		}
		return r.queue.Enqueue(ctx, e.Table(), e.ID, models.OpUpdate, now)
	})
}

// DeleteJournalEntry tombstones the entry and queues the remote delete. The
// row is purged only once the engine acknowledges the remote side.
func (s *Store) DeleteJournalEntry(ctx context.Context, id string) error {
	now := s.now().UTC()
	return s.withTx(ctx, func(ctx context.Context, r repos) error {
		if err := r.journal.MarkDeleted(ctx, id, now); err != nil {
			return err
		}
		return r.queue.Enqueue(ctx, models.TableJournalEntries, id, models.OpDelete, now)
	})
}

// GetJournalEntry returns the entry and its decrypted body. Decryption
// failures (key mismatch, corrupt ciphertext) propagate to the caller.
func (s *Store) GetJournalEntry(ctx context.Context, key []byte, id string) (*models.JournalEntry, *string, error) {
	e, err := bind(s.db).journal.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := cryptox.DecryptField(key, e.BodyEnc)
	if err != nil {
		return nil, nil, fmt.Errorf("journal entry %s: %w", id, err)
	}
	return e, body, nil
}

// ListJournalEntries returns entries without bodies; nothing is decrypted.
func (s *Store) ListJournalEntries(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	return bind(s.db).journal.List(ctx, userID)
}

// --- step work ------------------------------------------------------------

// SaveStepAnswer records a new answer to a program step prompt.
func (s *Store) SaveStepAnswer(ctx context.Context, key []byte, userID string, stepNumber int, prompt string, answer *string) (*models.StepWork, error) {
	answerEnc, err := cryptox.EncryptField(key, answer)
	if err != nil {
		return nil, fmt.Errorf("encrypt answer: %w", err)
	}

	now := s.now().UTC()
	w := &models.StepWork{
		ID:         uuid.NewString(),
		UserID:     userID,
		StepNumber: stepNumber,
		Prompt:     prompt,
		AnswerEnc:  answerEnc,
		CreatedAt:  now,
		UpdatedAt:  now,
		SyncStatus: models.SyncStatusPending,
	}

	err = s.withTx(ctx, func(ctx context.Context, r repos) error {
		if err := r.steps.Upsert(ctx, w); err != nil {
			return err
		}
		return r.queue.Enqueue(ctx, w.Table(), w.ID, models.OpInsert, now)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateStepAnswer replaces the answer text of an existing step record.
func (s *Store) UpdateStepAnswer(ctx context.Context, key []byte, id string, answer *string) error {
	answerEnc, err := cryptox.EncryptField(key, answer)
	if err != nil {
		return fmt.Errorf("encrypt answer: %w", err)
	}
	now := s.now().UTC()

	return s.withTx(ctx, func(ctx context.Context, r repos) error {
		w, err := r.steps.GetByID(ctx, id)
		if err != nil {
			return err
		}
		w.AnswerEnc = answerEnc
		w.UpdatedAt = now
		w.SyncStatus = models.SyncStatusPending
		if err := r.steps.Upsert(ctx, w); err != nil {
			return err
		}
		return r.queue.Enqueue(ctx, w.Table(), w.ID, models.OpUpdate, now)
	})
}

// DeleteStepAnswer tombstones a step record pending remote deletion.
func (s *Store) DeleteStepAnswer(ctx context.Context, id string) error {
	now := s.now().UTC()
	return s.withTx(ctx, func(ctx context.Context, r repos) error {
		if err := r.steps.MarkDeleted(ctx, id, now); err != nil {
			return err
		}
		return r.queue.Enqueue(ctx, models.TableStepWork, id, models.OpDelete, now)
	})
}

// GetStepAnswer returns the record and its decrypted answer.
func (s *Store) GetStepAnswer(ctx context.Context, key []byte, id string) (*models.StepWork, *string, error) {
	w, err := bind(s.db).steps.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	answer, err := cryptox.DecryptField(key, w.AnswerEnc)
	if err != nil {
		return nil, nil, fmt.Errorf("step work %s: %w", id, err)
	}
	return w, answer, nil
}

// ListStepWork returns step records without answers; nothing is decrypted.
func (s *Store) ListStepWork(ctx context.Context, userID string) ([]models.StepWork, error) {
	return bind(s.db).steps.List(ctx, userID)
}

// --- achievements ---------------------------------------------------------

// ListAchievements returns the user's earned milestones.
func (s *Store) ListAchievements(ctx context.Context, userID string) ([]models.Achievement, error) {
	return bind(s.db).achievements.List(ctx, userID)
}
