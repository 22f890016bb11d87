// Package store is the local record store facade. Every record mutation and
// its sync queue entry are committed in one transaction, so a record can
// never exist without a path to eventual sync. Reads decrypt sensitive
// fields lazily: list operations return plaintext columns only, and
// ciphertext is opened on explicit get.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stepwise-app/stepwise/internal/client/models"
	"github.com/stepwise-app/stepwise/internal/client/repositories/achievements"
	"github.com/stepwise-app/stepwise/internal/client/repositories/checkins"
	"github.com/stepwise-app/stepwise/internal/client/repositories/journal"
	"github.com/stepwise-app/stepwise/internal/client/repositories/steps"
	"github.com/stepwise-app/stepwise/internal/client/repositories/syncqueue"
	"github.com/stepwise-app/stepwise/internal/common"
	"github.com/stepwise-app/stepwise/internal/dbx"
	"github.com/stepwise-app/stepwise/internal/logging"
)

// Store owns record lifetime for all record kinds. The sync queue holds only
// (table, id) references into it.
type Store struct {
	db  *sql.DB
	log logging.Logger
	now func() time.Time
}

func New(db *sql.DB, log logging.Logger) *Store {
	return &Store{db: db, log: log, now: time.Now}
}

// repos bundles per-table repositories bound to one transaction handle.
type repos struct {
	journal      journal.Repository
	checkins     checkins.Repository
	steps        steps.Repository
	achievements achievements.Repository
	queue        syncqueue.Repository
}

func bind(db dbx.DBTX) repos {
	return repos{
		journal:      journal.NewSQLiteRepository(db),
		checkins:     checkins.NewSQLiteRepository(db),
		steps:        steps.NewSQLiteRepository(db),
		achievements: achievements.NewSQLiteRepository(db),
		queue:        syncqueue.NewSQLiteRepository(db),
	}
}

func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context, r repos) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, bind(tx))
	})
}

// --- sync engine support -------------------------------------------------

// LoadSyncable returns the current row for a queue item reference. The
// engine reads record content at send time, never from the queue.
func (s *Store) LoadSyncable(ctx context.Context, table, recordID string) (models.Syncable, error) {
	r := bind(s.db)
	switch table {
	case models.TableJournalEntries:
		return r.journal.GetByID(ctx, recordID)
	case models.TableCheckIns:
		return r.checkins.GetByID(ctx, recordID)
	case models.TableStepWork:
		return r.steps.GetByID(ctx, recordID)
	case models.TableAchievements:
		return r.achievements.GetByID(ctx, recordID)
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
}

// DequeueBatch exposes the active queue to the engine.
func (s *Store) DequeueBatch(ctx context.Context, limit int) ([]models.QueueItem, error) {
	return bind(s.db).queue.DequeueBatch(ctx, limit, s.now())
}

// PendingCount reports how many mutations await sync.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	return bind(s.db).queue.ActiveCount(ctx)
}

// CompleteUpsert records remote acknowledgement of an insert/update: the
// record flips to synced with its remote id and the queue item is removed —
// unless the record was edited after asOf, in which case the still-coalesced
// queue item stays put and the next drain sends the newer content.
func (s *Store) CompleteUpsert(ctx context.Context, item models.QueueItem, remoteID string, asOf time.Time) error {
	return s.withTx(ctx, func(ctx context.Context, r repos) error {
		synced, err := s.markSynced(ctx, r, item.TableName, item.RecordID, remoteID, asOf)
		if err != nil {
			return err
		}
		if !synced {
			s.log.Debug(ctx, "record edited mid-flight, keeping queue item",
				"table", item.TableName, "record_id", item.RecordID)
			return nil
		}
		return r.queue.Ack(ctx, item.ID)
	})
}

// CompleteDelete removes an acknowledged tombstone and its queue item. A row
// already gone (orphaned queue reference, replayed ack) is not an error.
func (s *Store) CompleteDelete(ctx context.Context, item models.QueueItem) error {
	return s.withTx(ctx, func(ctx context.Context, r repos) error {
		if err := s.purge(ctx, r, item.TableName, item.RecordID); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		return r.queue.Ack(ctx, item.ID)
	})
}

// RescheduleItem books a retryable failure; the record stays pending.
func (s *Store) RescheduleItem(ctx context.Context, item models.QueueItem, delay time.Duration, cause string) error {
	return bind(s.db).queue.Reschedule(ctx, item.ID, delay, cause, s.now())
}

// FailItem handles terminal failure: the record is flagged error and the
// item leaves the active queue, keeping its last_error for the user.
func (s *Store) FailItem(ctx context.Context, item models.QueueItem, cause string) error {
	return s.withTx(ctx, func(ctx context.Context, r repos) error {
		// A delete of a tombstone that failed terminally still flags the
		// tombstoned row; the user can retry or the row stays hidden.
		if err := s.markError(ctx, r, item.TableName, item.RecordID); err != nil {
			return err
		}
		return r.queue.Fail(ctx, item.ID, cause)
	})
}

// RetryRecord is the explicit user-triggered retry for a record in error
// state: status returns to pending and the failed queue item is reactivated.
func (s *Store) RetryRecord(ctx context.Context, table, recordID string) error {
	return s.withTx(ctx, func(ctx context.Context, r repos) error {
		if err := s.markPending(ctx, r, table, recordID); err != nil {
			return err
		}
		return r.queue.Reactivate(ctx, table, recordID, s.now())
	})
}

// QueueItemForRecord reports the queue bookkeeping (retry count, last error)
// for a record, if any.
func (s *Store) QueueItemForRecord(ctx context.Context, table, recordID string) (*models.QueueItem, error) {
	return bind(s.db).queue.GetForRecord(ctx, table, recordID)
}

func (s *Store) markSynced(ctx context.Context, r repos, table, recordID, remoteID string, asOf time.Time) (bool, error) {
	switch table {
	case models.TableJournalEntries:
		return r.journal.MarkSynced(ctx, recordID, remoteID, asOf)
	case models.TableCheckIns:
		return r.checkins.MarkSynced(ctx, recordID, remoteID, asOf)
	case models.TableStepWork:
		return r.steps.MarkSynced(ctx, recordID, remoteID, asOf)
	case models.TableAchievements:
		return r.achievements.MarkSynced(ctx, recordID, remoteID, asOf)
	default:
		return false, fmt.Errorf("unknown table %q", table)
	}
}

func (s *Store) markError(ctx context.Context, r repos, table, recordID string) error {
	switch table {
	case models.TableJournalEntries:
		return r.journal.MarkError(ctx, recordID)
	case models.TableCheckIns:
		return r.checkins.MarkError(ctx, recordID)
	case models.TableStepWork:
		return r.steps.MarkError(ctx, recordID)
	case models.TableAchievements:
		return r.achievements.MarkError(ctx, recordID)
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}

func (s *Store) markPending(ctx context.Context, r repos, table, recordID string) error {
	switch table {
	case models.TableJournalEntries:
		return r.journal.MarkPending(ctx, recordID)
	case models.TableCheckIns:
		return r.checkins.MarkPending(ctx, recordID)
	case models.TableStepWork:
		return r.steps.MarkPending(ctx, recordID)
	case models.TableAchievements:
		return r.achievements.MarkPending(ctx, recordID)
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}

func (s *Store) purge(ctx context.Context, r repos, table, recordID string) error {
	switch table {
	case models.TableJournalEntries:
		return r.journal.Purge(ctx, recordID)
	case models.TableCheckIns:
		return r.checkins.Purge(ctx, recordID)
	case models.TableStepWork:
		return r.steps.Purge(ctx, recordID)
	case models.TableAchievements:
		return r.achievements.Purge(ctx, recordID)
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}
