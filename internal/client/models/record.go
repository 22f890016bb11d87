// Package models defines the client-side record types persisted in the local
// store and reconciled with the remote backend. Sensitive attributes are held
// only as cryptox envelopes (the *Enc fields); plaintext exists transiently
// in memory while a record is being edited or displayed.
package models

import "time"

// SyncStatus is the per-record tri-state marker of reconciliation progress.
type SyncStatus string

const (
	// SyncStatusPending marks a record with local changes not yet accepted
	// by the remote store. Initial state on create/update, re-entered after
	// a retryable failure or a subsequent local edit.
	SyncStatusPending SyncStatus = "pending"

	// SyncStatusSynced is set only after the remote store acknowledged the
	// operation (and, for inserts, assigned a remote id).
	SyncStatusSynced SyncStatus = "synced"

	// SyncStatusError marks exhausted retries or a non-retryable rejection.
	// Leaving it requires an explicit user-triggered retry.
	SyncStatusError SyncStatus = "error"
)

// Local table names. They double as the remote row-level API table segment.
const (
	TableJournalEntries = "journal_entries"
	TableCheckIns       = "daily_checkins"
	TableStepWork       = "step_work"
	TableAchievements   = "achievements"
)

// Syncable is implemented by every record kind the sync engine can push.
type Syncable interface {
	// Table names the local table / remote collection the record lives in.
	Table() string

	// Key returns the stable local identifier.
	Key() string

	// Remote returns the remote identifier, nil until first acknowledged.
	Remote() *string

	// ModifiedAt returns the last local modification time. The engine
	// snapshots it before sending so a mid-flight edit is never lost.
	ModifiedAt() time.Time

	// Row returns the remote upsert payload. Sensitive attributes appear as
	// ciphertext envelopes, never as plaintext.
	Row() map[string]any
}
