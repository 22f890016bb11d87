package models

import "time"

// Operation is a queued mutation kind.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// QueueState separates the active queue from failed leftovers. Failed items
// are no longer drained but keep their last_error until the user retries.
type QueueState string

const (
	QueueStateActive QueueState = "active"
	QueueStateFailed QueueState = "failed"
)

// QueueItem is one durable pending mutation. It references a record by
// (table, id) and never owns record content, so queue and store cannot drift
// into inconsistent copies.
type QueueItem struct {
	ID         int64
	TableName  string
	RecordID   string
	Op         Operation
	CreatedAt  time.Time
	RetryCount int

	// NextAttemptAt gates dequeuing while a backoff delay is pending.
	NextAttemptAt time.Time

	LastError *string
	State     QueueState
}
