package models

import "time"

// JournalEntry is a free-form diary record. The body is sensitive and stored
// only encrypted; the mood score stays plaintext so lists and charts do not
// pay decryption cost.
type JournalEntry struct {
	ID     string
	UserID string

	// Mood is a 1..10 self-assessment.
	Mood int

	// BodyEnc holds the encrypted entry text, nil when the entry has no body.
	BodyEnc *string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	SyncStatus SyncStatus
	RemoteID   *string
	Deleted    bool
}

func (e *JournalEntry) Table() string         { return TableJournalEntries }
func (e *JournalEntry) Key() string           { return e.ID }
func (e *JournalEntry) Remote() *string       { return e.RemoteID }
func (e *JournalEntry) ModifiedAt() time.Time { return e.UpdatedAt }

func (e *JournalEntry) Row() map[string]any {
	return map[string]any{
		"id":         e.ID,
		"user_id":    e.UserID,
		"mood":       e.Mood,
		"body_enc":   e.BodyEnc,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
