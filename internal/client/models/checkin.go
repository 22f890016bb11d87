package models

import "time"

// DayFormat is the layout of DailyCheckIn.Day.
const DayFormat = "2006-01-02"

// DailyCheckIn is the once-per-day mood/craving record. Scores stay plaintext
// so streaks can be computed with SQL; the optional note is sensitive.
type DailyCheckIn struct {
	ID     string
	UserID string

	// Day is the local calendar date in DayFormat; one check-in per day.
	Day     string
	Mood    int
	Craving int

	// NoteEnc holds the encrypted free-form note, nil when none was written.
	NoteEnc *string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	SyncStatus SyncStatus
	RemoteID   *string
	Deleted    bool
}

func (c *DailyCheckIn) Table() string         { return TableCheckIns }
func (c *DailyCheckIn) Key() string           { return c.ID }
func (c *DailyCheckIn) Remote() *string       { return c.RemoteID }
func (c *DailyCheckIn) ModifiedAt() time.Time { return c.UpdatedAt }

func (c *DailyCheckIn) Row() map[string]any {
	return map[string]any{
		"id":         c.ID,
		"user_id":    c.UserID,
		"day":        c.Day,
		"mood":       c.Mood,
		"craving":    c.Craving,
		"note_enc":   c.NoteEnc,
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
