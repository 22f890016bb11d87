package models

import "time"

// Achievement kinds granted on check-in streak milestones.
const (
	AchievementStreak7  = "streak_7"
	AchievementStreak30 = "streak_30"
	AchievementStreak90 = "streak_90"
)

// Achievement is a milestone record. It carries no sensitive attributes,
// which exercises the zero-encrypted-columns case of the record contract.
type Achievement struct {
	ID     string
	UserID string

	// Kind is one of the AchievementStreak constants.
	Kind string

	// Days is the streak length that earned the milestone.
	Days int

	EarnedAt   time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SyncStatus SyncStatus
	RemoteID   *string
	Deleted    bool
}

func (a *Achievement) Table() string         { return TableAchievements }
func (a *Achievement) Key() string           { return a.ID }
func (a *Achievement) Remote() *string       { return a.RemoteID }
func (a *Achievement) ModifiedAt() time.Time { return a.UpdatedAt }

func (a *Achievement) Row() map[string]any {
	return map[string]any{
		"id":         a.ID,
		"user_id":    a.UserID,
		"kind":       a.Kind,
		"days":       a.Days,
		"earned_at":  a.EarnedAt.UTC().Format(time.RFC3339),
		"created_at": a.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
