package cli

import (
	"context"
	"time"

	"github.com/stepwise-app/stepwise/internal/client/models"
)

// CheckIn records today's mood/craving check-in. Re-running it the same day
// rewrites the earlier one.
func (a *App) CheckIn(ctx context.Context) error {
	user := a.currentUser()
	key, err := a.keys.GetKey(ctx, user)
	if err != nil {
		return err
	}

	mood, err := GetInt(a.reader, "Mood", 1, 10, a.out)
	if err != nil {
		return err
	}
	craving, err := GetInt(a.reader, "Craving", 0, 10, a.out)
	if err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "Anything to note?", a.out)
	if err != nil {
		return err
	}
	var note *string
	if text != "" {
		note = &text
	}

	day := time.Now().Format(models.DayFormat)
	_, granted, err := a.store.RecordCheckIn(ctx, key, user, day, mood, craving, note)
	if err != nil {
		return err
	}
	a.engine.Trigger()

	a.printf("Checked in for %s", day)
	for _, g := range granted {
		a.printf("Milestone reached: %d days in a row!", g.Days)
	}
	return nil
}

// ListCheckIns prints recent check-ins, newest first.
func (a *App) ListCheckIns(ctx context.Context) error {
	list, err := a.store.ListCheckIns(ctx, a.currentUser())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.printf("No check-ins yet")
		return nil
	}
	for _, c := range list {
		a.printf("%s  mood %2d  craving %2d  [%s]",
			c.Day, c.Mood, c.Craving,
			a.syncLabel(ctx, models.TableCheckIns, c.ID, c.SyncStatus))
	}
	return nil
}

// ShowStreak prints the current consecutive check-in streak.
func (a *App) ShowStreak(ctx context.Context) error {
	streak, err := a.store.Streak(ctx, a.currentUser())
	if err != nil {
		return err
	}
	switch streak {
	case 0:
		a.printf("No active streak, today is a good day to check in")
	case 1:
		a.printf("Current streak: 1 day")
	default:
		a.printf("Current streak: %d days", streak)
	}
	return nil
}

// ListAchievements prints earned milestones.
func (a *App) ListAchievements(ctx context.Context) error {
	list, err := a.store.ListAchievements(ctx, a.currentUser())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.printf("No milestones yet, keep going")
		return nil
	}
	for _, m := range list {
		a.printf("%3d days  earned %s", m.Days, m.EarnedAt.Local().Format("2006-01-02"))
	}
	return nil
}
