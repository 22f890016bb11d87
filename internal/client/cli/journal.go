package cli

import (
	"context"
	"time"

	"github.com/stepwise-app/stepwise/internal/client/models"
)

// AddEntry records a new journal entry.
func (a *App) AddEntry(ctx context.Context) error {
	user := a.currentUser()
	key, err := a.keys.GetKey(ctx, user)
	if err != nil {
		return err
	}

	mood, err := GetInt(a.reader, "Mood", 1, 10, a.out)
	if err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "What's on your mind?", a.out)
	if err != nil {
		return err
	}
	var body *string
	if text != "" {
		body = &text
	}

	e, err := a.store.CreateJournalEntry(ctx, key, user, mood, body)
	if err != nil {
		return err
	}
	a.engine.Trigger()
	a.printf("Saved entry %s", e.ID)
	return nil
}

// ListEntries prints the journal, newest first, bodies omitted.
func (a *App) ListEntries(ctx context.Context) error {
	entries, err := a.store.ListJournalEntries(ctx, a.currentUser())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.printf("No entries yet")
		return nil
	}
	for _, e := range entries {
		a.printf("%s  %s  mood %2d  [%s]",
			e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Mood,
			a.syncLabel(ctx, models.TableJournalEntries, e.ID, e.SyncStatus))
	}
	return nil
}

// ShowEntry prints one entry with its decrypted body.
func (a *App) ShowEntry(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Entry id", a.out)
	if err != nil {
		return err
	}
	key, err := a.keys.GetKey(ctx, a.currentUser())
	if err != nil {
		return err
	}

	e, body, err := a.store.GetJournalEntry(ctx, key, id)
	if err != nil {
		return err
	}
	a.printf("Entry %s  %s  mood %d", e.ID, e.CreatedAt.Local().Format(time.RFC822), e.Mood)
	if body != nil {
		a.printf("%s", *body)
	}
	return nil
}

// DeleteEntry removes an entry locally and queues the remote delete.
func (a *App) DeleteEntry(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Entry id", a.out)
	if err != nil {
		return err
	}
	if err := a.store.DeleteJournalEntry(ctx, id); err != nil {
		return err
	}
	a.engine.Trigger()
	a.printf("Deleted %s", id)
	return nil
}

// syncLabel renders a record's sync state, attaching the stored failure
// reason for errored records.
func (a *App) syncLabel(ctx context.Context, table, id string, status models.SyncStatus) string {
	if status == models.SyncStatusError {
		if item, err := a.store.QueueItemForRecord(ctx, table, id); err == nil && item != nil && item.LastError != nil {
			return "error: " + *item.LastError
		}
	}
	return string(status)
}
