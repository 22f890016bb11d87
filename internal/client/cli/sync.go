package cli

import (
	"context"
	"time"
)

// Sync triggers a drain right away instead of waiting for the interval.
func (a *App) Sync(ctx context.Context) error {
	if !a.monitor.Online() {
		a.printf("Offline, changes will sync when the server is reachable")
		return nil
	}
	a.engine.Trigger()

	// Give the drain a moment so the follow-up status is meaningful.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if !a.engine.Draining() {
			if n, err := a.store.PendingCount(ctx); err == nil && n == 0 {
				a.printf("Everything is synced")
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	n, err := a.store.PendingCount(ctx)
	if err != nil {
		return err
	}
	a.printf("%d change(s) still waiting to sync", n)
	return nil
}

// Status prints connectivity and the number of unsynced changes.
func (a *App) Status(ctx context.Context) error {
	state := "offline"
	if a.monitor.Online() {
		state = "online"
	}
	n, err := a.store.PendingCount(ctx)
	if err != nil {
		return err
	}
	a.printf("Server: %s, pending changes: %d", state, n)
	return nil
}

// Retry re-queues a record stuck in error state after a terminal failure.
func (a *App) Retry(ctx context.Context) error {
	table, err := GetSimpleText(a.reader, "Table (journal_entries, daily_checkins, step_work, achievements)", a.out)
	if err != nil {
		return err
	}
	id, err := GetSimpleText(a.reader, "Record id", a.out)
	if err != nil {
		return err
	}

	if err := a.store.RetryRecord(ctx, table, id); err != nil {
		return err
	}
	a.engine.Trigger()
	a.printf("Queued %s for another attempt", id)
	return nil
}
