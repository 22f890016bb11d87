package syncer

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-app/stepwise/internal/client/models"
	"github.com/stepwise-app/stepwise/internal/common"
	"github.com/stepwise-app/stepwise/internal/logging"
	"github.com/stepwise-app/stepwise/internal/retryx"
)

// memStorage mimics the local store's queue semantics in memory.
type memStorage struct {
	mu      sync.Mutex
	nextID  int64
	items   []models.QueueItem
	records map[string]*models.JournalEntry

	lastDelay time.Duration
}

func newMemStorage() *memStorage {
	return &memStorage{records: map[string]*models.JournalEntry{}}
}

func (m *memStorage) addRecord(e *models.JournalEntry, op models.Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[e.ID] = e
	m.nextID++
	m.items = append(m.items, models.QueueItem{
		ID:        m.nextID,
		TableName: e.Table(),
		RecordID:  e.ID,
		Op:        op,
		CreatedAt: time.Now().Add(time.Duration(m.nextID)), // stable FIFO order
		State:     models.QueueStateActive,
	})
}

func (m *memStorage) record(id string) models.JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.records[id]
}

func (m *memStorage) item(recordID string) (models.QueueItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.RecordID == recordID {
			return it, true
		}
	}
	return models.QueueItem{}, false
}

func (m *memStorage) DequeueBatch(ctx context.Context, limit int) ([]models.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []models.QueueItem
	for _, it := range m.items {
		if it.State == models.QueueStateActive && !it.NextAttemptAt.After(now) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStorage) LoadSyncable(ctx context.Context, table, recordID string) (models.Syncable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[recordID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStorage) CompleteUpsert(ctx context.Context, item models.QueueItem, remoteID string, asOf time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.records[item.RecordID]
	if e.UpdatedAt.After(asOf) {
		return nil
	}
	e.SyncStatus = models.SyncStatusSynced
	e.RemoteID = &remoteID
	m.removeLocked(item.ID)
	return nil
}

func (m *memStorage) CompleteDelete(ctx context.Context, item models.QueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, item.RecordID)
	m.removeLocked(item.ID)
	return nil
}

func (m *memStorage) RescheduleItem(ctx context.Context, item models.QueueItem, delay time.Duration, cause string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastDelay = delay
	for i := range m.items {
		if m.items[i].ID == item.ID {
			m.items[i].RetryCount++
			m.items[i].NextAttemptAt = time.Now().Add(delay)
			m.items[i].LastError = &cause
		}
	}
	return nil
}

func (m *memStorage) FailItem(ctx context.Context, item models.QueueItem, cause string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[item.RecordID].SyncStatus = models.SyncStatusError
	for i := range m.items {
		if m.items[i].ID == item.ID {
			m.items[i].State = models.QueueStateFailed
			m.items[i].LastError = &cause
		}
	}
	return nil
}

func (m *memStorage) PendingCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.items {
		if it.State == models.QueueStateActive {
			n++
		}
	}
	return n, nil
}

func (m *memStorage) removeLocked(id int64) {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return
		}
	}
}

type fakeRemote struct {
	mu        sync.Mutex
	upserts   []string
	deletes   []string
	upsertErr []error
	nextID    int
	onUpsert  func()
}

func (f *fakeRemote) Upsert(ctx context.Context, table, recordID string, row map[string]any) (string, error) {
	f.mu.Lock()
	f.upserts = append(f.upserts, recordID)
	var err error
	if len(f.upsertErr) > 0 {
		err, f.upsertErr = f.upsertErr[0], f.upsertErr[1:]
	}
	hook := f.onUpsert
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.nextID++
	id := "r-" + strconv.Itoa(f.nextID)
	f.mu.Unlock()
	return id, nil
}

func (f *fakeRemote) Delete(ctx context.Context, table, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, recordID)
	return nil
}

func (f *fakeRemote) Ping(ctx context.Context) error { return nil }

func (f *fakeRemote) upsertCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.upserts...)
}

func (f *fakeRemote) deleteCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

type fakeNet struct {
	online atomic.Bool
	events chan bool
}

func newFakeNet(online bool) *fakeNet {
	n := &fakeNet{events: make(chan bool, 1)}
	n.online.Store(online)
	return n
}

func (n *fakeNet) Online() bool        { return n.online.Load() }
func (n *fakeNet) Events() <-chan bool { return n.events }

func entry(id string, remoteID *string) *models.JournalEntry {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.JournalEntry{
		ID: id, UserID: "u1", Mood: 5,
		CreatedAt: now, UpdatedAt: now,
		SyncStatus: models.SyncStatusPending,
		RemoteID:   remoteID,
	}
}

func newTestEngine(st Storage, rm *fakeRemote, net Connectivity) *Engine {
	return NewEngine(st, rm, net, Options{
		Interval:       time.Hour,
		RequestTimeout: time.Second,
		BatchSize:      10,
		Policy:         retryx.DefaultPolicy(),
	}, logging.NewNopLogger())
}

func TestEngine_DrainSyncsPendingInsert(t *testing.T) {
	st := newMemStorage()
	st.addRecord(entry("a", nil), models.OpInsert)
	rm := &fakeRemote{}
	e := newTestEngine(st, rm, newFakeNet(true))

	require.NoError(t, e.drainOnce(context.Background()))

	got := st.record("a")
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	require.NotNil(t, got.RemoteID)
	assert.Equal(t, "r-1", *got.RemoteID)

	n, err := st.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEngine_OfflineSkipsDrain(t *testing.T) {
	st := newMemStorage()
	st.addRecord(entry("a", nil), models.OpInsert)
	rm := &fakeRemote{}
	e := newTestEngine(st, rm, newFakeNet(false))

	require.NoError(t, e.drainOnce(context.Background()))

	assert.Empty(t, rm.upsertCalls())
	assert.Equal(t, models.SyncStatusPending, st.record("a").SyncStatus)
}

func TestEngine_FIFOAcrossRecords(t *testing.T) {
	st := newMemStorage()
	st.addRecord(entry("first", nil), models.OpInsert)
	st.addRecord(entry("second", nil), models.OpInsert)
	rm := &fakeRemote{}
	e := newTestEngine(st, rm, newFakeNet(true))

	require.NoError(t, e.drainOnce(context.Background()))
	assert.Equal(t, []string{"first", "second"}, rm.upsertCalls())
}

func TestEngine_TransientFailureReschedules(t *testing.T) {
	st := newMemStorage()
	st.addRecord(entry("a", nil), models.OpInsert)
	rm := &fakeRemote{upsertErr: []error{common.ErrTransient}}
	e := newTestEngine(st, rm, newFakeNet(true))

	require.NoError(t, e.drainOnce(context.Background()))

	it, ok := st.item("a")
	require.True(t, ok)
	assert.Equal(t, models.QueueStateActive, it.State)
	assert.Equal(t, 1, it.RetryCount)
	require.NotNil(t, it.LastError)
	assert.Equal(t, 1*time.Second, st.lastDelay)
	// Record stays pending while retries remain.
	assert.Equal(t, models.SyncStatusPending, st.record("a").SyncStatus)
}

func TestEngine_BackoffGrowsWithAttempts(t *testing.T) {
	st := newMemStorage()
	st.addRecord(entry("a", nil), models.OpInsert)
	st.mu.Lock()
	st.items[0].RetryCount = 1
	st.mu.Unlock()
	rm := &fakeRemote{upsertErr: []error{common.ErrTimeout}}
	e := newTestEngine(st, rm, newFakeNet(true))

	require.NoError(t, e.drainOnce(context.Background()))
	assert.Equal(t, 2*time.Second, st.lastDelay)
}

func TestEngine_ExhaustedRetriesFailTerminally(t *testing.T) {
	st := newMemStorage()
	st.addRecord(entry("a", nil), models.OpInsert)
	st.mu.Lock()
	st.items[0].RetryCount = 2 // two attempts already burned
	st.mu.Unlock()
	rm := &fakeRemote{upsertErr: []error{common.ErrTransient}}
	e := newTestEngine(st, rm, newFakeNet(true))

	require.NoError(t, e.drainOnce(context.Background()))

	it, ok := st.item("a")
	require.True(t, ok)
	assert.Equal(t, models.QueueStateFailed, it.State)
	require.NotNil(t, it.LastError)
	assert.Equal(t, models.SyncStatusError, st.record("a").SyncStatus)
}

func TestEngine_ValidationFailsImmediately(t *testing.T) {
	st := newMemStorage()
	st.addRecord(entry("a", nil), models.OpInsert)
	rm := &fakeRemote{upsertErr: []error{common.ErrValidation}}
	e := newTestEngine(st, rm, newFakeNet(true))

	require.NoError(t, e.drainOnce(context.Background()))

	it, _ := st.item("a")
	assert.Equal(t, models.QueueStateFailed, it.State)
	assert.Equal(t, models.SyncStatusError, st.record("a").SyncStatus)
}

func TestEngine_DeleteNeverSyncedSkipsRemote(t *testing.T) {
	st := newMemStorage()
	st.addRecord(entry("a", nil), models.OpDelete)
	rm := &fakeRemote{}
	e := newTestEngine(st, rm, newFakeNet(true))

	require.NoError(t, e.drainOnce(context.Background()))

	assert.Empty(t, rm.deleteCalls())
	_, ok := st.item("a")
	assert.False(t, ok)
}

func TestEngine_DeleteSyncedCallsRemote(t *testing.T) {
	st := newMemStorage()
	r1 := "r-1"
	st.addRecord(entry("a", &r1), models.OpDelete)
	rm := &fakeRemote{}
	e := newTestEngine(st, rm, newFakeNet(true))

	require.NoError(t, e.drainOnce(context.Background()))

	assert.Equal(t, []string{"a"}, rm.deleteCalls())
	st.mu.Lock()
	_, exists := st.records["a"]
	st.mu.Unlock()
	assert.False(t, exists)
}

func TestEngine_MidFlightEditKeepsItem(t *testing.T) {
	st := newMemStorage()
	st.addRecord(entry("a", nil), models.OpInsert)
	rm := &fakeRemote{}
	rm.onUpsert = func() {
		st.mu.Lock()
		st.records["a"].Mood = 9
		st.records["a"].UpdatedAt = st.records["a"].UpdatedAt.Add(5 * time.Second)
		st.mu.Unlock()
	}
	e := newTestEngine(st, rm, newFakeNet(true))

	require.NoError(t, e.drainOnce(context.Background()))

	// The ack did not clobber the newer edit and the item awaits re-send.
	got := st.record("a")
	assert.Equal(t, models.SyncStatusPending, got.SyncStatus)
	it, ok := st.item("a")
	require.True(t, ok)
	assert.Equal(t, models.QueueStateActive, it.State)
	assert.Len(t, rm.upsertCalls(), 1)
}

type corruptStorage struct{ *memStorage }

func (corruptStorage) DequeueBatch(ctx context.Context, limit int) ([]models.QueueItem, error) {
	return nil, common.ErrQueueCorrupt
}

func TestEngine_QueueCorruptionAbortsDrain(t *testing.T) {
	e := newTestEngine(corruptStorage{newMemStorage()}, &fakeRemote{}, newFakeNet(true))
	err := e.drainOnce(context.Background())
	assert.ErrorIs(t, err, common.ErrQueueCorrupt)
}

func TestEngine_TriggerDrainsAndStopWaits(t *testing.T) {
	st := newMemStorage()
	st.addRecord(entry("a", nil), models.OpInsert)
	rm := &fakeRemote{}
	e := newTestEngine(st, rm, newFakeNet(true))

	e.Start(context.Background())
	e.Trigger()

	require.Eventually(t, func() bool {
		n, err := st.PendingCount(context.Background())
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)

	e.Stop()
	assert.False(t, e.Draining())
}

func TestEngine_OnlineEventTriggersDrain(t *testing.T) {
	st := newMemStorage()
	st.addRecord(entry("a", nil), models.OpInsert)
	rm := &fakeRemote{}
	net := newFakeNet(false)
	e := newTestEngine(st, rm, net)

	e.Start(context.Background())
	defer e.Stop()

	// Still offline: nothing moves.
	e.Trigger()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rm.upsertCalls())

	net.online.Store(true)
	net.events <- true

	require.Eventually(t, func() bool {
		return st.record("a").SyncStatus == models.SyncStatusSynced
	}, 2*time.Second, 10*time.Millisecond)
}
