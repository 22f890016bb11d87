// Package syncer contains the background engine that drains the durable sync
// queue against the remote API.
//
// One engine goroutine processes the queue, so items for the same record are
// never in flight concurrently and per-record order follows queue order.
// Drains are triggered by an interval tick, by an offline->online transition
// and by explicit Trigger calls from record mutations; overlapping triggers
// coalesce into the drain already running.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stepwise-app/stepwise/internal/client/models"
	"github.com/stepwise-app/stepwise/internal/client/remote"
	"github.com/stepwise-app/stepwise/internal/common"
	"github.com/stepwise-app/stepwise/internal/logging"
	"github.com/stepwise-app/stepwise/internal/retryx"
)

// Storage is the slice of the local store the engine drives.
type Storage interface {
	DequeueBatch(ctx context.Context, limit int) ([]models.QueueItem, error)
	LoadSyncable(ctx context.Context, table, recordID string) (models.Syncable, error)
	CompleteUpsert(ctx context.Context, item models.QueueItem, remoteID string, asOf time.Time) error
	CompleteDelete(ctx context.Context, item models.QueueItem) error
	RescheduleItem(ctx context.Context, item models.QueueItem, delay time.Duration, cause string) error
	FailItem(ctx context.Context, item models.QueueItem, cause string) error
	PendingCount(ctx context.Context) (int, error)
}

// Connectivity reports backend reachability.
type Connectivity interface {
	Online() bool
	Events() <-chan bool
}

// Options tunes engine behavior; zero values fall back to defaults.
type Options struct {
	// Interval between periodic drains.
	Interval time.Duration

	// RequestTimeout bounds a single remote call.
	RequestTimeout time.Duration

	// BatchSize limits how many items one dequeue pulls.
	BatchSize int

	// Policy governs retry/backoff for failed items.
	Policy retryx.Policy
}

const (
	defaultInterval       = 30 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultBatchSize      = 50
)

func (o *Options) fill() {
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.Policy.MaxAttempts == 0 {
		o.Policy = retryx.DefaultPolicy()
	}
}

// Engine drains the sync queue. Construct with NewEngine, start with Start,
// stop with Stop. Stop waits for the in-flight drain to finish, so a caller
// may wipe the encryption key immediately after it returns.
type Engine struct {
	store   Storage
	remote  remote.API
	net     Connectivity
	opts    Options
	log     logging.Logger
	trigger chan struct{}

	draining atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewEngine(store Storage, api remote.API, net Connectivity, opts Options, log logging.Logger) *Engine {
	opts.fill()
	return &Engine{
		store:   store,
		remote:  api,
		net:     net,
		opts:    opts,
		log:     log,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests a drain soon. Non-blocking; a request while a drain is
// already pending or running is absorbed.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Draining reports whether a drain pass is currently running.
func (e *Engine) Draining() bool {
	return e.draining.Load()
}

// Start launches the worker goroutine.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx)
	}()
}

// Stop cancels the worker and blocks until it has fully exited.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context) {
	t := time.NewTicker(e.opts.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		case <-e.trigger:
		case online := <-e.net.Events():
			if !online {
				continue
			}
		}
		if err := e.drainOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Error(ctx, "drain aborted", "error", err)
		}
	}
}

// drainOnce pushes queue items until the ready queue is empty or an abortive
// error occurs. Skipped without touching the queue while offline.
func (e *Engine) drainOnce(ctx context.Context) error {
	if !e.net.Online() {
		return nil
	}
	e.draining.Store(true)
	defer e.draining.Store(false)

	// Items deliberately left active this pass (mid-flight edits). If a
	// batch contains only those, the pass is done.
	kept := make(map[int64]bool)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		batch, err := e.store.DequeueBatch(ctx, e.opts.BatchSize)
		if err != nil {
			if errors.Is(err, common.ErrQueueCorrupt) {
				return fmt.Errorf("sync queue integrity check failed: %w", err)
			}
			return err
		}

		progressed := false
		for _, item := range batch {
			if kept[item.ID] {
				continue
			}
			progressed = true
			keep, err := e.processItem(ctx, item)
			if err != nil {
				return err
			}
			if keep {
				kept[item.ID] = true
			}
		}
		if !progressed {
			return nil
		}
		if !e.net.Online() {
			return nil
		}
	}
}

// processItem handles one queue item end to end. The returned bool asks the
// drain loop to leave the item active without reprocessing it this pass.
// The error return is reserved for abortive conditions (cancellation, local
// storage failure); remote failures are booked on the item instead.
func (e *Engine) processItem(ctx context.Context, item models.QueueItem) (bool, error) {
	rec, err := e.store.LoadSyncable(ctx, item.TableName, item.RecordID)
	if errors.Is(err, common.ErrNotFound) {
		// Orphaned reference; nothing to send, drop the item.
		e.log.Warn(ctx, "queue item references missing record",
			"table", item.TableName, "record_id", item.RecordID)
		return false, e.store.CompleteDelete(ctx, item)
	}
	if err != nil {
		return false, err
	}

	if item.Op == models.OpDelete {
		return false, e.processDelete(ctx, item, rec)
	}
	return e.processUpsert(ctx, item, rec)
}

func (e *Engine) processDelete(ctx context.Context, item models.QueueItem, rec models.Syncable) error {
	// A record the remote never saw needs no remote delete.
	if rec.Remote() == nil {
		return e.store.CompleteDelete(ctx, item)
	}

	err := retryx.WithTimeout(ctx, e.opts.RequestTimeout, func(ctx context.Context) error {
		return e.remote.Delete(ctx, item.TableName, item.RecordID)
	})
	if err != nil {
		return e.bookFailure(ctx, item, err)
	}
	return e.store.CompleteDelete(ctx, item)
}

func (e *Engine) processUpsert(ctx context.Context, item models.QueueItem, rec models.Syncable) (bool, error) {
	// Snapshot the modification time before sending: an edit landing after
	// this point must survive the acknowledgement.
	asOf := rec.ModifiedAt()
	row := rec.Row()

	var remoteID string
	err := retryx.WithTimeout(ctx, e.opts.RequestTimeout, func(ctx context.Context) error {
		var err error
		remoteID, err = e.remote.Upsert(ctx, item.TableName, item.RecordID, row)
		return err
	})
	if err != nil {
		return false, e.bookFailure(ctx, item, err)
	}

	if err := e.store.CompleteUpsert(ctx, item, remoteID, asOf); err != nil {
		return false, err
	}

	// If the record was edited mid-flight the item is still active; skip it
	// for the rest of this pass and let the next drain send the new content.
	current, err := e.store.LoadSyncable(ctx, item.TableName, item.RecordID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return false, err
	}
	keep := err == nil && current.ModifiedAt().After(asOf)
	return keep, nil
}

// bookFailure records a remote failure on the item: reschedule with backoff
// while the policy allows, otherwise fail terminally. Cancellation of the
// engine context aborts the drain and leaves the item untouched.
func (e *Engine) bookFailure(ctx context.Context, item models.QueueItem, cause error) error {
	if errors.Is(cause, context.Canceled) || ctx.Err() != nil {
		return context.Canceled
	}

	attempt := item.RetryCount + 1
	if e.opts.Policy.ShouldRetry(cause, attempt) {
		delay := e.opts.Policy.DelayFor(attempt)
		e.log.Debug(ctx, "sync attempt failed, rescheduling",
			"table", item.TableName, "record_id", item.RecordID,
			"attempt", attempt, "delay", delay, "error", cause)
		return e.store.RescheduleItem(ctx, item, delay, cause.Error())
	}

	e.log.Warn(ctx, "sync failed terminally",
		"table", item.TableName, "record_id", item.RecordID,
		"attempt", attempt, "error", cause)
	return e.store.FailItem(ctx, item, cause.Error())
}
