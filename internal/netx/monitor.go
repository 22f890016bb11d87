// Package netx provides backend reachability tracking for the sync engine.
package netx

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/stepwise-app/stepwise/internal/logging"
)

// Pinger probes whether the backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor polls a Pinger and publishes connectivity transitions. It starts
// pessimistic: the app is offline until the first successful probe.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger

	online atomic.Bool
	events chan bool
}

// NewMonitor builds a Monitor probing every interval. Each probe is bounded
// by timeout.
func NewMonitor(pinger Pinger, interval, timeout time.Duration, log logging.Logger) *Monitor {
	return &Monitor{
		pinger:   pinger,
		interval: interval,
		timeout:  timeout,
		log:      log,
		events:   make(chan bool, 1),
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Events delivers connectivity transitions (true on offline->online, false
// on online->offline). The channel holds one pending event; when a consumer
// lags, intermediate flaps collapse into the latest state.
func (m *Monitor) Events() <-chan bool {
	return m.events
}

// Run probes until ctx is cancelled. The first probe fires immediately so
// startup does not wait a full interval to come online.
func (m *Monitor) Run(ctx context.Context) {
	m.probe(ctx)

	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.pinger.Ping(pctx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	now := err == nil
	if m.online.Swap(now) == now {
		return
	}

	if now {
		m.log.Info(ctx, "backend reachable")
	} else {
		m.log.Info(ctx, "backend unreachable", "error", err)
	}

	// Replace a stale undelivered event rather than blocking.
	select {
	case <-m.events:
	default:
	}
	m.events <- now
}
