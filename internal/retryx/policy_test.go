package retryx

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stepwise-app/stepwise/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldRetry_Classification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"nil error", nil, 1, false},
		{"transient first attempt", common.ErrTransient, 1, true},
		{"transient second attempt", common.ErrTransient, 2, true},
		{"transient last attempt", common.ErrTransient, 3, false},
		{"wrapped transient", fmt.Errorf("upsert: %w", common.ErrTransient), 1, true},
		{"timeout is retryable", common.ErrTimeout, 1, true},
		{"validation is terminal", common.ErrValidation, 1, false},
		{"conflict is terminal", common.ErrConflict, 1, false},
		{"auth is terminal", common.ErrUnauthorized, 1, false},
		{"unknown is terminal", errors.New("weird"), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRetry(tt.err, tt.attempt, 3))
		})
	}
}

func TestDelayFor_ExponentialAndCapped(t *testing.T) {
	base := 1 * time.Second
	cap := 30 * time.Second

	assert.Equal(t, 1*time.Second, DelayFor(1, base, 2, cap))
	assert.Equal(t, 2*time.Second, DelayFor(2, base, 2, cap))
	assert.Equal(t, 4*time.Second, DelayFor(3, base, 2, cap))
	assert.Equal(t, 16*time.Second, DelayFor(5, base, 2, cap))
	assert.Equal(t, cap, DelayFor(6, base, 2, cap))
	assert.Equal(t, cap, DelayFor(50, base, 2, cap))
}

func TestDelayFor_Monotone(t *testing.T) {
	p := DefaultPolicy()
	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		d := p.DelayFor(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, p.Cap, "attempt %d", attempt)
		prev = d
	}
}

func TestDelayFor_DegenerateAttempt(t *testing.T) {
	assert.Equal(t, DefaultBase, DelayFor(0, DefaultBase, 2, DefaultCap))
	assert.Equal(t, DefaultBase, DelayFor(-3, DefaultBase, 2, DefaultCap))
}

func TestWithTimeout_CompletesInTime(t *testing.T) {
	err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestWithTimeout_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}

func TestWithTimeout_DeadlineExceeded(t *testing.T) {
	start := time.Now()
	err := WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	require.ErrorIs(t, err, common.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, Retryable(err), "timeouts must be retryable")
}

func TestWithTimeout_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithTimeout(ctx, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, Retryable(err))
}
