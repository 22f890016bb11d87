// Package retryx holds the pure retry/backoff decision functions used by the
// sync engine and reusable by any network operation.
//
// Retryability is decided from typed error classification (errors.Is against
// common sentinels), never from matching human-readable messages.
package retryx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stepwise-app/stepwise/internal/common"
)

// Default policy values.
const (
	DefaultMaxAttempts = 3
	DefaultBase        = 1 * time.Second
	DefaultFactor      = 2.0
	DefaultCap         = 30 * time.Second
)

// Policy bundles the retry parameters for one class of operation.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      float64
	Cap         time.Duration
}

// DefaultPolicy returns the standard sync policy: 3 attempts, 1s base,
// factor 2, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Base:        DefaultBase,
		Factor:      DefaultFactor,
		Cap:         DefaultCap,
	}
}

func (p Policy) ShouldRetry(err error, attempt int) bool {
	return ShouldRetry(err, attempt, p.MaxAttempts)
}

func (p Policy) DelayFor(attempt int) time.Duration {
	return DelayFor(attempt, p.Base, p.Factor, p.Cap)
}

// Retryable reports whether err signals a transient condition (network
// unreachable, remote busy, timeout). Validation, conflict and auth failures
// are terminal and surface immediately.
func Retryable(err error) bool {
	return errors.Is(err, common.ErrTransient) || errors.Is(err, common.ErrTimeout)
}

// ShouldRetry decides whether the attempt-th try that failed with err should
// be retried. attempt counts from 1, so attempts never exceed maxAttempts.
func ShouldRetry(err error, attempt int, maxAttempts int) bool {
	if err == nil {
		return false
	}
	if !Retryable(err) {
		return false
	}
	return attempt < maxAttempts
}

// DelayFor computes the backoff delay before the (attempt+1)-th try:
// min(base * factor^(attempt-1), cap). The result is monotonically
// non-decreasing in attempt and never exceeds cap.
func DelayFor(attempt int, base time.Duration, factor float64, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(base)
	for i := 1; i < attempt; i++ {
		d *= factor
		if d >= float64(cap) {
			return cap
		}
	}
	if d > float64(cap) {
		return cap
	}
	return time.Duration(d)
}

// WithTimeout runs op under the given deadline and race-cancels it when the
// deadline is exceeded, surfacing common.ErrTimeout (which is itself
// retryable). Cancellation of the parent context is passed through as-is.
func WithTimeout(ctx context.Context, d time.Duration, op func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(ctx) }()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", common.ErrTimeout, err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return common.ErrTimeout
		}
		return ctx.Err()
	}
}
