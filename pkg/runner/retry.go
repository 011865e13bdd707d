package runner

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
)

// RetryPolicy bounds a readiness poll: up to MaxAttempts checks spaced
// Interval apart.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

// ErrNotReady is returned when a readiness poll exhausts its attempts.
var ErrNotReady = errors.New("not ready")

// WaitReady polls ready until it reports true, making exactly
// policy.MaxAttempts checks before giving up. It returns the number of
// checks performed. A cancelled context stops the poll between attempts.
func WaitReady(ctx context.Context, policy RetryPolicy, ready func() bool) (int, error) {
	attempts := 0
	check := func() error {
		attempts++
		if ready() {
			return nil
		}
		return ErrNotReady
	}

	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if maxAttempts == 1 {
		if err := check(); err != nil {
			return attempts, err
		}
		return attempts, nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Interval), uint64(maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(check, b); err != nil {
		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}
		return attempts, err
	}
	return attempts, nil
}

// RetryOp retries op with a constant backoff until it succeeds or the
// attempts are exhausted. Used for teardown paths where a FUSE unmount can
// transiently report busy.
func RetryOp(ctx context.Context, policy RetryPolicy, op func() error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if maxAttempts == 1 {
		return op()
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Interval), uint64(maxAttempts-1)),
		ctx,
	)
	return backoff.Retry(op, b)
}
