package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitReadyImmediate(t *testing.T) {
	attempts, err := WaitReady(context.Background(), RetryPolicy{MaxAttempts: 5, Interval: time.Millisecond}, func() bool {
		return true
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWaitReadyEventually(t *testing.T) {
	checks := 0
	attempts, err := WaitReady(context.Background(), RetryPolicy{MaxAttempts: 5, Interval: time.Millisecond}, func() bool {
		checks++
		return checks >= 3
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, checks)
}

func TestWaitReadyExhaustsExactly(t *testing.T) {
	checks := 0
	attempts, err := WaitReady(context.Background(), RetryPolicy{MaxAttempts: 5, Interval: time.Millisecond}, func() bool {
		checks++
		return false
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.Equal(t, 5, attempts)
	assert.Equal(t, 5, checks)
}

func TestWaitReadySingleAttempt(t *testing.T) {
	checks := 0
	attempts, err := WaitReady(context.Background(), RetryPolicy{MaxAttempts: 1, Interval: time.Millisecond}, func() bool {
		checks++
		return false
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, checks)
}

func TestWaitReadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	checks := 0
	attempts, err := WaitReady(ctx, RetryPolicy{MaxAttempts: 100, Interval: 10 * time.Millisecond}, func() bool {
		checks++
		if checks == 2 {
			cancel()
		}
		return false
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, attempts, 100)
}

func TestRetryOpSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := RetryOp(context.Background(), RetryPolicy{MaxAttempts: 4, Interval: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryOpExhausts(t *testing.T) {
	calls := 0
	err := RetryOp(context.Background(), RetryPolicy{MaxAttempts: 3, Interval: time.Millisecond}, func() error {
		calls++
		return errors.New("busy")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}
