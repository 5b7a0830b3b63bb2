package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "xscraper/pkg/errors"
)

func TestExponentialBackoffGrowth(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
	}

	assert.Equal(t, time.Duration(0), eb.NextDelay(0))
	assert.Equal(t, time.Second, eb.NextDelay(1))
	assert.Equal(t, 2*time.Second, eb.NextDelay(2))
	assert.Equal(t, 4*time.Second, eb.NextDelay(3))
	assert.Equal(t, 8*time.Second, eb.NextDelay(4))

	// Capped at MaxDelay.
	assert.Equal(t, 10*time.Second, eb.NextDelay(5))
	assert.Equal(t, 10*time.Second, eb.NextDelay(20))
}

func TestExponentialBackoffNonDecreasing(t *testing.T) {
	eb := DefaultExponentialBackoff()
	eb.JitterFactor = 0

	var prev time.Duration
	for k := 1; k <= 12; k++ {
		d := eb.NextDelay(k)
		assert.GreaterOrEqual(t, d, prev, "delay must be non-decreasing in attempt")
		prev = d
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}

	for i := 0; i < 50; i++ {
		d := eb.NextDelay(2)
		assert.GreaterOrEqual(t, d, 1600*time.Millisecond)
		assert.LessOrEqual(t, d, 2400*time.Millisecond)
	}
}

func TestConstantBackoff(t *testing.T) {
	cb := &ConstantBackoff{Delay: 3 * time.Second}
	assert.Equal(t, 3*time.Second, cb.NextDelay(1))
	assert.Equal(t, 3*time.Second, cb.NextDelay(9))
	assert.Equal(t, time.Duration(0), cb.NextDelay(0))
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.KindNetwork, 0, "transient")
		}
		return nil
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errs.New(errs.KindServer, 503, "unavailable")
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "max retry attempts")
}

func TestDoNonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	authErr := errs.New(errs.KindAuth, 401, "bad credentials")
	err := Do(context.Background(), func() error {
		calls++
		return authErr
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, authErr)
}

func TestDoCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return errs.New(errs.KindNetwork, 0, "transient")
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
		RetryIf:     DefaultRetryIf,
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(context.Background(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errs.New(errs.KindNetwork, 0, "transient")
		}
		return "payload", nil
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
	})

	require.NoError(t, err)
	assert.Equal(t, "payload", result)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.True(t, DefaultRetryIf(errs.New(errs.KindNetwork, 0, "x")))
	assert.True(t, DefaultRetryIf(errs.New(errs.KindRateLimit, 429, "x")))
	assert.False(t, DefaultRetryIf(errs.New(errs.KindAuth, 401, "x")))
	// Errors with a status code follow the per-code table, not the kind.
	assert.True(t, DefaultRetryIf(errs.New(errs.KindServer, 503, "x")))
	assert.False(t, DefaultRetryIf(errs.New(errs.KindUnknown, 404, "x")))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(fmt.Errorf("untyped")))
}

func TestOnRetryCallback(t *testing.T) {
	var attempts []int
	_ = Do(context.Background(), func() error {
		return errs.New(errs.KindNetwork, 0, "transient")
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
		},
	})

	assert.Equal(t, []int{1, 2, 3}, attempts)
}
