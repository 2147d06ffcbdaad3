package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_DelayDoublesWithoutJitter(t *testing.T) {
	b := Backoff{Attempts: 6, Base: 100 * time.Millisecond, Multiplier: 2}

	want := []time.Duration{100, 200, 400, 800, 1600}
	for i, w := range want {
		assert.Equal(t, w*time.Millisecond, b.Delay(i), "attempt %d", i)
	}
}

func TestBackoff_DelayCappedByMax(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 3 * time.Second, Multiplier: 10}
	assert.Equal(t, 3*time.Second, b.Delay(4))
}

func TestRetry_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Backoff{Attempts: 5, Base: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("busy"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonRetryableReturnsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("bad request")
	err := Retry(context.Background(), Backoff{Attempts: 5, Base: time.Millisecond}, func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryValue_ExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	b := Backoff{
		Attempts:  4,
		Base:      time.Millisecond,
		Retryable: func(error) bool { return true },
		OnRetry:   func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) },
	}
	v, err := RetryValue(context.Background(), b, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("empty")
	})
	require.Error(t, err)
	assert.Equal(t, 0, v)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3}, retried)
}

func TestRetry_ContextCancelStopsSleeping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	b := Backoff{Attempts: 10, Base: time.Hour, Retryable: func(error) bool { return true }}
	err := Retry(ctx, b, func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransientStatus(t *testing.T) {
	assert.True(t, IsTransientStatus(429))
	assert.True(t, IsTransientStatus(503))
	assert.False(t, IsTransientStatus(501))
	assert.False(t, IsTransientStatus(404))
}
