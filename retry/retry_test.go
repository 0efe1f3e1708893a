package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func fast(retries int) Config {
	return Config{MaxRetries: retries, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, Multiplier: 2, Jitter: 0.1}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	var attempts []int
	err := Do(context.Background(), fast(3), nil, func(_ context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 2 {
			return status.Error(codes.Unavailable, "connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, attempts)
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	unavailable := status.Error(codes.Unavailable, "down")
	err := Do(context.Background(), fast(2), nil, func(context.Context, int) error {
		calls++
		return unavailable
	})
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, unavailable)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	internal := status.Error(codes.Internal, "pivot limit")
	err := Do(context.Background(), fast(5), nil, func(context.Context, int) error {
		calls++
		return internal
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, internal)
}

func TestDoZeroRetriesReturnsErrorUnwrapped(t *testing.T) {
	boom := errors.New("boom")
	err := Do(context.Background(), Config{}, func(error) bool { return true }, func(context.Context, int) error { return boom })
	assert.Same(t, boom, err)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fast(10)
	cfg.InitialBackoff = time.Hour

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, nil, func(context.Context, int) error {
			return status.Error(codes.ResourceExhausted, "rate limited")
		})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(status.Error(codes.Unavailable, "")))
	assert.True(t, Retryable(status.Error(codes.ResourceExhausted, "")))
	assert.False(t, Retryable(status.Error(codes.Internal, "")))
	assert.False(t, Retryable(status.Error(codes.DeadlineExceeded, "")))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestJitterBounds(t *testing.T) {
	for range 100 {
		d := jitter(100*time.Millisecond, 0.1)
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
	assert.Equal(t, time.Second, jitter(time.Second, 0))
}
