package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/metrics"
)

var errMiss = errors.New("miss")

func TestDisabledBreakerPassesThrough(t *testing.T) {
	b := NewBreaker(Settings{Name: "off"}, nil)
	for range 20 {
		_, err := b.Execute(func() (any, error) { return nil, errors.New("boom") })
		require.EqualError(t, err, "boom")
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())

	var nilBreaker *Breaker
	v, err := ExecuteTyped(nilBreaker, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestBreakerTripsOnConsecutiveFailures(t *testing.T) {
	m := metrics.NewMetrics("lpsolver")
	b := NewBreaker(Settings{
		Name:   "redis-cache",
		Config: config.CircuitBreakerConfig{Enabled: true, MaxFailures: 3, Timeout: time.Minute},
	}, m)

	for range 3 {
		_, err := b.Execute(func() (any, error) { return nil, errors.New("dial tcp: refused") })
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("redis-cache")))

	called := false
	_, err := b.Execute(func() (any, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.False(t, called)
}

func TestBreakerIgnoresSuccessfulErrors(t *testing.T) {
	b := NewBreaker(Settings{
		Name:         "redis-cache",
		Config:       config.CircuitBreakerConfig{Enabled: true, MaxFailures: 2, Timeout: time.Minute},
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errMiss) },
	}, nil)

	for range 10 {
		_, err := ExecuteTyped(b, func() ([]byte, error) { return nil, errMiss })
		require.ErrorIs(t, err, errMiss)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
