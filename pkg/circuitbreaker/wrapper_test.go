package circuitbreaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/config"
)

func TestWrapper_TripsAfterFailures(t *testing.T) {
	cfg := FromConfig("test-trip", config.CircuitBreakerConfig{MinRequests: 2, FailureRatio: 1, Timeout: time.Minute})
	w := NewWrapper(cfg)

	failing := func(context.Context) (string, error) { return "", fmt.Errorf("upstream down") }

	for range 2 {
		_, err := Do(context.Background(), w, failing)
		require.Error(t, err)
	}

	assert.True(t, w.IsOpen())

	_, err := Do(context.Background(), w, func(context.Context) (string, error) { return "ok", nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestWrapper_IsSuccessful(t *testing.T) {
	notFound := fmt.Errorf("not found")

	cfg := DefaultConfig("test-success")
	cfg.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 }
	cfg.IsSuccessful = func(err error) bool { return err == nil || err == notFound }
	w := NewWrapper(cfg)

	_, err := Do(context.Background(), w, func(context.Context) (int, error) { return 0, notFound })
	assert.ErrorIs(t, err, notFound)
	assert.False(t, w.IsOpen())
}

func TestWrapper_CanceledContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-ctx"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Do(ctx, w, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDo_ReturnsValue(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-value"))

	v, err := Do(context.Background(), w, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, gobreaker.StateClosed, w.State())
}
