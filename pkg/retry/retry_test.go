package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	pkgerrors "pulse/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetry_SucceedsEventually(t *testing.T) {
	calls := 0
	var retries []int

	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("smtp timeout")
		}
		return nil
	}, func(attempt int, err error, next time.Duration) {
		retries = append(retries, attempt)
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestRetry_StopsAtMaxAttempts(t *testing.T) {
	calls := 0

	err := Retry(context.Background(), fastPolicy(2), func() error {
		calls++
		return fmt.Errorf("still failing")
	})

	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_FatalErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"explicit fatal", NewFatalError(fmt.Errorf("bad template"))},
		{"validation app error", pkgerrors.ErrValidation.WithMessage("bad payload")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), fastPolicy(5), func() error {
				calls++
				return tt.err
			})

			assert.Error(t, err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(fmt.Errorf("plain")))
	assert.False(t, IsFatal(pkgerrors.ErrServiceUnavailable))
	assert.True(t, IsFatal(pkgerrors.ErrNotFound))
	assert.True(t, IsFatal(NewFatalError(fmt.Errorf("x"))))
}
