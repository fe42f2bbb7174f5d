package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TheYonk/robomonkey/pkg/errors"
)

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary error")
		}

		return nil
	}, WithMaxAttempts(3), WithBackoffStrategy(NewFixedBackoff(time.Millisecond)))

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_MaxAttemptsExceeded(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errors.New("persistent error")
	}, WithMaxAttempts(3), WithBackoffStrategy(NewFixedBackoff(time.Millisecond)))

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "operation failed after 3 attempts")
}

func TestDo_ValidationErrorNotRetried(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errors.New("bad payload").WithCode(errors.CodeValidation)
	}, WithMaxAttempts(5))

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	_ = Do(func() error {
		return errors.New("still failing")
	},
		WithMaxAttempts(3),
		WithBackoffStrategy(NewFixedBackoff(time.Millisecond)),
		WithOnRetry(func(attempt int, err error) {
			attempts = append(attempts, attempt)
		}),
	)

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoWithContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := DoWithContext(ctx, func(ctx context.Context) error {
		return errors.New("never succeeds")
	}, WithMaxAttempts(10))

	assert.Error(t, err)
	assert.Equal(t, errors.CodeCanceled, errors.GetCode(err))
}

func TestExponentialBackoff_Growth(t *testing.T) {
	b := NewExponentialBackoff(
		WithInitialDelay(100*time.Millisecond),
		WithMultiplier(2.0),
		WithJitter(0),
	)

	assert.Equal(t, 100*time.Millisecond, b.Next(1))
	assert.Equal(t, 200*time.Millisecond, b.Next(2))
	assert.Equal(t, 400*time.Millisecond, b.Next(3))
}

func TestExponentialBackoff_Cap(t *testing.T) {
	b := NewExponentialBackoff(
		WithInitialDelay(time.Second),
		WithJitter(0),
	)

	assert.Equal(t, b.MaxDelay, b.Next(30))
}
