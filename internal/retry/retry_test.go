package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConflict = errors.New("conflict")

func isConflict(err error) bool { return errors.Is(err, errConflict) }

func TestPolicy_Do_SucceedsAfterTwoConflicts(t *testing.T) {
	p := New(3, 10*time.Millisecond, isConflict)

	var retried []int
	p.OnRetry = func(attempt int, err error) {
		retried = append(retried, attempt)
		assert.ErrorIs(t, err, errConflict)
	}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errConflict
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{2, 3}, retried)
}

func TestPolicy_Do_ExhaustedReturnsSameError(t *testing.T) {
	delay := 20 * time.Millisecond
	p := New(3, delay, isConflict)

	calls := 0
	start := time.Now()
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errConflict
	})
	elapsed := time.Since(start)

	assert.True(t, err == errConflict, "want the same error value, got %v", err)
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, elapsed, 2*delay)
}

func TestPolicy_Do_NonRetryableRunsOnce(t *testing.T) {
	p := New(3, 10*time.Millisecond, isConflict)
	businessErr := errors.New("insufficient")

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return businessErr
	})

	assert.ErrorIs(t, err, businessErr)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_ContextCanceledDuringBackoff(t *testing.T) {
	p := New(3, time.Second, isConflict)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errConflict
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestValue(t *testing.T) {
	p := New(2, time.Millisecond, isConflict)

	calls := 0
	v, err := Value(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errConflict
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = Value(context.Background(), p, func(ctx context.Context) (int, error) {
		return 7, errConflict
	})
	assert.ErrorIs(t, err, errConflict)
}
