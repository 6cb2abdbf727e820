package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestDo_retriesTransientFailures(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), Policy{Retries: 2, Backoff: time.Millisecond}, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errBoom
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDo_givesUpAfterRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{Retries: 1, Backoff: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, calls)
}

func TestDo_permanentStopsImmediately(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{Retries: 5, Backoff: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, Permanent(errBoom)
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestDo_boundsEachAttempt(t *testing.T) {
	start := time.Now()
	_, err := Do(context.Background(), Policy{Timeout: 20 * time.Millisecond, Retries: 1, Backoff: time.Millisecond}, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPolicyBudget(t *testing.T) {
	p := Policy{Timeout: 8 * time.Second, Retries: 2, Backoff: 200 * time.Millisecond}
	assert.Equal(t, 24*time.Second+600*time.Millisecond, p.Budget())

	p = Policy{Timeout: time.Second, Retries: 4, Backoff: time.Second}
	// 1s + 2s + 2s + 2s of capped waits.
	assert.Equal(t, 5*time.Second+7*time.Second, p.Budget())

	assert.Equal(t, time.Second, Policy{Timeout: time.Second}.Budget())
}
