package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiter_Validation(t *testing.T) {
	_, err := NewLimiter(0, time.Minute, 0)
	assert.Error(t, err)

	_, err = NewLimiter(10, 0, 0)
	assert.Error(t, err)

	_, err = NewLimiter(10, time.Minute, 30*time.Second)
	assert.NoError(t, err)
}

func TestLimiter_BlocksWhenExhausted(t *testing.T) {
	// 2 requests per second, bounded wait far below the refill interval.
	l, err := NewLimiter(2, time.Second, 50*time.Millisecond)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx))

	// Drain what little capacity remains, then the next call must fail fast.
	for l.Allow() {
	}
	err = l.Wait(ctx)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestLimiter_ContextCancellation(t *testing.T) {
	l, err := NewLimiter(1, time.Minute, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Wait(ctx))

	done := make(chan error, 1)
	go func() { done <- l.Wait(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after context cancellation")
	}
}

func TestLimiter_CallerDeadlineIsNotQuota(t *testing.T) {
	// The caller's deadline expires while waiting; the error must be the
	// caller's, not ErrQuotaExceeded, so it cannot surface as a 429.
	l, err := NewLimiter(1, time.Minute, time.Second)
	require.NoError(t, err)

	require.NoError(t, l.Wait(context.Background()))
	for l.Allow() {
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrQuotaExceeded)
}

func TestLimiter_Reset(t *testing.T) {
	l, err := NewLimiter(5, time.Minute, 10*time.Millisecond)
	require.NoError(t, err)

	for l.Allow() {
	}
	assert.ErrorIs(t, l.Wait(context.Background()), ErrQuotaExceeded)

	l.Reset()
	assert.NoError(t, l.Wait(context.Background()))
}

func TestLimiter_CeilingUnderConcurrency(t *testing.T) {
	// 10 per 500ms window. 40 goroutines race for capacity; the number of
	// grants inside one window must stay at the ceiling, everything else
	// times out with ErrQuotaExceeded.
	const ceiling = 10
	window := 500 * time.Millisecond

	l, err := NewLimiter(ceiling, window, 25*time.Millisecond)
	require.NoError(t, err)

	var granted, denied atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := l.Wait(context.Background()); {
			case err == nil:
				granted.Add(1)
			case errors.Is(err, ErrQuotaExceeded):
				denied.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, granted.Load(), int64(ceiling),
		"grants within one window must not exceed the ceiling")
	assert.Greater(t, granted.Load(), int64(0))
	assert.Equal(t, int64(40), granted.Load()+denied.Load())
}
