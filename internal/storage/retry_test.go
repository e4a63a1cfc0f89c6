package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func fastStore() *QdrantStore {
	return &QdrantStore{
		dimension:     4,
		callTimeout:   50 * time.Millisecond,
		retryInterval: time.Millisecond,
	}
}

func TestCallWithRetry_RetriesTransientFailures(t *testing.T) {
	s := fastStore()

	attempts := 0
	err := s.callWithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return status.Error(codes.Unavailable, "connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestCallWithRetry_StructuralFailureIsNotRetried(t *testing.T) {
	s := fastStore()

	for _, code := range []codes.Code{codes.NotFound, codes.InvalidArgument} {
		attempts := 0
		err := s.callWithRetry(context.Background(), func(ctx context.Context) error {
			attempts++
			return status.Error(code, "structural")
		})

		require.Error(t, err)
		assert.Equal(t, code, status.Code(err))
		assert.Equal(t, 1, attempts, "code %s must abort on first attempt", code)
	}
}

func TestCallWithRetry_BoundsEveryAttempt(t *testing.T) {
	s := fastStore()

	var sawDeadline bool
	err := s.callWithRetry(context.Background(), func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		sawDeadline = ok && time.Until(deadline) <= s.callTimeout
		return nil
	})

	require.NoError(t, err)
	assert.True(t, sawDeadline, "each attempt must carry a bounded deadline")
}

func TestCallWithRetry_StopsWhenCallerContextEnds(t *testing.T) {
	s := fastStore()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := s.callWithRetry(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return status.Error(codes.Unavailable, "connection reset")
	})

	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 2, "retrying must stop once the caller is gone")
}
