package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces the global embedding request ceiling. One instance is
// shared by every session in the process; it is the single point of
// cross-session serialization.
//
// Capacity is a token bucket refilled at ceiling/window, so requests are
// spaced evenly rather than bursting up to the ceiling and then starving.
// Wait blocks until a token is available, up to maxWait, and fails with
// ErrQuotaExceeded when the wait would run longer.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	ceiling int
	window  time.Duration
	maxWait time.Duration
}

// NewLimiter creates a limiter allowing ceiling requests per window.
// maxWait bounds how long a single Wait call may block; zero means wait
// indefinitely (until context cancellation).
func NewLimiter(ceiling int, window, maxWait time.Duration) (*Limiter, error) {
	if ceiling <= 0 {
		return nil, fmt.Errorf("rate ceiling must be positive, got %d", ceiling)
	}
	if window <= 0 {
		return nil, fmt.Errorf("rate window must be positive, got %s", window)
	}
	return &Limiter{
		limiter: newBucket(ceiling, window),
		ceiling: ceiling,
		window:  window,
		maxWait: maxWait,
	}, nil
}

func newBucket(ceiling int, window time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(window/time.Duration(ceiling)), 1)
}

// Wait blocks until one request of capacity is available. Returns
// ErrQuotaExceeded if capacity does not free up within maxWait, or the
// context error if ctx is cancelled first.
func (l *Limiter) Wait(ctx context.Context) error {
	parent := ctx
	if l.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.maxWait)
		defer cancel()
	}

	l.mu.Lock()
	limiter := l.limiter
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		// The caller's own cancellation or deadline is theirs, not a
		// quota condition.
		if ctxErr := parent.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: no capacity within %s", ErrQuotaExceeded, l.maxWait)
	}
	return nil
}

// Allow reports whether a request could proceed immediately, consuming
// capacity if so.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limiter.Allow()
}

// Reset discards accumulated state and restores full capacity. Intended for
// deterministic tests.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter = newBucket(l.ceiling, l.window)
}

// Ceiling returns the configured requests-per-window ceiling.
func (l *Limiter) Ceiling() int { return l.ceiling }
