package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/meghashyamc/contextview/models"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 30 * time.Second
)

// RetryPolicy decides whether a failed attempt is retried and how long to wait before the next one.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// Retryable defaults to models.IsRetryable.
	Retryable func(error) bool
	// Sleep defaults to a context-aware timer. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// NetworkOnlyPolicy retries a mutation once, and only when the request never reached the server.
func NetworkOnlyPolicy() RetryPolicy {
	policy := DefaultRetryPolicy()
	policy.MaxRetries = 1
	policy.Retryable = models.IsNetworkError
	return policy
}

func (p RetryPolicy) MaxAttempts() int {
	return p.MaxRetries + 1
}

// Delay is min(BaseDelay * 2^attempt, MaxDelay) for the zero-based attempt that just failed.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// ShouldRetry reports whether another attempt follows failures failed attempts ending in err.
func (p RetryPolicy) ShouldRetry(failures int, err error) bool {
	if err == nil || failures > p.MaxRetries {
		return false
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = models.IsRetryable
	}
	return retryable(err)
}

func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, p.Delay(attempt))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AttemptLabel renders a one-based attempt number, e.g. "Attempt 2/4".
func AttemptLabel(attempt, maxAttempts int) string {
	return fmt.Sprintf("Attempt %d/%d", attempt, maxAttempts)
}

// Do runs fn until it succeeds, the policy gives up or ctx ends. onRetry, if set, is called before each wait with
// the zero-based attempt that failed.
func Do[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error), onRetry func(attempt int, err error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !policy.ShouldRetry(attempt+1, err) {
			return zero, err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if waitErr := policy.Wait(ctx, attempt); waitErr != nil {
			return zero, models.NewNetworkError("", waitErr)
		}
	}
}
