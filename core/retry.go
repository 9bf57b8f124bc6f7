package core

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryPolicy determines retry behavior for failed requests.
type RetryPolicy interface {
	// NextDelay returns the delay before the next retry attempt and whether to retry.
	// If ok is false, no more retries should be attempted.
	// attempt starts at 0 for the first retry after the initial failure.
	NextDelay(attempt int, err error) (delay time.Duration, ok bool)
}

// FixedDelayPolicy retries errors accepted by Retryable up to MaxRetries
// times, pausing a constant Delay between attempts.
type FixedDelayPolicy struct {
	MaxRetries int
	Delay      time.Duration
	Retryable  func(error) bool
}

// NextDelay implements RetryPolicy.
func (p FixedDelayPolicy) NextDelay(attempt int, err error) (time.Duration, bool) {
	if attempt >= p.MaxRetries {
		return 0, false
	}
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if p.Retryable == nil || !p.Retryable(err) {
		return 0, false
	}
	return p.Delay, true
}

// DefaultRetryPolicy returns the policy used for image requests: transient
// 403 responses are retried twice (three attempts in total) five seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return FixedDelayPolicy{
		MaxRetries: 2,
		Delay:      5 * time.Second,
		Retryable:  IsTransientForbidden,
	}
}

// NoRetry returns a policy that never retries.
func NoRetry() RetryPolicy {
	return FixedDelayPolicy{}
}

// IsTransientForbidden reports whether err is an access-denied response that
// providers document as safe to retry.
func IsTransientForbidden(err error) bool {
	if errors.Is(err, ErrForbidden) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Status == http.StatusForbidden
	}
	return false
}

// RetryNotify is called before each retry with the 1-based retry number,
// the pause about to be taken and the error that triggered it.
type RetryNotify func(retry int, delay time.Duration, err error)

// Retry runs fn until it succeeds or policy declines another attempt. The
// pause between attempts is cut short when ctx is done.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error, notify RetryNotify) error {
	if policy == nil {
		policy = NoRetry()
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		delay, ok := policy.NextDelay(attempt, err)
		if !ok {
			return err
		}
		if notify != nil {
			notify(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
