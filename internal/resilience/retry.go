package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxAttempts includes the first call.
	MaxAttempts int
}

// DefaultRetryPolicy is 5 attempts backing off from 1s to 30s.
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: time.Second,
	MaxInterval:     30 * time.Second,
	MaxAttempts:     5,
}

// Do calls fn until it succeeds, the attempts are used up or ctx ends.
// An open breaker stops retrying immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
