package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"eventmanager/internal/clock"
)

// TokenBucket gives each key a bucket of burst tokens refilled at perSecond.
type TokenBucket struct {
	perSecond rate.Limit
	burst     int
	clock     clock.Clock

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewTokenBucket(perSecond float64, burst int, c clock.Clock) *TokenBucket {
	if c == nil {
		c = clock.NewSystem()
	}
	return &TokenBucket{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		clock:     c,
		buckets:   make(map[string]*rate.Limiter),
	}
}

func (t *TokenBucket) bucket(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.buckets[key]
	if !ok {
		l = rate.NewLimiter(t.perSecond, t.burst)
		t.buckets[key] = l
	}
	return l
}

func (t *TokenBucket) Allow(_ context.Context, key string) (Decision, error) {
	now := t.clock.Now()
	l := t.bucket(key)
	allowed := l.AllowN(now, 1)
	tokens := l.TokensAt(now)

	d := Decision{
		Allowed:   allowed,
		Limit:     t.burst,
		Remaining: max(0, int(math.Floor(tokens))),
	}
	if tokens < 1 && t.perSecond > 0 {
		d.ResetAfter = time.Duration((1 - tokens) / float64(t.perSecond) * float64(time.Second))
	}
	return d, nil
}
