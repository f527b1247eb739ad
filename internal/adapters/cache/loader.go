package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"eventmanager/internal/domain"
)

// ReadThrough serves values from the cache and loads misses once per key across concurrent callers.
// Cache failures are logged and treated as misses.
type ReadThrough struct {
	Cache  domain.Cache
	TTL    time.Duration
	Logger *slog.Logger

	group singleflight.Group
}

func NewReadThrough(c domain.Cache, ttl time.Duration, logger *slog.Logger) *ReadThrough {
	return &ReadThrough{Cache: c, TTL: ttl, Logger: logger}
}

// Invalidate drops keys and patterns. Errors are logged only.
func (r *ReadThrough) Invalidate(ctx context.Context, keys []string, patterns ...string) {
	if r == nil || r.Cache == nil {
		return
	}
	if err := r.Cache.Delete(ctx, keys...); err != nil {
		r.Logger.WarnContext(ctx, "cache invalidate failed", "keys", keys, "err", err)
	}
	for _, p := range patterns {
		if _, err := r.Cache.InvalidatePattern(ctx, p); err != nil {
			r.Logger.WarnContext(ctx, "cache invalidate failed", "pattern", p, "err", err)
		}
	}
}

// GetOrLoad returns the cached T for key or calls load and caches its result with a jittered TTL.
// A nil ReadThrough always calls load.
func GetOrLoad[T any](ctx context.Context, r *ReadThrough, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if r == nil || r.Cache == nil {
		return load(ctx)
	}

	var cached T
	found, err := r.Cache.Get(ctx, key, &cached)
	if err != nil {
		r.Logger.WarnContext(ctx, "cache read failed, loading from source", "key", key, "err", err)
	} else if found {
		return cached, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return loaded, err
		}
		if err := r.Cache.Set(ctx, key, loaded, RandomTTL(r.TTL)); err != nil {
			r.Logger.WarnContext(ctx, "cache write failed", "key", key, "err", err)
		}
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
