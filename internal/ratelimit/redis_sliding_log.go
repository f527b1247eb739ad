package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"eventmanager/internal/clock"
)

// RedisSlidingLog keeps an exact log of request times per key in a sorted set, shared by all replicas.
type RedisSlidingLog struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	clock  clock.Clock
}

func NewRedisSlidingLog(client *redis.Client, prefix string, limit int, window time.Duration, c clock.Clock) *RedisSlidingLog {
	if c == nil {
		c = clock.NewSystem()
	}
	return &RedisSlidingLog{client: client, prefix: prefix, limit: limit, window: window, clock: c}
}

func (r *RedisSlidingLog) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.clock.Now().UnixMicro()
	windowStart := now - r.window.Microseconds()
	k := r.prefix + ":ratelimit:" + key
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	var (
		card   *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, k, "-inf", "("+strconv.FormatInt(windowStart, 10))
		p.ZAdd(ctx, k, redis.Z{Score: float64(now), Member: member})
		card = p.ZCard(ctx, k)
		oldest = p.ZRangeWithScores(ctx, k, 0, 0)
		p.PExpire(ctx, k, r.window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	count := int(card.Val())
	d := Decision{Limit: r.limit, Allowed: count <= r.limit}
	if !d.Allowed {
		if err := r.client.ZRem(ctx, k, member).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
		}
		count--
	}
	d.Remaining = max(0, r.limit-count)
	if zs := oldest.Val(); len(zs) > 0 {
		d.ResetAfter = time.Duration(int64(zs[0].Score)+r.window.Microseconds()-now) * time.Microsecond
	}
	return d, nil
}
