package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"eventmanager/internal/domain"
)

type redisWriteBehind struct {
	client *redis.Client
	key    string
}

// NewWriteBehindQueue returns a FIFO queue stored in the Redis list "<prefix>:write_behind".
func NewWriteBehindQueue(client *redis.Client, prefix string) domain.WriteBehindQueue {
	return &redisWriteBehind{client: client, key: prefix + ":write_behind"}
}

func (q *redisWriteBehind) Enqueue(ctx context.Context, op domain.WriteOp) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", op.Kind, err)
	}
	return nil
}

// Drain applies up to max queued ops in order. An op whose fn fails is pushed back to the head
// of the queue and draining stops so the next run retries it first.
func (q *redisWriteBehind) Drain(ctx context.Context, max int, fn func(ctx context.Context, op domain.WriteOp) error) (int, error) {
	applied := 0
	for max <= 0 || applied < max {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		raw, err := q.client.LPop(ctx, q.key).Bytes()
		if errors.Is(err, redis.Nil) {
			return applied, nil
		}
		if err != nil {
			return applied, fmt.Errorf("dequeue: %w", err)
		}
		var op domain.WriteOp
		if err := json.Unmarshal(raw, &op); err != nil {
			// unreadable entries are dropped
			continue
		}
		if err := fn(ctx, op); err != nil {
			if perr := q.client.LPush(ctx, q.key, raw).Err(); perr != nil {
				return applied, errors.Join(err, fmt.Errorf("requeue: %w", perr))
			}
			return applied, fmt.Errorf("apply %s: %w", op.Kind, err)
		}
		applied++
	}
	return applied, nil
}
