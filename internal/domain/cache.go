package domain

import (
	"context"
	"time"
)

// Cache is a JSON value cache keyed by string. Keys are relative to the cache prefix.
type Cache interface {
	// Get decodes the cached value into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	InvalidatePattern(ctx context.Context, pattern string) (int, error)
	Clear(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// WriteOp is a deferred write queued for later application.
type WriteOp struct {
	Kind       string    `json:"kind"`
	EventID    int64     `json:"event_id"`
	EntityID   int64     `json:"entity_id"`
	Value      bool      `json:"value"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// WriteOp kinds.
const (
	WriteOpCheckIn = "participant.check_in"
)

// WriteBehindQueue buffers writes that are applied asynchronously.
type WriteBehindQueue interface {
	Enqueue(ctx context.Context, op WriteOp) error
	// Drain pops up to max ops and applies fn to each. Failed ops are re-queued.
	Drain(ctx context.Context, max int, fn func(ctx context.Context, op WriteOp) error) (int, error)
}
