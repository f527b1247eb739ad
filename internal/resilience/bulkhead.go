// Package resilience wraps broker publishes with a bulkhead, circuit breaker, retries and a file fallback.
package resilience

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var ErrBulkheadFull = errors.New("bulkhead queue full")

// Bulkhead caps concurrent calls at maxConcurrent with up to maxQueue callers waiting.
type Bulkhead struct {
	sem      *semaphore.Weighted
	pending  atomic.Int64
	capacity int64
}

func NewBulkhead(maxConcurrent, maxQueue int) *Bulkhead {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if maxQueue < 0 {
		maxQueue = 0
	}
	return &Bulkhead{
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		capacity: int64(maxConcurrent + maxQueue),
	}
}

// Execute runs fn once a slot is free. It fails fast with ErrBulkheadFull when the queue is full.
func (b *Bulkhead) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.pending.Add(1) > b.capacity {
		b.pending.Add(-1)
		return ErrBulkheadFull
	}
	defer b.pending.Add(-1)

	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.sem.Release(1)
	return fn(ctx)
}

// InFlight is the number of running plus waiting calls.
func (b *Bulkhead) InFlight() int {
	return int(b.pending.Load())
}
