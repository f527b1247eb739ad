package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"eventmanager/internal/domain"
)

// DefaultPublishTimeout bounds one background publish including its retries.
const DefaultPublishTimeout = 30 * time.Second

// ErrPublisherClosed is returned by AsyncPublisher.Publish after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// AsyncPublisher queues messages and publishes them in order on a background worker,
// so callers never wait for broker retries. When the queue is full the message is
// diverted to the DLQ or fallback right away.
type AsyncPublisher struct {
	pub     *Publisher
	jobs    chan outgoingJob
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type outgoingJob struct {
	ctx context.Context
	out outgoing
}

func NewAsyncPublisher(pub *Publisher, queueSize int, timeout time.Duration) *AsyncPublisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	a := &AsyncPublisher{
		pub:     pub,
		jobs:    make(chan outgoingJob, queueSize),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

var _ domain.EventPublisher = (*AsyncPublisher)(nil)

// Publish encodes payload and enqueues it. The message keeps the correlation id and
// values of ctx but not its deadline or cancellation.
func (a *AsyncPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	out, err := newOutgoing(ctx, topic, key, payload)
	if err != nil {
		return err
	}

	queued, err := a.enqueue(outgoingJob{ctx: context.WithoutCancel(ctx), out: out})
	if err != nil || queued {
		return err
	}
	a.pub.cfg.Logger.WarnContext(ctx, "publish queue full, diverting message", "topic", topic, "queue", cap(a.jobs))
	a.pub.divert(ctx, out, ReasonQueueFull, ErrBulkheadFull)
	return ErrBulkheadFull
}

func (a *AsyncPublisher) enqueue(job outgoingJob) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return false, ErrPublisherClosed
	}
	select {
	case a.jobs <- job:
		return true, nil
	default:
		return false, nil
	}
}

// Pending is the number of queued messages.
func (a *AsyncPublisher) Pending() int {
	return len(a.jobs)
}

func (a *AsyncPublisher) run() {
	defer close(a.done)
	for job := range a.jobs {
		ctx, cancel := context.WithTimeout(job.ctx, a.timeout)
		_ = a.pub.publish(ctx, job.out)
		cancel()
	}
}

// Close stops accepting messages and waits until the queue is drained or ctx ends.
func (a *AsyncPublisher) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
