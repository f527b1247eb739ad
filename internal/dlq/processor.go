package dlq

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

// DefaultMaxRetries is how many reprocessing attempts a dead letter gets before it is parked.
const DefaultMaxRetries = 3

// Handler reprocesses a dead letter. The original payload is dead.OriginalMessage.
type Handler func(ctx context.Context, dead *Message) error

// Processor consumes the DLQ topic and replays messages through the handler of their original topic.
type Processor struct {
	Queue      *Queue
	MaxRetries int
	Logger     *slog.Logger

	handlers map[string]Handler
	now      func() time.Time
}

func NewProcessor(q *Queue, maxRetries int, logger *slog.Logger) *Processor {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Processor{
		Queue:      q,
		MaxRetries: maxRetries,
		Logger:     logger,
		handlers:   make(map[string]Handler),
		now:        time.Now,
	}
}

// Register sets the handler for messages that originally failed on topic.
func (p *Processor) Register(topic string, h Handler) {
	p.handlers[topic] = h
}

// Handle is a watermill handler for the DLQ topic. It only returns an error when the
// outcome could not be recorded, so the broker redelivers.
func (p *Processor) Handle(msg *message.Message) error {
	ctx := msg.Context()
	m, err := decode(msg.Payload)
	if err != nil {
		p.Logger.ErrorContext(ctx, "dropping unreadable dead letter", "uuid", msg.UUID, "err", err)
		return nil
	}

	if m.RetryCount >= p.MaxRetries {
		return p.Queue.SendPermanent(ctx, m)
	}

	h, ok := p.handlers[m.OriginalTopic]
	if !ok {
		p.Logger.ErrorContext(ctx, "no handler for dead letter topic", "topic", m.OriginalTopic, "correlation_id", m.CorrelationID)
		return nil
	}

	if err := h(ctx, m); err != nil {
		return p.Queue.Send(ctx, m.Retried(err, p.now()))
	}
	p.Logger.InfoContext(ctx, "reprocessed dead letter", "topic", m.OriginalTopic, "correlation_id", m.CorrelationID)
	return nil
}
