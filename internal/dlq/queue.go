package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"eventmanager/internal/adapters/messaging"
	"eventmanager/internal/metrics"
)

// DefaultTopic is where dead letters are published.
const DefaultTopic = "events.dlq"

// PermanentSuffix is appended to the DLQ topic for messages that exhausted their retries.
const PermanentSuffix = ".permanent"

type Queue struct {
	Publisher message.Publisher
	Topic     string
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

func NewQueue(pub message.Publisher, topic string, logger *slog.Logger, m *metrics.Metrics) *Queue {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Queue{Publisher: pub, Topic: topic, Logger: logger, Metrics: m}
}

// PermanentTopic is the topic for messages that will not be retried again.
func (q *Queue) PermanentTopic() string {
	return q.Topic + PermanentSuffix
}

// Send publishes m to the DLQ topic keyed by its correlation id.
func (q *Queue) Send(ctx context.Context, m *Message) error {
	if err := q.publish(ctx, q.Topic, m); err != nil {
		return err
	}
	q.Metrics.IncDLQ(m.OriginalTopic, m.ErrorType)
	q.Logger.WarnContext(ctx, "message sent to DLQ",
		"topic", m.OriginalTopic,
		"correlation_id", m.CorrelationID,
		"retry_count", m.RetryCount,
		"error", m.ErrorMessage,
	)
	return nil
}

// SendPermanent parks m on the permanent failure topic.
func (q *Queue) SendPermanent(ctx context.Context, m *Message) error {
	if err := q.publish(ctx, q.PermanentTopic(), m); err != nil {
		return err
	}
	q.Logger.ErrorContext(ctx, "message moved to permanent failure",
		"topic", m.OriginalTopic,
		"correlation_id", m.CorrelationID,
		"retry_count", m.RetryCount,
	)
	return nil
}

func (q *Queue) publish(ctx context.Context, topic string, m *Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if m.CorrelationID != "" {
		middleware.SetCorrelationID(m.CorrelationID, msg)
		msg.Metadata.Set(messaging.PartitionKeyMetadata, m.CorrelationID)
	}
	if err := q.Publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
