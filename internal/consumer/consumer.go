// Package consumer records domain messages into the analytics document store.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"eventmanager/internal/clock"
	"eventmanager/internal/dlq"
	"eventmanager/internal/domain"
	"eventmanager/internal/metrics"
	"eventmanager/internal/tracing"
)

// DefaultGroup is the consumer group of the analytics service.
const DefaultGroup = "analytics-group"

// Retry settings of the in-process retry middleware.
const (
	RetryMax             = 3
	RetryInitialInterval = 100 * time.Millisecond
	RetryMaxInterval     = time.Second
)

// ErrMalformed marks payloads that cannot be decoded.
var ErrMalformed = errors.New("malformed message payload")

type Consumer struct {
	Store   domain.AnalyticsStore
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Clock   clock.Clock
	Tracer  trace.Tracer
}

func New(store domain.AnalyticsStore, logger *slog.Logger, m *metrics.Metrics, clk clock.Clock) *Consumer {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Consumer{Store: store, Logger: logger, Metrics: m, Clock: clk, Tracer: otel.Tracer("eventmanager/internal/consumer")}
}

// Process applies one message of topic to the store.
func (c *Consumer) Process(ctx context.Context, topic, messageID string, payload []byte) (err error) {
	start := time.Now()
	defer func() { c.Metrics.ObserveConsume(topic, err, time.Since(start)) }()

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	activity := domain.ActivityDocument{
		Topic:      topic,
		MessageID:  messageID,
		Payload:    fields,
		ReceivedAt: c.Clock.Now(),
	}

	switch topic {
	case domain.TopicEventCreated, domain.TopicEventUpdated, domain.TopicEventDeleted:
		var msg domain.EventMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		activity.EventID = msg.ID
		if err := c.applyEvent(ctx, topic, msg); err != nil {
			return err
		}
	case domain.TopicParticipantRegistered, domain.TopicParticipantRemoved, domain.TopicParticipantPromoted:
		var msg domain.ParticipantMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		activity.EventID = msg.EventID
		activity.ParticipantID = msg.ParticipantID
	default:
		c.Logger.WarnContext(ctx, "unknown topic, recording activity only", "topic", topic)
	}

	if err := c.Store.RecordActivity(ctx, activity); err != nil {
		return err
	}
	c.Logger.DebugContext(ctx, "message processed", "topic", topic, "message_id", messageID, "event_id", activity.EventID)
	return nil
}

func (c *Consumer) applyEvent(ctx context.Context, topic string, msg domain.EventMessage) error {
	switch topic {
	case domain.TopicEventCreated:
		return c.Store.UpsertEvent(ctx, domain.AnalyticsDocument{
			EventID:  msg.ID,
			Title:    msg.Title,
			Location: msg.Location,
			Category: msg.Category,
			Seats:    msg.Seats,
			TS:       msg.Date,
		})
	case domain.TopicEventDeleted:
		return c.Store.MarkEventDeleted(ctx, msg.ID, c.Clock.Now())
	}
	return nil
}

// Handler adapts Process to a watermill handler for topic. Each delivery runs in a
// consumer span continuing the trace carried in the message metadata.
func (c *Consumer) Handler(topic string) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		ctx := tracing.Propagator().Extract(msg.Context(), propagation.MapCarrier(msg.Metadata))
		ctx, span := c.Tracer.Start(ctx, "consume "+topic,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.destination.name", topic),
				attribute.String("messaging.message.id", msg.UUID),
				attribute.String("correlation_id", middleware.MessageCorrelationID(msg)),
			))
		defer span.End()

		err := c.Process(ctx, topic, msg.UUID, msg.Payload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}

// ReplayHandler lets the DLQ processor re-run a dead letter of topic under the
// failed message's original UUID.
func (c *Consumer) ReplayHandler(topic string) dlq.Handler {
	return func(ctx context.Context, dead *dlq.Message) error {
		return c.Process(ctx, topic, dead.OriginalMessageID, dead.OriginalMessage)
	}
}

// Register subscribes one handler per topic. Each is wrapped so that failures are retried
// in process and then dead-lettered. When proc is set, the DLQ topic is consumed too.
func (c *Consumer) Register(router *message.Router, sub message.Subscriber, topics []string, q *dlq.Queue, proc *dlq.Processor) {
	retry := middleware.Retry{
		MaxRetries:      RetryMax,
		InitialInterval: RetryInitialInterval,
		MaxInterval:     RetryMaxInterval,
		Multiplier:      2,
		Logger:          watermill.NewSlogLogger(c.Logger),
	}
	for _, topic := range topics {
		h := router.AddNoPublisherHandler("analytics_"+topic, topic, sub, c.Handler(topic))
		h.AddMiddleware(dlq.Middleware(q), retry.Middleware)
		if proc != nil {
			proc.Register(topic, c.ReplayHandler(topic))
		}
	}
	if proc != nil {
		router.AddNoPublisherHandler("analytics_dlq", q.Topic, sub, proc.Handle)
	}
}
