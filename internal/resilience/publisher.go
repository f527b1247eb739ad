package resilience

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
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"eventmanager/internal/adapters/messaging"
	"eventmanager/internal/dlq"
	"eventmanager/internal/domain"
	"eventmanager/internal/metrics"
	"eventmanager/internal/tracing"
)

// Reasons recorded on diverted messages.
const (
	ReasonBreakerOpen = "circuit_breaker_open"
	ReasonQueueFull   = "publish_queue_full"
)

// DefaultDivertTimeout bounds the DLQ send of a message that failed to publish.
const DefaultDivertTimeout = 5 * time.Second

type correlationKey struct{}

// WithCorrelationID sets the id stamped on messages published with ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the id set by WithCorrelationID.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

type PublisherConfig struct {
	Bulkhead      *Bulkhead
	Breaker       *Breaker
	Retry         RetryPolicy
	DLQ           *dlq.Queue
	Fallback      *FileFallback
	DivertTimeout time.Duration
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	// Tracer defaults to the global provider's.
	Tracer trace.Tracer
}

// Publisher publishes JSON payloads through bulkhead, retry and breaker. Messages that still
// fail go to the DLQ and, if that fails too, to the file fallback.
type Publisher struct {
	transport message.Publisher
	cfg       PublisherConfig
	now       func() time.Time
}

func NewPublisher(transport message.Publisher, cfg PublisherConfig) *Publisher {
	if cfg.Bulkhead == nil {
		cfg.Bulkhead = NewBulkhead(5, 50)
	}
	if cfg.Breaker == nil {
		cfg.Breaker = NewBreaker(BreakerConfig{Name: "broker"})
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy
	}
	if cfg.DivertTimeout <= 0 {
		cfg.DivertTimeout = DefaultDivertTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("eventmanager/internal/resilience")
	}
	return &Publisher{transport: transport, cfg: cfg, now: time.Now}
}

var _ domain.EventPublisher = (*Publisher)(nil)

// Publish returns nil once the message reached the broker. On failure the message has been
// handed to the DLQ or fallback and the returned error describes the original failure.
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload any) error {
	out, err := newOutgoing(ctx, topic, key, payload)
	if err != nil {
		return err
	}
	return p.publish(ctx, out)
}

// outgoing is an encoded message. Its UUID is fixed before the first attempt so
// retries, dead letters and fallback replays all carry the same id.
type outgoing struct {
	topic, key    string
	correlationID string
	messageID     string
	raw           []byte
}

func newOutgoing(ctx context.Context, topic, key string, payload any) (outgoing, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return outgoing{}, fmt.Errorf("encode %s payload: %w", topic, err)
	}
	correlationID := CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = watermill.NewUUID()
	}
	return outgoing{topic: topic, key: key, correlationID: correlationID, messageID: watermill.NewUUID(), raw: raw}, nil
}

func (p *Publisher) publish(ctx context.Context, out outgoing) error {
	err := p.send(ctx, out)
	if err == nil {
		return nil
	}

	reason := err.Error()
	if errors.Is(err, gobreaker.ErrOpenState) {
		reason = ReasonBreakerOpen
	}
	p.cfg.Logger.ErrorContext(ctx, "publish failed", "topic", out.topic, "correlation_id", out.correlationID, "reason", reason, "err", err)
	p.divert(ctx, out, reason, err)
	return fmt.Errorf("publish %s: %w", out.topic, err)
}

func (p *Publisher) send(ctx context.Context, out outgoing) error {
	ctx, span := p.cfg.Tracer.Start(ctx, "publish "+out.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", out.topic),
			attribute.String("messaging.message.id", out.messageID),
			attribute.String("correlation_id", out.correlationID),
		))
	defer span.End()

	start := p.now()
	err := p.cfg.Bulkhead.Execute(ctx, func(ctx context.Context) error {
		return p.cfg.Retry.Do(ctx, func() error {
			return p.cfg.Breaker.Execute(func() error {
				msg := message.NewMessage(out.messageID, out.raw)
				msg.SetContext(ctx)
				middleware.SetCorrelationID(out.correlationID, msg)
				tracing.Propagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))
				if out.key != "" {
					msg.Metadata.Set(messaging.PartitionKeyMetadata, out.key)
				}
				return p.transport.Publish(out.topic, msg)
			})
		})
	})
	p.cfg.Metrics.ObservePublish(out.topic, err, p.now().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// divert hands out to the DLQ, or the file fallback when that fails too. It runs on a
// context detached from ctx, which has usually expired by now.
func (p *Publisher) divert(ctx context.Context, out outgoing, reason string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.DivertTimeout)
	defer cancel()

	var dlqErr error
	if p.cfg.DLQ != nil {
		dead := dlq.NewMessage(out.topic, out.raw, cause, out.correlationID, p.now())
		dead.OriginalMessageID = out.messageID
		if dlqErr = p.cfg.DLQ.Send(ctx, dead); dlqErr == nil {
			return
		}
		p.cfg.Logger.ErrorContext(ctx, "failed to publish to DLQ", "topic", out.topic, "correlation_id", out.correlationID, "err", dlqErr)
	} else {
		dlqErr = errors.New("no dead letter queue configured")
	}

	if p.cfg.Fallback == nil {
		return
	}
	rec := FallbackRecord{
		Timestamp:     p.now().UTC(),
		Topic:         out.topic,
		Key:           out.key,
		CorrelationID: out.correlationID,
		MessageID:     out.messageID,
		Original:      out.raw,
		Reason:        reason,
		Error:         dlqErr.Error(),
	}
	if err := p.cfg.Fallback.Save(rec); err != nil {
		p.cfg.Logger.ErrorContext(ctx, "failed to save message to fallback", "correlation_id", out.correlationID, "err", err)
		return
	}
	p.cfg.Logger.WarnContext(ctx, "saved message to fallback", "topic", out.topic, "file", rec.FileName())
}

// ReplayFallback republishes stored fallback records. Records that fail again stay on disk.
func (p *Publisher) ReplayFallback(ctx context.Context) (int, error) {
	if p.cfg.Fallback == nil {
		return 0, nil
	}
	return p.cfg.Fallback.Replay(ctx, func(ctx context.Context, rec FallbackRecord) error {
		return p.send(ctx, outgoing{
			topic:         rec.Topic,
			key:           rec.Key,
			correlationID: rec.CorrelationID,
			messageID:     rec.MessageID,
			raw:           rec.Original,
		})
	})
}
