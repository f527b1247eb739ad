// Package messaging builds the watermill publishers and subscribers for the configured broker.
package messaging

import (
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

// Supported backends.
const (
	BackendKafka = "kafka"
	BackendRedis = "redis"
)

// PartitionKeyMetadata carries the message key. Kafka uses it to pick the partition.
const PartitionKeyMetadata = "partition_key"

type Config struct {
	Backend       string
	KafkaBrokers  []string
	ConsumerGroup string
	// Redis is required for BackendRedis.
	Redis  *redis.Client
	Logger *slog.Logger
}

func (c Config) logger() watermill.LoggerAdapter {
	l := c.Logger
	if l == nil {
		l = slog.Default()
	}
	return watermill.NewSlogLogger(l.With("component", "watermill"))
}

func partitionKey(_ string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(PartitionKeyMetadata), nil
}

// NewPublisher returns a publisher for cfg.Backend.
func NewPublisher(cfg Config) (message.Publisher, error) {
	switch cfg.Backend {
	case BackendKafka, "":
		saramaCfg := kafka.DefaultSaramaSyncPublisherConfig()
		saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
		saramaCfg.Producer.Retry.Max = 3
		pub, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:               cfg.KafkaBrokers,
			Marshaler:             kafka.NewWithPartitioningMarshaler(partitionKey),
			OverwriteSaramaConfig: saramaCfg,
		}, cfg.logger())
		if err != nil {
			return nil, fmt.Errorf("create kafka publisher: %w", err)
		}
		return pub, nil
	case BackendRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis backend requires a redis client")
		}
		pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: cfg.Redis}, cfg.logger())
		if err != nil {
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown messaging backend %q", cfg.Backend)
	}
}

// NewSubscriber returns a consumer-group subscriber for cfg.Backend. New groups start from the oldest offset.
func NewSubscriber(cfg Config) (message.Subscriber, error) {
	switch cfg.Backend {
	case BackendKafka, "":
		saramaCfg := kafka.DefaultSaramaSubscriberConfig()
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
		sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               cfg.KafkaBrokers,
			Unmarshaler:           kafka.NewWithPartitioningMarshaler(partitionKey),
			OverwriteSaramaConfig: saramaCfg,
			ConsumerGroup:         cfg.ConsumerGroup,
		}, cfg.logger())
		if err != nil {
			return nil, fmt.Errorf("create kafka subscriber: %w", err)
		}
		return sub, nil
	case BackendRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis backend requires a redis client")
		}
		sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        cfg.Redis,
			ConsumerGroup: cfg.ConsumerGroup,
		}, cfg.logger())
		if err != nil {
			return nil, fmt.Errorf("create redis stream subscriber: %w", err)
		}
		return sub, nil
	default:
		return nil, fmt.Errorf("unknown messaging backend %q", cfg.Backend)
	}
}

// NewRouter returns a router logging through cfg.Logger.
func NewRouter(cfg Config) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, cfg.logger())
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	return router, nil
}
