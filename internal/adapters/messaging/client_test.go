package messaging

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionKey(t *testing.T) {
	msg := message.NewMessage(watermill.NewUUID(), []byte(`{}`))
	msg.Metadata.Set(PartitionKeyMetadata, "42")
	key, err := partitionKey("event.created", msg)
	require.NoError(t, err)
	assert.Equal(t, "42", key)
}

func TestUnknownBackend(t *testing.T) {
	_, err := NewPublisher(Config{Backend: "nats"})
	require.Error(t, err)
	_, err = NewSubscriber(Config{Backend: "nats"})
	require.Error(t, err)
}

func TestRedisBackendRequiresClient(t *testing.T) {
	_, err := NewPublisher(Config{Backend: BackendRedis})
	require.Error(t, err)
}

func TestRedisStreamPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub, err := NewPublisher(Config{
		Backend: BackendRedis,
		Redis:   client,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	defer pub.Close()

	out := message.NewMessage(watermill.NewUUID(), []byte(`{"id":1}`))
	require.NoError(t, pub.Publish("event.created", out))

	n, err := client.XLen(context.Background(), "event.created").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
