package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmanager/internal/domain"
	"eventmanager/internal/resilience"
)

// downBroker fails every publish after a delay.
type downBroker struct {
	delay    time.Duration
	attempts atomic.Int32
}

func (b *downBroker) Publish(topic string, msgs ...*message.Message) error {
	b.attempts.Add(1)
	time.Sleep(b.delay)
	return errors.New("kafka: client has run out of available brokers")
}

func (b *downBroker) Close() error { return nil }

func TestParticipantService_Register_BrokerDownDoesNotHoldRequest(t *testing.T) {
	broker := &downBroker{delay: 200 * time.Millisecond}
	fallback, err := resilience.NewFileFallback(t.TempDir(), discardLogger())
	require.NoError(t, err)
	pub := resilience.NewPublisher(broker, resilience.PublisherConfig{
		Retry:    resilience.RetryPolicy{InitialInterval: 10 * time.Millisecond, MaxInterval: 20 * time.Millisecond, MaxAttempts: 3},
		Fallback: fallback,
		Logger:   discardLogger(),
	})
	async := resilience.NewAsyncPublisher(pub, 16, 5*time.Second)

	f := newFixture()
	e := f.seedEvent(5, 0)
	d := f.deps()
	d.Publisher = async
	svc := NewParticipantService(d)

	start := time.Now()
	_, err = svc.Register(context.Background(), e.ID, domain.ParticipantInput{Name: "Ann Lee", Email: "ann@x.io"}, domain.Actor{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond, "registration returned before the first broker attempt finished")

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, async.Close(closeCtx))
	assert.EqualValues(t, 3, broker.attempts.Load())

	recs, err := fallback.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.TopicParticipantRegistered, recs[0].Topic)
}
