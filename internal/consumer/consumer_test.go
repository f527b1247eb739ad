package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmanager/internal/clock"
	"eventmanager/internal/dlq"
	"eventmanager/internal/domain"
	"eventmanager/internal/metrics"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore keys documents the way the mongo store does: events by event_id,
// activity by message_id.
type fakeStore struct {
	mu          sync.Mutex
	events      []domain.AnalyticsDocument
	deleted     []int64
	activity    []domain.ActivityDocument
	err         error
	activityErr []error
	calls       int
}

func (s *fakeStore) UpsertEvent(ctx context.Context, doc domain.AnalyticsDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	for _, e := range s.events {
		if e.EventID == doc.EventID {
			return nil
		}
	}
	s.events = append(s.events, doc)
	return nil
}

func (s *fakeStore) MarkEventDeleted(ctx context.Context, eventID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, eventID)
	return nil
}

func (s *fakeStore) RecordActivity(ctx context.Context, doc domain.ActivityDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.activityErr) > 0 {
		err := s.activityErr[0]
		s.activityErr = s.activityErr[1:]
		return err
	}
	for _, a := range s.activity {
		if doc.MessageID != "" && a.MessageID == doc.MessageID {
			return nil
		}
	}
	s.activity = append(s.activity, doc)
	return nil
}

func (s *fakeStore) UpsertSnapshots(ctx context.Context, key string, docs []map[string]any) (int, error) {
	return 0, nil
}

func (s *fakeStore) insertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestConsumer_Process(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	created := mustJSON(t, domain.EventMessage{ID: 4, Title: "GopherCon", Location: "Berlin", Date: date, Seats: 100})
	registered := mustJSON(t, domain.ParticipantMessage{EventID: 4, ParticipantID: 9, Email: "a@x.io"})

	store := &fakeStore{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "test")
	c := New(store, testLogger(), m, clock.NewFixed(testNow))

	require.NoError(t, c.Process(ctx, domain.TopicEventCreated, "m1", created))
	require.NoError(t, c.Process(ctx, domain.TopicParticipantRegistered, "m2", registered))
	require.NoError(t, c.Process(ctx, domain.TopicEventDeleted, "m3", created))

	require.Len(t, store.events, 1)
	assert.Equal(t, domain.AnalyticsDocument{EventID: 4, Title: "GopherCon", Location: "Berlin", Seats: 100, TS: date}, store.events[0])
	assert.Equal(t, []int64{4}, store.deleted)
	require.Len(t, store.activity, 3)
	assert.Equal(t, int64(9), store.activity[1].ParticipantID)
	assert.Equal(t, "a@x.io", store.activity[1].Payload["email"])
	assert.Equal(t, testNow, store.activity[2].ReceivedAt)

	err := c.Process(ctx, domain.TopicEventCreated, "m4", []byte("not json"))
	assert.ErrorIs(t, err, ErrMalformed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConsumerProcessed.WithLabelValues(domain.TopicEventCreated, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConsumerProcessed.WithLabelValues(domain.TopicEventCreated, "error")))
}

func TestConsumer_Register_FailingHandlerIsDeadLettered(t *testing.T) {
	logger := watermill.NewSlogLogger(testLogger())
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, logger)
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	deadLetters, err := pubSub.Subscribe(ctx, dlq.DefaultTopic)
	require.NoError(t, err)

	store := &fakeStore{err: errors.New("mongo unavailable")}
	c := New(store, testLogger(), nil, clock.NewFixed(testNow))
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	require.NoError(t, err)
	c.Register(router, pubSub, []string{domain.TopicEventCreated}, dlq.NewQueue(pubSub, "", testLogger(), nil), nil)

	go func() { _ = router.Run(ctx) }()
	<-router.Running()
	defer router.Close()

	payload := mustJSON(t, domain.EventMessage{ID: 1, Title: "GopherCon"})
	require.NoError(t, pubSub.Publish(domain.TopicEventCreated, message.NewMessage(watermill.NewUUID(), payload)))

	select {
	case msg := <-deadLetters:
		var dead dlq.Message
		require.NoError(t, json.Unmarshal(msg.Payload, &dead))
		assert.Equal(t, domain.TopicEventCreated, dead.OriginalTopic)
		assert.Contains(t, dead.ErrorMessage, "mongo unavailable")
		assert.JSONEq(t, string(payload), string(dead.OriginalMessage))
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("message was not dead-lettered")
	}
	assert.Equal(t, RetryMax+1, store.insertCalls())
}

func TestConsumer_ReplayHandler(t *testing.T) {
	store := &fakeStore{}
	c := New(store, testLogger(), nil, clock.NewFixed(testNow))

	payload := mustJSON(t, domain.EventMessage{ID: 2, Title: "Replayed"})
	require.NoError(t, c.Process(context.Background(), domain.TopicEventCreated, "uuid-2", payload))

	dead := dlq.NewMessage(domain.TopicEventCreated, payload, errors.New("timeout"), "corr", testNow)
	dead.OriginalMessageID = "uuid-2"
	require.NoError(t, c.ReplayHandler(domain.TopicEventCreated)(context.Background(), dead))

	require.Len(t, store.events, 1, "replay of an applied message writes nothing new")
	require.Len(t, store.activity, 1)
	assert.Equal(t, "uuid-2", store.activity[0].MessageID)
}

func TestConsumer_RetriedMessageWritesOnce(t *testing.T) {
	store := &fakeStore{activityErr: []error{errors.New("write concern timeout")}}
	c := New(store, testLogger(), nil, clock.NewFixed(testNow))

	retry := middleware.Retry{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	handler := c.Handler(domain.TopicEventCreated)
	h := retry.Middleware(func(msg *message.Message) ([]*message.Message, error) {
		return nil, handler(msg)
	})

	msg := message.NewMessage("uuid-7", mustJSON(t, domain.EventMessage{ID: 7, Title: "GopherCon", Seats: 10}))
	_, err := h(msg)
	require.NoError(t, err)

	assert.Equal(t, 2, store.insertCalls())
	require.Len(t, store.events, 1)
	assert.Equal(t, int64(7), store.events[0].EventID)
	require.Len(t, store.activity, 1)
	assert.Equal(t, "uuid-7", store.activity[0].MessageID)
}
