package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"eventmanager/internal/domain"
)

func TestAnalyticsStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("upsert event is keyed by event_id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		err := NewAnalyticsStore(mt.DB).UpsertEvent(ctx, domain.AnalyticsDocument{EventID: 7, Title: "A", TS: ts})
		require.NoError(t, err)

		update := firstUpdate(t, mt)
		require.Equal(t, int64(7), update.Lookup("q", "event_id").Int64())
		require.True(t, update.Lookup("upsert").Boolean())
		require.Equal(t, "A", update.Lookup("u", "$setOnInsert", "title").StringValue())
	})

	mt.Run("upsert event write error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))
		err := NewAnalyticsStore(mt.DB).UpsertEvent(ctx, domain.AnalyticsDocument{EventID: 1})
		require.Error(t, err)
		require.True(t, mongo.IsDuplicateKeyError(err))
	})

	mt.Run("mark deleted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		err := NewAnalyticsStore(mt.DB).MarkEventDeleted(ctx, 1, ts)
		require.NoError(t, err)
	})

	mt.Run("record activity is keyed by message_id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		err := NewAnalyticsStore(mt.DB).RecordActivity(ctx, domain.ActivityDocument{
			Topic: domain.TopicParticipantRegistered, MessageID: "m1", EventID: 1, ParticipantID: 2,
			Payload: map[string]any{"name": "Ann"}, ReceivedAt: ts,
		})
		require.NoError(t, err)

		update := firstUpdate(t, mt)
		require.Equal(t, "m1", update.Lookup("q", "message_id").StringValue())
		require.True(t, update.Lookup("upsert").Boolean())
	})

	mt.Run("record activity without message id inserts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		err := NewAnalyticsStore(mt.DB).RecordActivity(ctx, domain.ActivityDocument{Topic: domain.TopicEventCreated, EventID: 1, ReceivedAt: ts})
		require.NoError(t, err)
		require.Equal(t, "insert", mt.GetStartedEvent().CommandName)
	})

	mt.Run("upsert snapshots", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 2},
			bson.E{Key: "nModified", Value: 1},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 1}, {Key: "_id", Value: "x"}}}},
		))
		n, err := NewAnalyticsStore(mt.DB).UpsertSnapshots(ctx, "event_id", []map[string]any{
			{"event_id": int64(1), "title": "A"},
			{"event_id": int64(2), "title": "B"},
			{"title": "no key"},
		})
		require.NoError(t, err)
		require.Equal(t, 2, n)
	})

	mt.Run("upsert nothing", func(mt *mtest.T) {
		n, err := NewAnalyticsStore(mt.DB).UpsertSnapshots(ctx, "event_id", nil)
		require.NoError(t, err)
		require.Zero(t, n)
	})
}

func firstUpdate(t *testing.T, mt *mtest.T) bson.Raw {
	t.Helper()
	started := mt.GetStartedEvent()
	require.NotNil(t, started)
	require.Equal(t, "update", started.CommandName)
	updates, err := started.Command.LookupErr("updates")
	require.NoError(t, err)
	first, err := updates.Array().IndexErr(0)
	require.NoError(t, err)
	return first.Value().Document()
}
