package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"eventmanager/internal/domain"
)

// Collection names in the analytics database.
const (
	EventsCollection    = "events_analytics"
	ActivityCollection  = "event_activity"
	SnapshotsCollection = "events_analytics_snapshots"
)

// Connect opens a client and verifies the primary is reachable.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(database), nil
}

type analyticsStore struct {
	db *mongo.Database
}

func NewAnalyticsStore(db *mongo.Database) domain.AnalyticsStore {
	return &analyticsStore{db: db}
}

// UpsertEvent inserts doc unless a document for doc.EventID exists already.
func (s *analyticsStore) UpsertEvent(ctx context.Context, doc domain.AnalyticsDocument) error {
	_, err := s.db.Collection(EventsCollection).UpdateOne(ctx,
		bson.M{"event_id": doc.EventID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert analytics event %d: %w", doc.EventID, err)
	}
	return nil
}

func (s *analyticsStore) MarkEventDeleted(ctx context.Context, eventID int64, at time.Time) error {
	_, err := s.db.Collection(EventsCollection).UpdateMany(ctx,
		bson.M{"event_id": eventID},
		bson.M{"$set": bson.M{"deleted_at": at}},
	)
	if err != nil {
		return fmt.Errorf("mark analytics event %d deleted: %w", eventID, err)
	}
	return nil
}

// RecordActivity stores doc once per MessageID. Documents without a message id are always inserted.
func (s *analyticsStore) RecordActivity(ctx context.Context, doc domain.ActivityDocument) error {
	coll := s.db.Collection(ActivityCollection)
	var err error
	if doc.MessageID == "" {
		_, err = coll.InsertOne(ctx, doc)
	} else {
		_, err = coll.UpdateOne(ctx,
			bson.M{"message_id": doc.MessageID},
			bson.M{"$setOnInsert": doc},
			options.Update().SetUpsert(true),
		)
	}
	if err != nil {
		return fmt.Errorf("record activity %s: %w", doc.MessageID, err)
	}
	return nil
}

// UpsertSnapshots writes docs into the snapshots collection keyed by docs[i][key].
// Docs without the key are skipped. The write is unordered so one bad doc does not stop the batch.
func (s *analyticsStore) UpsertSnapshots(ctx context.Context, key string, docs []map[string]any) (int, error) {
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		id, ok := doc[key]
		if !ok {
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{key: id}).
			SetUpdate(bson.M{"$set": doc}).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return 0, nil
	}
	res, err := s.db.Collection(SnapshotsCollection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("upsert snapshots: %w", err)
	}
	return int(res.MatchedCount + res.UpsertedCount), nil
}
