package etl

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"eventmanager/internal/adapters/cache"
	"eventmanager/internal/domain"
	"eventmanager/internal/metrics"
	"eventmanager/internal/quality"
)

// Pipeline names.
const (
	EventsToAnalytics = "events_to_analytics"
	EventsToSearch    = "events_to_search"
)

const eventSnapshotQuery = `
	SELECT e.id, e.title, e.description, e.location, e.category, e.date, e.seats, e.created_at, e.updated_at,
	       COUNT(p.id) AS participant_count,
	       COUNT(p.id) FILTER (WHERE p.checked_in) AS checked_in_count
	FROM events e
	LEFT JOIN participants p ON p.event_id = e.id
	WHERE e.updated_at > NOW() - make_interval(secs => $1)
	GROUP BY e.id`

// NewEventsToAnalytics snapshots events changed within lookback into the analytics store.
func NewEventsToAnalytics(db *sql.DB, store domain.AnalyticsStore, lookback time.Duration, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		Name:      EventsToAnalytics,
		Extractor: &SQLExtractor{DB: db, Query: eventSnapshotQuery, Args: []any{lookback.Seconds()}},
		Transformers: []Transformer{
			&CleaningTransformer{
				Mappings: map[string]string{"id": "event_id"},
				Required: []string{"event_id", "title"},
				Logger:   logger,
			},
			&ValidationTransformer{Validator: quality.EventValidator(), Logger: logger},
			&EnrichmentTransformer{},
		},
		Loader:    &MongoLoader{Store: store, Key: "event_id"},
		BatchSize: DefaultBatchSize,
		Logger:    logger,
		Metrics:   m,
	}
}

// NewEventsToSearch reindexes events changed within lookback.
func NewEventsToSearch(db *sql.DB, indexer domain.EventIndexer, lookback time.Duration, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		Name:      EventsToSearch,
		Extractor: &SQLExtractor{DB: db, Query: eventSnapshotQuery, Args: []any{lookback.Seconds()}},
		Transformers: []Transformer{
			&CleaningTransformer{
				Mappings: map[string]string{"id": "event_id"},
				Required: []string{"event_id", "title"},
				Logger:   logger,
			},
		},
		Loader:    &SearchLoader{Indexer: indexer},
		BatchSize: DefaultBatchSize,
		Logger:    logger,
		Metrics:   m,
	}
}

// DrainCheckIns applies queued check-ins to Postgres, up to limit per call, then drops the
// cached participant lists of the touched events. c may be nil.
func DrainCheckIns(queue domain.WriteBehindQueue, participants domain.ParticipantRepository, c domain.Cache, limit int, logger *slog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		touched := map[int64]struct{}{}
		n, err := queue.Drain(ctx, limit, func(ctx context.Context, op domain.WriteOp) error {
			if op.Kind != domain.WriteOpCheckIn {
				logger.WarnContext(ctx, "dropping unknown write-behind op", "kind", op.Kind)
				return nil
			}
			err := participants.SetCheckedIn(ctx, op.EventID, op.EntityID, op.Value)
			if err != nil && !isNotFound(err) {
				return err
			}
			touched[op.EventID] = struct{}{}
			return nil
		})
		if n > 0 {
			logger.InfoContext(ctx, "write-behind check-ins applied", "count", n)
		}
		invalidateCheckIns(ctx, c, touched, logger)
		if err != nil {
			return fmt.Errorf("drain check-ins: %w", err)
		}
		return nil
	}
}

func invalidateCheckIns(ctx context.Context, c domain.Cache, events map[int64]struct{}, logger *slog.Logger) {
	if c == nil || len(events) == 0 {
		return
	}
	keys := make([]string, 0, len(events)+1)
	for id := range events {
		keys = append(keys, cache.ParticipantsKey(id))
	}
	keys = append(keys, cache.AnalyticsSummaryKey)
	if err := c.Delete(ctx, keys...); err != nil {
		logger.WarnContext(ctx, "check-in cache invalidation failed", "keys", keys, "err", err)
	}
}
