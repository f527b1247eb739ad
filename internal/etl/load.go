package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventmanager/internal/domain"
)

// MongoLoader upserts batches into the analytics snapshot collection keyed by Key.
type MongoLoader struct {
	Store domain.AnalyticsStore
	Key   string
}

func (l *MongoLoader) Load(ctx context.Context, batch []Record) (int, error) {
	docs := make([]map[string]any, len(batch))
	for i, rec := range batch {
		docs[i] = rec
	}
	return l.Store.UpsertSnapshots(ctx, l.Key, docs)
}

// SearchLoader bulk indexes event records.
type SearchLoader struct {
	Indexer domain.EventIndexer
}

func (l *SearchLoader) Load(ctx context.Context, batch []Record) (int, error) {
	events := make([]*domain.Event, 0, len(batch))
	var skipped int
	for _, rec := range batch {
		e, ok := recordToEvent(rec)
		if !ok {
			skipped++
			continue
		}
		events = append(events, e)
	}
	n, err := l.Indexer.BulkIndex(ctx, events)
	if err == nil && skipped > 0 {
		err = fmt.Errorf("%d records without an event id", skipped)
	}
	return n, err
}

func recordToEvent(rec Record) (*domain.Event, bool) {
	idv, ok := rec["event_id"]
	if !ok {
		idv = rec["id"]
	}
	id, err := toFloat(idv)
	if err != nil || id <= 0 {
		return nil, false
	}
	seats, _ := toFloat(rec["seats"])
	e := &domain.Event{
		ID:          int64(id),
		Title:       str(rec["title"]),
		Description: str(rec["description"]),
		Location:    str(rec["location"]),
		Category:    str(rec["category"]),
		Seats:       int(seats),
	}
	if d, ok := rec["date"].(time.Time); ok {
		e.Date = d
	}
	return e, true
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
