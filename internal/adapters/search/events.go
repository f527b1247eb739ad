package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/olivere/elastic/v7"

	"eventmanager/internal/domain"
)

const suggestName = "title-suggest"

type eventDoc struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	Seats       int       `json:"seats"`
	CreatedAt   time.Time `json:"created_at"`
}

func toDoc(e *domain.Event) eventDoc {
	return eventDoc{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Category:    e.Category,
		Date:        e.Date,
		Seats:       e.Seats,
		CreatedAt:   e.CreatedAt,
	}
}

func (d eventDoc) event() domain.Event {
	return domain.Event{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Location:    d.Location,
		Category:    d.Category,
		Date:        d.Date,
		Seats:       d.Seats,
		CreatedAt:   d.CreatedAt,
	}
}

func docID(id int64) string { return strconv.FormatInt(id, 10) }

// EventIndex is the Elasticsearch side of event search. It implements both
// domain.EventSearcher and domain.EventIndexer.
type EventIndex struct {
	client *elastic.Client
	index  string
	logger *slog.Logger
}

func NewEventIndex(client *elastic.Client, index string, logger *slog.Logger) *EventIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventIndex{client: client, index: index, logger: logger}
}

func (x *EventIndex) Index(ctx context.Context, e *domain.Event) error {
	_, err := x.client.Index().
		Index(x.index).
		Id(docID(e.ID)).
		BodyJson(toDoc(e)).
		Refresh("true").
		Do(ctx)
	if err != nil {
		return fmt.Errorf("index event %d: %w", e.ID, err)
	}
	return nil
}

// BulkIndex indexes events in one request and returns how many succeeded.
func (x *EventIndex) BulkIndex(ctx context.Context, events []*domain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	bulk := x.client.Bulk().Index(x.index)
	for _, e := range events {
		bulk.Add(elastic.NewBulkIndexRequest().Id(docID(e.ID)).Doc(toDoc(e)))
	}
	res, err := bulk.Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulk index %d events: %w", len(events), err)
	}
	if failed := res.Failed(); len(failed) > 0 {
		x.logger.WarnContext(ctx, "bulk index partially failed", "failed", len(failed), "first_error", failed[0].Error)
	}
	return len(res.Succeeded()), nil
}

// Delete removes the event document. A missing document is not an error.
func (x *EventIndex) Delete(ctx context.Context, id int64) error {
	_, err := x.client.Delete().Index(x.index).Id(docID(id)).Refresh("true").Do(ctx)
	if err != nil && !elastic.IsNotFound(err) {
		return fmt.Errorf("delete event %d from index: %w", id, err)
	}
	return nil
}

func (x *EventIndex) query(q domain.SearchQuery) elastic.Query {
	bq := elastic.NewBoolQuery()
	if q.Text != "" {
		bq.Must(elastic.NewMultiMatchQuery(q.Text, "title^3", "description^2", "location").
			Type("best_fields").
			Fuzziness("AUTO").
			PrefixLength(2))
	} else {
		bq.Must(elastic.NewMatchAllQuery())
	}
	if q.Category != "" {
		bq.Filter(elastic.NewTermQuery("category", q.Category))
	}
	if q.Location != "" {
		bq.Filter(elastic.NewMatchQuery("location", q.Location).Fuzziness("AUTO"))
	}
	if q.DateFrom != nil || q.DateTo != nil {
		r := elastic.NewRangeQuery("date")
		if q.DateFrom != nil {
			r.Gte(q.DateFrom.UTC().Format(time.RFC3339))
		}
		if q.DateTo != nil {
			r.Lte(q.DateTo.UTC().Format(time.RFC3339))
		}
		bq.Filter(r)
	}
	return bq
}

func (x *EventIndex) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	page, size := normalizePage(q.Page, q.PageSize)

	res, err := x.client.Search().
		Index(x.index).
		Query(x.query(q)).
		Highlight(elastic.NewHighlight().
			PreTags("<mark>").
			PostTags("</mark>").
			Fields(
				elastic.NewHighlighterField("title").NumOfFragments(0),
				elastic.NewHighlighterField("description").NumOfFragments(3).FragmentSize(150),
			)).
		Aggregation("categories", elastic.NewTermsAggregation().Field("category").Size(20)).
		Aggregation("locations", elastic.NewTermsAggregation().Field("location.keyword").Size(20)).
		SortBy(elastic.NewScoreSort(), elastic.NewFieldSort("date").Asc()).
		From((page - 1) * size).
		Size(size).
		TrackTotalHits(true).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}

	out := &domain.SearchResult{
		Total:        res.TotalHits(),
		Page:         page,
		PageSize:     size,
		Hits:         make([]domain.SearchHit, 0, len(res.Hits.Hits)),
		Aggregations: map[string]map[string]int64{},
		TookMs:       res.TookInMillis,
		Backend:      "elasticsearch",
	}
	for _, hit := range res.Hits.Hits {
		var doc eventDoc
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			x.logger.WarnContext(ctx, "skipping undecodable search hit", "id", hit.Id, "err", err)
			continue
		}
		h := domain.SearchHit{Event: doc.event(), Highlights: hit.Highlight}
		if hit.Score != nil {
			h.Score = *hit.Score
		}
		out.Hits = append(out.Hits, h)
	}
	for _, name := range []string{"categories", "locations"} {
		counts := map[string]int64{}
		if agg, ok := res.Aggregations.Terms(name); ok {
			for _, b := range agg.Buckets {
				counts[fmt.Sprint(b.Key)] = b.DocCount
			}
		}
		out.Aggregations[name] = counts
	}
	return out, nil
}

// Suggest completes title prefixes, tolerating one edit.
func (x *EventIndex) Suggest(ctx context.Context, prefix string, size int) ([]string, error) {
	if prefix == "" {
		return []string{}, nil
	}
	if size <= 0 {
		size = 5
	}
	s := elastic.NewCompletionSuggester(suggestName).
		Field("title.suggest").
		PrefixWithEditDistance(prefix, 1).
		SkipDuplicates(true).
		Size(size)
	res, err := x.client.Search().Index(x.index).Suggester(s).FetchSource(false).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest %q: %w", prefix, err)
	}
	out := []string{}
	for _, sg := range res.Suggest[suggestName] {
		for _, opt := range sg.Options {
			out = append(out, opt.Text)
		}
	}
	return out, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
