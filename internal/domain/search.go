package domain

import (
	"context"
	"time"
)

// SearchQuery describes a full-text event search.
type SearchQuery struct {
	Text     string
	Category string
	Location string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}

// SearchHit is one matching event with highlighted fragments.
// swagger:model SearchHit
type SearchHit struct {
	Event      Event               `json:"event"`
	Score      float64             `json:"score"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// SearchResult is a page of hits plus facet counts.
// swagger:model SearchResult
type SearchResult struct {
	Total        int64                       `json:"total"`
	Page         int                         `json:"page"`
	PageSize     int                         `json:"page_size"`
	Hits         []SearchHit                 `json:"hits"`
	Aggregations map[string]map[string]int64 `json:"aggregations"`
	TookMs       int64                       `json:"took_ms"`
	Backend      string                      `json:"backend"`
}

// EventSearcher answers search and suggestion queries.
type EventSearcher interface {
	Search(ctx context.Context, q SearchQuery) (*SearchResult, error)
	Suggest(ctx context.Context, prefix string, size int) ([]string, error)
}

// EventIndexer keeps the search index in step with the database.
type EventIndexer interface {
	Index(ctx context.Context, e *Event) error
	BulkIndex(ctx context.Context, events []*Event) (int, error)
	Delete(ctx context.Context, id int64) error
}
