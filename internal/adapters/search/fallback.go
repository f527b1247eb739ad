package search

import (
	"context"
	"log/slog"

	"eventmanager/internal/domain"
)

type fallbackSearcher struct {
	primary  domain.EventSearcher
	fallback domain.EventSearcher
	logger   *slog.Logger
}

// NewFallbackSearcher queries primary and answers from fallback when primary is nil or fails.
func NewFallbackSearcher(primary, fallback domain.EventSearcher, logger *slog.Logger) domain.EventSearcher {
	return &fallbackSearcher{primary: primary, fallback: fallback, logger: logger}
}

func (s *fallbackSearcher) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	if s.primary != nil {
		res, err := s.primary.Search(ctx, q)
		if err == nil {
			return res, nil
		}
		s.logger.WarnContext(ctx, "search backend failed, using fallback", "err", err)
	}
	return s.fallback.Search(ctx, q)
}

func (s *fallbackSearcher) Suggest(ctx context.Context, prefix string, size int) ([]string, error) {
	if s.primary != nil {
		res, err := s.primary.Suggest(ctx, prefix, size)
		if err == nil {
			return res, nil
		}
		s.logger.WarnContext(ctx, "suggest backend failed, using fallback", "err", err)
	}
	return s.fallback.Suggest(ctx, prefix, size)
}

type noopIndexer struct{}

// NoopIndexer is used when no search cluster is configured.
func NoopIndexer() domain.EventIndexer { return noopIndexer{} }

func (noopIndexer) Index(context.Context, *domain.Event) error { return nil }
func (noopIndexer) BulkIndex(_ context.Context, events []*domain.Event) (int, error) {
	return 0, nil
}
func (noopIndexer) Delete(context.Context, int64) error { return nil }
