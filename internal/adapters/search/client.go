// Package search indexes and queries events in Elasticsearch.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olivere/elastic/v7"
)

type Config struct {
	URL      string
	Username string
	Password string
	Index    string
	Logger   *slog.Logger
}

// Connect builds a client for a single-node cluster and pings it.
func Connect(ctx context.Context, cfg Config) (*elastic.Client, error) {
	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(cfg.URL),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
		elastic.SetRetrier(elastic.NewBackoffRetrier(
			elastic.NewExponentialBackoff(100*time.Millisecond, 5*time.Second),
		)),
	}
	if cfg.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}
	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	info, _, err := client.Ping(cfg.URL).Do(pingCtx)
	if err != nil {
		client.Stop()
		return nil, fmt.Errorf("ping elasticsearch: %w", err)
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("elasticsearch connected", "version", info.Version.Number)
	}
	return client, nil
}

// EnsureIndex creates index with EventsMapping when it does not exist.
func EnsureIndex(ctx context.Context, client *elastic.Client, index string) error {
	exists, err := client.IndexExists(index).Do(ctx)
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	if exists {
		return nil
	}
	res, err := client.CreateIndex(index).BodyString(EventsMapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	if !res.Acknowledged {
		return fmt.Errorf("create index %s: not acknowledged", index)
	}
	return nil
}
