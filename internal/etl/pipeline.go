// Package etl moves records from an extractor through transformers into a loader.
package etl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eventmanager/internal/clock"
	"eventmanager/internal/metrics"
)

// Record is one row flowing through a pipeline.
type Record map[string]any

// Extractor emits records until exhausted. Returning an error from emit stops extraction.
type Extractor interface {
	Extract(ctx context.Context, emit func(Record) error) error
}

// Transformer rewrites a record. A nil record with a nil error drops it.
type Transformer interface {
	Transform(ctx context.Context, rec Record) (Record, error)
}

// Loader writes a batch and reports how many records were stored.
type Loader interface {
	Load(ctx context.Context, batch []Record) (int, error)
}

// RunReport summarises one pipeline run.
type RunReport struct {
	PipelineID  string        `json:"pipeline_id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Extracted   int           `json:"records_extracted"`
	Transformed int           `json:"records_transformed"`
	Dropped     int           `json:"records_dropped"`
	Loaded      int           `json:"records_loaded"`
	Errors      []string      `json:"errors"`
	Success     bool          `json:"success"`
}

const DefaultBatchSize = 100

type Pipeline struct {
	Name         string
	Extractor    Extractor
	Transformers []Transformer
	Loader       Loader
	BatchSize    int
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Clock        clock.Clock
}

// Run executes the pipeline once. Record-level failures are collected in the report; only
// context cancellation is returned as an error.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	c := p.Clock
	if c == nil {
		c = clock.NewSystem()
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := p.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	start := c.Now()
	rep := &RunReport{PipelineID: fmt.Sprintf("%s_%s", p.Name, start.Format("20060102_150405")), StartedAt: start}
	logger.InfoContext(ctx, "etl pipeline started", "pipeline", p.Name, "run", rep.PipelineID)

	batch := make([]Record, 0, size)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := p.Loader.Load(ctx, batch)
		rep.Loaded += n
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("load: %v", err))
		}
		batch = batch[:0]
	}

	err := p.Extractor.Extract(ctx, func(rec Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.Extracted++
		out, terr := p.transform(ctx, rec)
		if terr != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("transform: %v", terr))
			rep.Dropped++
			return nil
		}
		if out == nil {
			rep.Dropped++
			return nil
		}
		rep.Transformed++
		batch = append(batch, out)
		if len(batch) >= size {
			flush()
		}
		return nil
	})
	if err != nil {
		rep.Errors = append(rep.Errors, fmt.Sprintf("extract: %v", err))
	}
	if ctx.Err() == nil {
		flush()
	}

	rep.Duration = c.Now().Sub(start)
	rep.Success = len(rep.Errors) == 0
	p.Metrics.ObserveETL(p.Name, rep.Success, rep.Extracted, rep.Transformed, rep.Loaded)

	attrs := []any{"pipeline", p.Name, "run", rep.PipelineID, "extracted", rep.Extracted,
		"transformed", rep.Transformed, "loaded", rep.Loaded, "errors", len(rep.Errors)}
	if rep.Success {
		logger.InfoContext(ctx, "etl pipeline finished", attrs...)
	} else {
		logger.WarnContext(ctx, "etl pipeline finished with errors", attrs...)
	}
	return rep, ctx.Err()
}

func (p *Pipeline) transform(ctx context.Context, rec Record) (Record, error) {
	for _, t := range p.Transformers {
		var err error
		rec, err = t.Transform(ctx, rec)
		if err != nil || rec == nil {
			return nil, err
		}
	}
	return rec, nil
}
