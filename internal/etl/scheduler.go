package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrUnknownPipeline is returned by RunOnce for an unregistered name.
var ErrUnknownPipeline = errors.New("unknown pipeline")

type task struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// Scheduler runs pipelines and plain tasks on fixed intervals.
type Scheduler struct {
	Logger *slog.Logger

	mu        sync.Mutex
	pipelines map[string]*Pipeline
	tasks     []task
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{Logger: logger, pipelines: map[string]*Pipeline{}}
}

// Register schedules p every interval.
func (s *Scheduler) Register(p *Pipeline, interval time.Duration) {
	s.mu.Lock()
	s.pipelines[p.Name] = p
	s.mu.Unlock()
	s.Every(p.Name, interval, func(ctx context.Context) error {
		_, err := p.Run(ctx)
		return err
	})
	s.Logger.Info("etl pipeline registered", "pipeline", p.Name, "interval", interval.String())
}

// Every schedules fn every interval.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task{name: name, interval: interval, run: fn})
}

// RunOnce runs the named pipeline immediately.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (*RunReport, error) {
	s.mu.Lock()
	p, ok := s.pipelines[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, name)
	}
	return p.Run(ctx)
}

// Start runs every task on its ticker until ctx is cancelled, then waits for in-flight runs.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	tasks := append([]task(nil), s.tasks...)
	s.mu.Unlock()

	s.Logger.InfoContext(ctx, "etl scheduler started", "tasks", len(tasks))
	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(t.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := t.run(ctx); err != nil && ctx.Err() == nil {
						s.Logger.ErrorContext(ctx, "scheduled task failed", "task", t.name, "err", err)
					}
				}
			}
		}()
	}
	wg.Wait()
	s.Logger.Info("etl scheduler stopped")
}
