package services

import (
	"context"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"

	"eventmanager/internal/adapters/cache"
	"eventmanager/internal/analytics"
	"eventmanager/internal/clock"
	"eventmanager/internal/domain"
)

// Analytics defaults applied when a parameter is zero.
const (
	DefaultSeriesDays       = 30
	DefaultClusters         = 3
	DefaultAnomalyThreshold = 2.0
	DefaultMinSupport       = 0.1
	DefaultMinConfidence    = 0.5

	clusterSeed = 42
)

var clusterFeatures = []string{"seats", "participant_count", "fill_rate"}

type analyticsService struct {
	repo           domain.AnalyticsRepository
	cache          *cache.ReadThrough
	clock          clock.Clock
	contextTimeout time.Duration
}

// NewAnalyticsService returns an AnalyticsService reading from repo. readThrough may be nil.
func NewAnalyticsService(repo domain.AnalyticsRepository, readThrough *cache.ReadThrough, clk clock.Clock, timeout time.Duration) domain.AnalyticsService {
	return &analyticsService{repo: repo, cache: readThrough, clock: clk, contextTimeout: timeout}
}

func (s *analyticsService) Summary(ctx context.Context) (*domain.AnalyticsSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return cache.GetOrLoad(ctx, s.cache, cache.AnalyticsSummaryKey, s.loadSummary)
}

func (s *analyticsService) loadSummary(ctx context.Context) (*domain.AnalyticsSummary, error) {
	rows, err := s.repo.EventFillStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("event fill stats: %w", err)
	}

	out := &domain.AnalyticsSummary{
		TotalEvents:          len(rows),
		CategoryDistribution: map[string]int{},
		GeneratedAt:          s.clock.Now(),
	}
	rates := make(stats.Float64Data, 0, len(rows))
	for _, r := range rows {
		out.TotalParticipants += r.Participants
		out.TotalCheckedIn += r.CheckedIn
		category := r.Category
		if category == "" {
			category = "Uncategorized"
		}
		out.CategoryDistribution[category]++
		rates = append(rates, r.FillRate)
	}
	if len(rows) == 0 {
		return out, nil
	}

	avg, _ := stats.Round(float64(out.TotalParticipants)/float64(len(rows)), 2)
	out.AvgParticipantsPerEvent = avg
	mean, _ := rates.Mean()
	lo, _ := rates.Min()
	hi, _ := rates.Max()
	out.FillRate.Average, _ = stats.Round(mean, 2)
	out.FillRate.Min, _ = stats.Round(lo, 2)
	out.FillRate.Max, _ = stats.Round(hi, 2)
	return out, nil
}

func (s *analyticsService) TimeSeries(ctx context.Context, metric, interval string, days int) (*domain.TimeSeries, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.series(ctx, metric, interval, days)
}

func (s *analyticsService) series(ctx context.Context, metric, interval string, days int) (*domain.TimeSeries, error) {
	switch metric {
	case domain.MetricEvents, domain.MetricRegistrations:
	default:
		return nil, fmt.Errorf("unknown metric %q: %w", metric, domain.ErrInvalidInput)
	}
	switch interval {
	case domain.IntervalDay, domain.IntervalWeek, domain.IntervalMonth:
	default:
		return nil, fmt.Errorf("unknown interval %q: %w", interval, domain.ErrInvalidInput)
	}
	if days <= 0 {
		days = DefaultSeriesDays
	}

	since := s.clock.Now().AddDate(0, 0, -days)
	points, err := s.repo.CountSeries(ctx, metric, interval, since)
	if err != nil {
		return nil, fmt.Errorf("count series: %w", err)
	}
	if points == nil {
		points = []domain.TimePoint{}
	}
	return &domain.TimeSeries{Metric: metric, Interval: interval, Points: points}, nil
}

func (s *analyticsService) Trends(ctx context.Context, metric, interval string, days int) (*domain.TrendReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	ts, err := s.series(ctx, metric, interval, days)
	if err != nil {
		return nil, err
	}
	trend := analytics.DetectTrend(counts(ts.Points))
	return &domain.TrendReport{TimeSeries: *ts, Trend: trend.Trend, Slope: trend.Slope}, nil
}

func (s *analyticsService) Clustering(ctx context.Context, k int) (*domain.ClusteringReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if k <= 0 {
		k = DefaultClusters
	}
	rows, err := s.repo.EventFillStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("event fill stats: %w", err)
	}
	if len(rows) < k {
		return nil, fmt.Errorf("need at least %d events to build %d clusters, have %d: %w", k, k, len(rows), domain.ErrInvalidInput)
	}

	data := make([][]float64, len(rows))
	for i, r := range rows {
		data[i] = []float64{float64(r.Seats), float64(r.Participants), r.FillRate}
	}
	model := analytics.NewKMeans(k, clusterSeed)
	if err := model.Fit(data); err != nil {
		return nil, fmt.Errorf("fit clusters: %w", err)
	}

	out := &domain.ClusteringReport{K: k, Features: clusterFeatures}
	for _, st := range model.ClusterStats(data) {
		summary := domain.ClusterSummary{
			Cluster:      st.Cluster,
			Size:         st.Size,
			Centroid:     st.Centroid,
			FeatureMeans: map[string]float64{},
			EventIDs:     []int64{},
		}
		for f, mean := range st.FeatureMeans {
			summary.FeatureMeans[clusterFeatures[f]] = mean
		}
		for i, label := range model.Labels {
			if label == st.Cluster {
				summary.EventIDs = append(summary.EventIDs, rows[i].EventID)
			}
		}
		out.Clusters = append(out.Clusters, summary)
	}
	return out, nil
}

func (s *analyticsService) Anomalies(ctx context.Context, metric string, days int, threshold float64) (*domain.AnomalyReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}
	ts, err := s.series(ctx, metric, domain.IntervalDay, days)
	if err != nil {
		return nil, err
	}
	points := fillDays(ts.Points)
	values := counts(points)

	detector := analytics.NewAnomalyDetector(threshold).Fit(values)
	lower, upper := detector.Bounds()
	out := &domain.AnomalyReport{
		Metric:    metric,
		Checked:   len(values),
		Threshold: threshold,
		Anomalies: []domain.AnomalyPoint{},
	}
	out.Mean, _ = stats.Round(detector.Mean, 4)
	out.Std, _ = stats.Round(detector.Std, 4)
	out.Lower, _ = stats.Round(lower, 4)
	out.Upper, _ = stats.Round(upper, 4)
	for _, a := range detector.Detect(values) {
		out.Anomalies = append(out.Anomalies, domain.AnomalyPoint{
			Bucket:   points[a.Index].Bucket,
			Value:    a.Value,
			ZScore:   a.ZScore,
			Type:     a.Type,
			Severity: a.Severity,
		})
	}
	return out, nil
}

func (s *analyticsService) Associations(ctx context.Context, minSupport, minConfidence float64) (*domain.AssociationReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if minSupport <= 0 {
		minSupport = DefaultMinSupport
	}
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	baskets, err := s.repo.CategoryBaskets(ctx)
	if err != nil {
		return nil, fmt.Errorf("category baskets: %w", err)
	}

	model := analytics.NewAssociationRules(minSupport, minConfidence).Fit(baskets)
	out := &domain.AssociationReport{
		Transactions:     len(baskets),
		FrequentItemsets: len(model.Frequent),
		Rules:            []domain.AssociationRuleView{},
	}
	for _, r := range model.Rules(0) {
		out.Rules = append(out.Rules, domain.AssociationRuleView(r))
	}
	return out, nil
}

func counts(points []domain.TimePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = float64(p.Count)
	}
	return out
}

// fillDays inserts zero buckets for days missing between the first and last point.
func fillDays(points []domain.TimePoint) []domain.TimePoint {
	if len(points) < 2 {
		return points
	}
	byDay := make(map[int64]int, len(points))
	for _, p := range points {
		byDay[p.Bucket.UTC().Truncate(24*time.Hour).Unix()] += p.Count
	}
	first := points[0].Bucket.UTC().Truncate(24 * time.Hour)
	last := points[len(points)-1].Bucket.UTC().Truncate(24 * time.Hour)

	var out []domain.TimePoint
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, domain.TimePoint{Bucket: d, Count: byDay[d.Unix()]})
	}
	return out
}
