package domain

import (
	"context"
	"time"
)

// Series metrics and bucket intervals accepted by time-series queries.
const (
	MetricEvents        = "events"
	MetricRegistrations = "registrations"

	IntervalDay   = "day"
	IntervalWeek  = "week"
	IntervalMonth = "month"
)

// EventFillStat is the per-event occupancy row used by summaries and clustering.
type EventFillStat struct {
	EventID      int64   `json:"event_id"`
	Title        string  `json:"title"`
	Category     string  `json:"category"`
	Seats        int     `json:"seats"`
	Participants int     `json:"participants"`
	CheckedIn    int     `json:"checked_in"`
	FillRate     float64 `json:"fill_rate"`
}

// FillRateStats summarises fill rates in percent.
type FillRateStats struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// AnalyticsSummary is the dashboard headline.
// swagger:model AnalyticsSummary
type AnalyticsSummary struct {
	TotalEvents             int            `json:"total_events"`
	TotalParticipants       int            `json:"total_participants"`
	TotalCheckedIn          int            `json:"total_checked_in"`
	AvgParticipantsPerEvent float64        `json:"avg_participants_per_event"`
	CategoryDistribution    map[string]int `json:"category_distribution"`
	FillRate                FillRateStats  `json:"fill_rate"`
	GeneratedAt             time.Time      `json:"generated_at"`
}

// TimePoint is one bucket of a count series.
type TimePoint struct {
	Bucket time.Time `json:"bucket"`
	Count  int       `json:"count"`
}

// TimeSeries is a count series for a metric.
// swagger:model TimeSeries
type TimeSeries struct {
	Metric   string      `json:"metric"`
	Interval string      `json:"interval"`
	Points   []TimePoint `json:"points"`
}

// TrendReport is a series with its fitted direction.
// swagger:model TrendReport
type TrendReport struct {
	TimeSeries
	Trend string  `json:"trend"`
	Slope float64 `json:"slope"`
}

// ClusterSummary describes one k-means cluster of events.
type ClusterSummary struct {
	Cluster      int                `json:"cluster"`
	Size         int                `json:"size"`
	Centroid     []float64          `json:"centroid"`
	FeatureMeans map[string]float64 `json:"feature_means"`
	EventIDs     []int64            `json:"event_ids"`
}

// ClusteringReport groups events by occupancy profile.
// swagger:model ClusteringReport
type ClusteringReport struct {
	K        int              `json:"k"`
	Features []string         `json:"features"`
	Clusters []ClusterSummary `json:"clusters"`
}

// AnomalyPoint is a bucket whose value deviates beyond the threshold.
type AnomalyPoint struct {
	Bucket   time.Time `json:"bucket"`
	Value    float64   `json:"value"`
	ZScore   float64   `json:"z_score"`
	Type     string    `json:"type"`
	Severity string    `json:"severity"`
}

// AnomalyReport lists anomalous buckets of a daily series.
// swagger:model AnomalyReport
type AnomalyReport struct {
	Metric    string         `json:"metric"`
	Checked   int            `json:"checked"`
	Mean      float64        `json:"mean"`
	Std       float64        `json:"std"`
	Threshold float64        `json:"threshold"`
	Upper     float64        `json:"upper_threshold"`
	Lower     float64        `json:"lower_threshold"`
	Anomalies []AnomalyPoint `json:"anomalies"`
}

// AssociationRuleView is an association rule between event categories.
type AssociationRuleView struct {
	Antecedent []string `json:"antecedent"`
	Consequent []string `json:"consequent"`
	Support    float64  `json:"support"`
	Confidence float64  `json:"confidence"`
	Lift       float64  `json:"lift"`
}

// AssociationReport lists category co-registration rules.
// swagger:model AssociationReport
type AssociationReport struct {
	Transactions     int                   `json:"transactions"`
	FrequentItemsets int                   `json:"frequent_itemsets"`
	Rules            []AssociationRuleView `json:"rules"`
}

// AnalyticsRepository reads aggregate data for reporting.
type AnalyticsRepository interface {
	EventFillStats(ctx context.Context) ([]EventFillStat, error)
	CountSeries(ctx context.Context, metric, interval string, since time.Time) ([]TimePoint, error)
	// CategoryBaskets returns, per registrant email, the categories of events they joined.
	CategoryBaskets(ctx context.Context) ([][]string, error)
}

// AnalyticsService computes dashboard analytics.
type AnalyticsService interface {
	Summary(ctx context.Context) (*AnalyticsSummary, error)
	TimeSeries(ctx context.Context, metric, interval string, days int) (*TimeSeries, error)
	Trends(ctx context.Context, metric, interval string, days int) (*TrendReport, error)
	Clustering(ctx context.Context, k int) (*ClusteringReport, error)
	Anomalies(ctx context.Context, metric string, days int, threshold float64) (*AnomalyReport, error)
	Associations(ctx context.Context, minSupport, minConfidence float64) (*AssociationReport, error)
}

// AnalyticsDocument is the event.created document stored by the analytics consumer.
type AnalyticsDocument struct {
	EventID  int64     `bson:"event_id" json:"event_id"`
	Title    string    `bson:"title" json:"title"`
	Location string    `bson:"location,omitempty" json:"location,omitempty"`
	Category string    `bson:"category,omitempty" json:"category,omitempty"`
	Seats    int       `bson:"seats" json:"seats"`
	TS       time.Time `bson:"ts" json:"ts"`
}

// ActivityDocument records every consumed domain message.
type ActivityDocument struct {
	Topic         string         `bson:"topic"`
	MessageID     string         `bson:"message_id"`
	EventID       int64          `bson:"event_id"`
	ParticipantID int64          `bson:"participant_id,omitempty"`
	Payload       map[string]any `bson:"payload"`
	ReceivedAt    time.Time      `bson:"received_at"`
}

// AnalyticsStore is the analytics-service document store. UpsertEvent and
// RecordActivity are idempotent: redelivered messages leave one document.
type AnalyticsStore interface {
	UpsertEvent(ctx context.Context, doc AnalyticsDocument) error
	MarkEventDeleted(ctx context.Context, eventID int64, at time.Time) error
	RecordActivity(ctx context.Context, doc ActivityDocument) error
	UpsertSnapshots(ctx context.Context, key string, docs []map[string]any) (int, error)
}
