// Package metrics holds the Prometheus collectors shared by both binaries.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Circuit breaker gauge values.
const (
	BreakerClosed   = 0
	BreakerOpen     = 1
	BreakerHalfOpen = 2
)

type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	PublishTotal      *prometheus.CounterVec
	PublishDuration   *prometheus.HistogramVec
	BreakerState      *prometheus.GaugeVec
	DLQMessages       *prometheus.CounterVec
	ConsumerProcessed *prometheus.CounterVec
	ConsumerDuration  *prometheus.HistogramVec
	ETLRuns           *prometheus.CounterVec
	ETLRecords        *prometheus.CounterVec
	RateLimited       *prometheus.CounterVec
	CacheRequests     *prometheus.CounterVec
}

// New registers every collector on reg under namespace.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Broker publishes by topic and outcome.",
		}, []string{"topic", "status"}),
		PublishDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Broker publish latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open).",
		}, []string{"name"}),
		DLQMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlq_messages_total",
			Help:      "Messages sent to the dead letter queue.",
		}, []string{"topic", "error_type"}),
		ConsumerProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumer_messages_total",
			Help:      "Consumed messages by topic and outcome.",
		}, []string{"topic", "status"}),
		ConsumerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "consumer_duration_seconds",
			Help:      "Message handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		ETLRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "etl_runs_total",
			Help:      "ETL pipeline runs by outcome.",
		}, []string{"pipeline", "status"}),
		ETLRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "etl_records_total",
			Help:      "Records handled by ETL stage.",
		}, []string{"pipeline", "stage"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Read-through cache lookups by result.",
		}, []string{"result"}),
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObservePublish records one publish attempt chain.
func (m *Metrics) ObservePublish(topic string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.PublishTotal.WithLabelValues(topic, status(err)).Inc()
	m.PublishDuration.WithLabelValues(topic).Observe(d.Seconds())
}

// ObserveConsume records one handled message.
func (m *Metrics) ObserveConsume(topic string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.ConsumerProcessed.WithLabelValues(topic, status(err)).Inc()
	m.ConsumerDuration.WithLabelValues(topic).Observe(d.Seconds())
}

func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) IncDLQ(topic, errorType string) {
	if m == nil {
		return
	}
	m.DLQMessages.WithLabelValues(topic, errorType).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveETL records one pipeline run and its stage counts.
func (m *Metrics) ObserveETL(pipeline string, success bool, extracted, transformed, loaded int) {
	if m == nil {
		return
	}
	st := "success"
	if !success {
		st = "error"
	}
	m.ETLRuns.WithLabelValues(pipeline, st).Inc()
	m.ETLRecords.WithLabelValues(pipeline, "extracted").Add(float64(extracted))
	m.ETLRecords.WithLabelValues(pipeline, "transformed").Add(float64(transformed))
	m.ETLRecords.WithLabelValues(pipeline, "loaded").Add(float64(loaded))
}
