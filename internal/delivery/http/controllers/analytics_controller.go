package controllers

import (
	"log/slog"
	"net/http"

	"eventmanager/internal/delivery/http/helpers"
	"eventmanager/internal/domain"
	"eventmanager/internal/services"
)

type AnalyticsController struct {
	Logger  *slog.Logger
	Service domain.AnalyticsService
}

func NewAnalyticsController(logger *slog.Logger, svc domain.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{
		Logger:  logger,
		Service: svc,
	}
}

// seriesParams reads metric, interval and days with their defaults.
func seriesParams(r *http.Request) (metric, interval string, days int) {
	q := r.URL.Query()
	metric = q.Get("metric")
	if metric == "" {
		metric = domain.MetricRegistrations
	}
	interval = q.Get("interval")
	if interval == "" {
		interval = domain.IntervalDay
	}
	return metric, interval, helpers.QueryInt(r, "days", services.DefaultSeriesDays)
}

// Summary godoc
// @Summary Dashboard summary
// @Description Totals, category distribution and fill-rate statistics.
// @Tags analytics
// @Produce json
// @Success 200 {object} helpers.APIResponse{data=domain.AnalyticsSummary}
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /analytics/summary [get]
func (c *AnalyticsController) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := c.Service.Summary(r.Context())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, sum)
}

// TimeSeries godoc
// @Summary Count series
// @Tags analytics
// @Produce json
// @Param metric query string false "events or registrations (default registrations)"
// @Param interval query string false "day, week or month (default day)"
// @Param days query int false "Look-back window in days (default 30)"
// @Success 200 {object} helpers.APIResponse{data=domain.TimeSeries}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /analytics/timeseries [get]
func (c *AnalyticsController) TimeSeries(w http.ResponseWriter, r *http.Request) {
	metric, interval, days := seriesParams(r)
	ts, err := c.Service.TimeSeries(r.Context(), metric, interval, days)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ts)
}

// Trends godoc
// @Summary Series trend
// @Description Least-squares direction of the count series.
// @Tags analytics
// @Produce json
// @Param metric query string false "events or registrations (default registrations)"
// @Param interval query string false "day, week or month (default day)"
// @Param days query int false "Look-back window in days (default 30)"
// @Success 200 {object} helpers.APIResponse{data=domain.TrendReport}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /analytics/trends [get]
func (c *AnalyticsController) Trends(w http.ResponseWriter, r *http.Request) {
	metric, interval, days := seriesParams(r)
	tr, err := c.Service.Trends(r.Context(), metric, interval, days)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, tr)
}

// Clustering godoc
// @Summary Event clusters
// @Description k-means over seats, participant count and fill rate.
// @Tags analytics
// @Produce json
// @Param k query int false "Number of clusters (default 3)"
// @Success 200 {object} helpers.APIResponse{data=domain.ClusteringReport}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /analytics/clustering [get]
func (c *AnalyticsController) Clustering(w http.ResponseWriter, r *http.Request) {
	rep, err := c.Service.Clustering(r.Context(), helpers.QueryInt(r, "k", services.DefaultClusters))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, rep)
}

// Anomalies godoc
// @Summary Anomalous days
// @Description Days whose count lies more than threshold standard deviations from the mean.
// @Tags analytics
// @Produce json
// @Param metric query string false "events or registrations (default registrations)"
// @Param days query int false "Look-back window in days (default 30)"
// @Param threshold query number false "z-score threshold (default 2)"
// @Success 200 {object} helpers.APIResponse{data=domain.AnomalyReport}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /analytics/anomalies [get]
func (c *AnalyticsController) Anomalies(w http.ResponseWriter, r *http.Request) {
	metric, _, days := seriesParams(r)
	threshold := helpers.QueryFloat(r, "threshold", services.DefaultAnomalyThreshold)
	rep, err := c.Service.Anomalies(r.Context(), metric, days, threshold)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, rep)
}

// Associations godoc
// @Summary Category association rules
// @Description Apriori rules over the categories each registrant signed up for.
// @Tags analytics
// @Produce json
// @Param min_support query number false "Minimum support (default 0.1)"
// @Param min_confidence query number false "Minimum confidence (default 0.5)"
// @Success 200 {object} helpers.APIResponse{data=domain.AssociationReport}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /analytics/associations [get]
func (c *AnalyticsController) Associations(w http.ResponseWriter, r *http.Request) {
	rep, err := c.Service.Associations(r.Context(),
		helpers.QueryFloat(r, "min_support", services.DefaultMinSupport),
		helpers.QueryFloat(r, "min_confidence", services.DefaultMinConfidence))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, rep)
}
