package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmanager/internal/delivery/http/middleware"
	"eventmanager/internal/domain"
)

func TestAuditController_ListLogs(t *testing.T) {
	fake := &fakeAuditService{logs: []*domain.AuditLog{{ID: 2}, {ID: 1}}}
	ctrl := NewAuditController(testLogger, fake)
	req := httptest.NewRequest(http.MethodGet, "/audit/logs?action=login&category=security&resource_type=event&from=2026-04-01&limit=5&offset=10", nil)
	rr := httptest.NewRecorder()

	ctrl.ListLogs(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var logs []domain.AuditLog
	decodeData(t, rr, &logs)
	assert.Len(t, logs, 2)
	f := fake.lastFilter
	assert.Equal(t, domain.AuditLogin, f.Action)
	assert.Equal(t, domain.AuditCategorySecurity, f.Category)
	assert.Equal(t, "event", f.ResourceType)
	require.NotNil(t, f.From)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *f.From)
	assert.Nil(t, f.To)
	assert.Equal(t, 5, f.Limit)
	assert.Equal(t, 10, f.Offset)

	rr = httptest.NewRecorder()
	ctrl.ListLogs(rr, httptest.NewRequest(http.MethodGet, "/audit/logs?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuditController_VerifyChain(t *testing.T) {
	fake := &fakeAuditService{result: &domain.ChainVerification{Valid: false, Checked: 3,
		Issues: []domain.ChainIssue{{ID: 2, Type: domain.IssueHashMismatch}}}}
	ctrl := NewAuditController(testLogger, fake)

	rr := httptest.NewRecorder()
	ctrl.VerifyChain(rr, httptest.NewRequest(http.MethodGet, "/audit/verify?start_id=1&end_id=3", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got domain.ChainVerification
	decodeData(t, rr, &got)
	assert.False(t, got.Valid)
	assert.Equal(t, domain.IssueHashMismatch, got.Issues[0].Type)
	require.NotNil(t, fake.lastStart)
	assert.Equal(t, int64(1), *fake.lastStart)
	assert.Equal(t, int64(3), *fake.lastEnd)

	rr = httptest.NewRecorder()
	ctrl.VerifyChain(rr, httptest.NewRequest(http.MethodGet, "/audit/verify?start_id=one", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCacheController(t *testing.T) {
	cache := &fakeCache{cleared: 12}
	audit := &fakeAuditService{}
	ctrl := NewCacheController(testLogger, cache, audit)

	req := httptest.NewRequest(http.MethodDelete, "/cache", nil)
	req = req.WithContext(middleware.SetClaims(req.Context(), domain.Claims{UserID: 1, Username: "root", Role: domain.RoleAdmin}))
	rr := httptest.NewRecorder()
	ctrl.Clear(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got ClearCacheResponse
	decodeData(t, rr, &got)
	assert.Equal(t, 12, got.Deleted)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, domain.AuditCategorySystem, audit.entries[0].Category)
	assert.Equal(t, "1", audit.entries[0].UserID)

	rr = httptest.NewRecorder()
	ctrl.Health(rr, httptest.NewRequest(http.MethodGet, "/cache/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), StatusHealthy)

	cache.err = errors.New("dial tcp: connection refused")
	rr = httptest.NewRecorder()
	ctrl.Health(rr, httptest.NewRequest(http.MethodGet, "/cache/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var health HealthResponse
	decodeData(t, rr, &health)
	assert.Equal(t, StatusUnhealthy, health.Status)
	assert.Contains(t, health.Checks["redis"], "connection refused")
}

func TestAnalyticsController(t *testing.T) {
	fake := &fakeAnalyticsService{}
	ctrl := NewAnalyticsController(testLogger, fake)
	get := func(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h(rr, httptest.NewRequest(http.MethodGet, target, nil))
		return rr
	}

	require.Equal(t, http.StatusOK, get(ctrl.Summary, "/analytics/summary").Code)

	require.Equal(t, http.StatusOK, get(ctrl.TimeSeries, "/analytics/timeseries").Code)
	assert.Equal(t, domain.MetricRegistrations, fake.metric)
	assert.Equal(t, domain.IntervalDay, fake.interval)
	assert.Equal(t, 30, fake.days)

	require.Equal(t, http.StatusOK, get(ctrl.Trends, "/analytics/trends?metric=events&interval=month&days=90").Code)
	assert.Equal(t, domain.MetricEvents, fake.metric)
	assert.Equal(t, domain.IntervalMonth, fake.interval)
	assert.Equal(t, 90, fake.days)

	require.Equal(t, http.StatusOK, get(ctrl.Clustering, "/analytics/clustering?k=4").Code)
	assert.Equal(t, 4, fake.k)

	require.Equal(t, http.StatusOK, get(ctrl.Anomalies, "/analytics/anomalies?threshold=2.5").Code)
	assert.InDelta(t, 2.5, fake.threshold, 1e-9)

	require.Equal(t, http.StatusOK, get(ctrl.Associations, "/analytics/associations?min_support=0.2").Code)
	assert.InDelta(t, 0.2, fake.support, 1e-9)
	assert.InDelta(t, 0.5, fake.conf, 1e-9)

	fake.err = domain.NewValidationError([]string{"unknown metric"})
	rr := get(ctrl.TimeSeries, "/analytics/timeseries?metric=revenue")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSearchController(t *testing.T) {
	searcher := &fakeSearcher{}
	events := &fakeEventService{reindexed: 7}
	ctrl := NewSearchController(testLogger, searcher, events)

	rr := httptest.NewRecorder()
	ctrl.Search(rr, httptest.NewRequest(http.MethodGet, "/events/search?q=+gopher+&category=Conference&date_from=2026-01-01&page=2", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var res domain.SearchResult
	decodeData(t, rr, &res)
	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, "gopher", searcher.lastQuery.Text)
	assert.Equal(t, "Conference", searcher.lastQuery.Category)
	assert.Equal(t, 2, searcher.lastQuery.Page)
	require.NotNil(t, searcher.lastQuery.DateFrom)
	assert.Nil(t, searcher.lastQuery.DateTo)

	rr = httptest.NewRecorder()
	ctrl.Search(rr, httptest.NewRequest(http.MethodGet, "/events/search?date_to=soon", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	ctrl.Suggest(rr, httptest.NewRequest(http.MethodGet, "/events/suggest?q=Go&size=99", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":[],"error":null}`, rr.Body.String())
	assert.Equal(t, defaultSuggestSize, searcher.lastSize)

	rr = httptest.NewRecorder()
	ctrl.Suggest(rr, httptest.NewRequest(http.MethodGet, "/events/suggest", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	ctrl.Reindex(rr, httptest.NewRequest(http.MethodPost, "/search/reindex", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var re ReindexResponse
	decodeData(t, rr, &re)
	assert.Equal(t, 7, re.Indexed)
}

func TestHealthController(t *testing.T) {
	ctrl := NewHealthController(testLogger, map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return nil },
	})

	rr := httptest.NewRecorder()
	ctrl.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	ctrl.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var ready HealthResponse
	decodeData(t, rr, &ready)
	assert.Equal(t, map[string]string{"postgres": StatusOK, "redis": StatusOK}, ready.Checks)

	ctrl.Checks["kafka"] = func(context.Context) error { return errors.New("no brokers") }
	rr = httptest.NewRecorder()
	ctrl.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	decodeData(t, rr, &ready)
	assert.Equal(t, StatusDegraded, ready.Status)
	assert.Equal(t, "no brokers", ready.Checks["kafka"])
}
