package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eventmanager/internal/delivery/http/helpers"
	"eventmanager/internal/domain"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

var testDate = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

// decodeEnvelope decodes the response body and returns the envelope with Data re-encoded as raw JSON.
func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) (helpers.APIResponse, json.RawMessage) {
	t.Helper()
	var envelope struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope), "response must be valid JSON envelope")
	return helpers.APIResponse{Data: envelope.Data, Error: envelope.Error}, envelope.Data
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope, data := decodeEnvelope(t, rr)
	require.Nil(t, envelope.Error, "success response must have error nil")
	require.NoError(t, json.Unmarshal(data, dest))
}

// fakeEventService implements domain.EventService for handler tests.
type fakeEventService struct {
	err          error
	events       []*domain.Event
	total        int
	details      *domain.EventDetails
	reindexed    int
	lastParams   domain.PaginationParams
	lastInput    domain.EventInput
	lastUpdate   domain.EventUpdate
	lastID       int64
	lastActor    domain.Actor
	deleteCalled bool
}

func (f *fakeEventService) ListEvents(ctx context.Context, params domain.PaginationParams) ([]*domain.Event, int, error) {
	f.lastParams = params
	return f.events, f.total, f.err
}

func (f *fakeEventService) GetEvent(ctx context.Context, id int64) (*domain.EventDetails, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return f.details, nil
}

func (f *fakeEventService) CreateEvent(ctx context.Context, input domain.EventInput, actor domain.Actor) (*domain.Event, error) {
	f.lastInput, f.lastActor = input, actor
	if f.err != nil {
		return nil, f.err
	}
	e := domain.NewEvent(input.Title, input.Description, input.Location, input.Category, testDate, input.Seats, testDate)
	e.ID = 42
	return e, nil
}

func (f *fakeEventService) UpdateEvent(ctx context.Context, id int64, update domain.EventUpdate, actor domain.Actor) (*domain.Event, error) {
	f.lastID, f.lastUpdate, f.lastActor = id, update, actor
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Event{ID: id, Title: "Updated"}, nil
}

func (f *fakeEventService) DeleteEvent(ctx context.Context, id int64, actor domain.Actor) error {
	f.lastID, f.lastActor, f.deleteCalled = id, actor, true
	return f.err
}

func (f *fakeEventService) Reindex(ctx context.Context) (int, error) {
	return f.reindexed, f.err
}

// fakeParticipantService implements domain.ParticipantService.
type fakeParticipantService struct {
	err          error
	participants []*domain.Participant
	waitlist     []*domain.WaitlistEntry
	lastEventID  int64
	lastID       int64
	lastInput    domain.ParticipantInput
	calls        []string
}

func (f *fakeParticipantService) ListParticipants(ctx context.Context, eventID int64) ([]*domain.Participant, error) {
	f.lastEventID = eventID
	f.calls = append(f.calls, "list")
	return f.participants, f.err
}

func (f *fakeParticipantService) Register(ctx context.Context, eventID int64, input domain.ParticipantInput, actor domain.Actor) (*domain.Participant, error) {
	f.lastEventID, f.lastInput = eventID, input
	f.calls = append(f.calls, "register")
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Participant{ID: 9, EventID: eventID, Name: input.Name, Email: input.Email}, nil
}

func (f *fakeParticipantService) Remove(ctx context.Context, eventID, participantID int64, actor domain.Actor) error {
	f.lastEventID, f.lastID = eventID, participantID
	f.calls = append(f.calls, "remove")
	return f.err
}

func (f *fakeParticipantService) CheckIn(ctx context.Context, eventID, participantID int64, actor domain.Actor) error {
	f.lastEventID, f.lastID = eventID, participantID
	f.calls = append(f.calls, "checkin")
	return f.err
}

func (f *fakeParticipantService) JoinWaitlist(ctx context.Context, eventID int64, input domain.ParticipantInput, actor domain.Actor) (*domain.WaitlistEntry, error) {
	f.lastEventID, f.lastInput = eventID, input
	f.calls = append(f.calls, "join")
	if f.err != nil {
		return nil, f.err
	}
	return &domain.WaitlistEntry{ID: 3, EventID: eventID, Name: input.Name, Email: input.Email, Position: 2}, nil
}

func (f *fakeParticipantService) ListWaitlist(ctx context.Context, eventID int64) ([]*domain.WaitlistEntry, error) {
	f.lastEventID = eventID
	f.calls = append(f.calls, "waitlist")
	return f.waitlist, f.err
}

func (f *fakeParticipantService) LeaveWaitlist(ctx context.Context, eventID, entryID int64, actor domain.Actor) error {
	f.lastEventID, f.lastID = eventID, entryID
	f.calls = append(f.calls, "leave")
	return f.err
}

// fakeAuthService implements domain.AuthService.
type fakeAuthService struct {
	err       error
	user      *domain.User
	token     string
	lastName  string
	lastPass  string
	lastActor domain.Actor
}

func (f *fakeAuthService) Register(ctx context.Context, username, email, password string, actor domain.Actor) (*domain.User, error) {
	f.lastName, f.lastPass, f.lastActor = username, password, actor
	if f.err != nil {
		return nil, f.err
	}
	return &domain.User{ID: 1, Username: username, Email: email, Role: domain.RoleUser}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, username, password string, actor domain.Actor) (string, *domain.User, error) {
	f.lastName, f.lastPass, f.lastActor = username, password, actor
	if f.err != nil {
		return "", nil, f.err
	}
	return f.token, f.user, nil
}

func (f *fakeAuthService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

// fakeAuditService implements domain.AuditService.
type fakeAuditService struct {
	err        error
	logs       []*domain.AuditLog
	result     *domain.ChainVerification
	entries    []domain.AuditEntry
	lastFilter domain.AuditFilter
	lastStart  *int64
	lastEnd    *int64
}

func (f *fakeAuditService) Log(ctx context.Context, entry domain.AuditEntry) (*domain.AuditLog, error) {
	f.entries = append(f.entries, entry)
	return &domain.AuditLog{AuditEntry: entry}, f.err
}

func (f *fakeAuditService) Verify(ctx context.Context, startID, endID *int64) (*domain.ChainVerification, error) {
	f.lastStart, f.lastEnd = startID, endID
	return f.result, f.err
}

func (f *fakeAuditService) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	f.lastFilter = filter
	return f.logs, f.err
}

// fakeCache implements domain.Cache.
type fakeCache struct {
	cleared int
	err     error
}

func (f *fakeCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (f *fakeCache) Set(context.Context, string, any, time.Duration) error { return nil }
func (f *fakeCache) Delete(context.Context, ...string) error { return nil }
func (f *fakeCache) InvalidatePattern(context.Context, string) (int, error) { return 0, nil }
func (f *fakeCache) Clear(context.Context) (int, error) { return f.cleared, f.err }
func (f *fakeCache) Ping(context.Context) error { return f.err }

// fakeAnalyticsService implements domain.AnalyticsService and records its arguments.
type fakeAnalyticsService struct {
	err       error
	metric    string
	interval  string
	days      int
	k         int
	threshold float64
	support   float64
	conf      float64
}

func (f *fakeAnalyticsService) Summary(ctx context.Context) (*domain.AnalyticsSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AnalyticsSummary{TotalEvents: 2, CategoryDistribution: map[string]int{"Meetup": 2}}, nil
}

func (f *fakeAnalyticsService) TimeSeries(ctx context.Context, metric, interval string, days int) (*domain.TimeSeries, error) {
	f.metric, f.interval, f.days = metric, interval, days
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TimeSeries{Metric: metric, Interval: interval, Points: []domain.TimePoint{}}, nil
}

func (f *fakeAnalyticsService) Trends(ctx context.Context, metric, interval string, days int) (*domain.TrendReport, error) {
	f.metric, f.interval, f.days = metric, interval, days
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TrendReport{TimeSeries: domain.TimeSeries{Metric: metric}, Trend: "stable"}, nil
}

func (f *fakeAnalyticsService) Clustering(ctx context.Context, k int) (*domain.ClusteringReport, error) {
	f.k = k
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ClusteringReport{K: k}, nil
}

func (f *fakeAnalyticsService) Anomalies(ctx context.Context, metric string, days int, threshold float64) (*domain.AnomalyReport, error) {
	f.metric, f.days, f.threshold = metric, days, threshold
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AnomalyReport{Metric: metric, Threshold: threshold}, nil
}

func (f *fakeAnalyticsService) Associations(ctx context.Context, minSupport, minConfidence float64) (*domain.AssociationReport, error) {
	f.support, f.conf = minSupport, minConfidence
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AssociationReport{}, nil
}

// fakeSearcher implements domain.EventSearcher.
type fakeSearcher struct {
	err        error
	lastQuery  domain.SearchQuery
	lastPrefix string
	lastSize   int
}

func (f *fakeSearcher) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return &domain.SearchResult{Total: 1, Page: q.Page, PageSize: q.PageSize, Hits: []domain.SearchHit{{Event: domain.Event{ID: 1}}}, Backend: "postgres"}, nil
}

func (f *fakeSearcher) Suggest(ctx context.Context, prefix string, size int) ([]string, error) {
	f.lastPrefix, f.lastSize = prefix, size
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}
