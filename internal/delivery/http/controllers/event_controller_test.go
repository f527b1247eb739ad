package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmanager/internal/delivery/http/helpers"
	"eventmanager/internal/delivery/http/middleware"
	"eventmanager/internal/domain"
)

func TestEventController_CreateEvent(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		fakeErr        error
		wantStatus     int
		wantBodySubstr string
	}{
		{
			name:       "success",
			body:       `{"title":"GopherCon","location":"Berlin","date":"2026-06-01","seats":100,"category":"Conference"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:           "bad request invalid json",
			body:           `{invalid`,
			wantStatus:     http.StatusBadRequest,
			wantBodySubstr: "invalid",
		},
		{
			name:           "unknown field rejected",
			body:           `{"title":"GopherCon","id":7}`,
			wantStatus:     http.StatusBadRequest,
			wantBodySubstr: "unknown field",
		},
		{
			name:           "validation error",
			body:           `{"title":"Go"}`,
			fakeErr:        domain.NewValidationError([]string{"title must be between 3 and 200 characters"}),
			wantStatus:     http.StatusBadRequest,
			wantBodySubstr: "title must be between 3 and 200 characters",
		},
		{
			name:           "service error is not leaked",
			body:           `{"title":"GopherCon"}`,
			fakeErr:        errors.New("pq: connection refused"),
			wantStatus:     http.StatusInternalServerError,
			wantBodySubstr: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeEventService{err: tt.fakeErr}
			ctrl := NewEventController(testLogger, fake)
			req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(middleware.SetClaims(req.Context(), domain.Claims{UserID: 5, Username: "alice"}))
			rr := httptest.NewRecorder()

			ctrl.CreateEvent(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code, "status code")
			if tt.wantStatus == http.StatusCreated {
				var got CreateEventResponse
				decodeData(t, rr, &got)
				assert.Equal(t, int64(42), got.ID)
				assert.Equal(t, "Event created", got.Message)
				assert.Equal(t, "GopherCon", got.Event.Title)
				assert.Equal(t, domain.EventInput{Title: "GopherCon", Location: "Berlin", Date: "2026-06-01", Seats: 100, Category: "Conference"}, fake.lastInput)
				assert.Equal(t, int64(5), fake.lastActor.UserID)
				return
			}
			envelope, _ := decodeEnvelope(t, rr)
			require.NotNil(t, envelope.Error, "error response must have error set")
			assert.Contains(t, envelope.Error.Message, tt.wantBodySubstr, "error message")
		})
	}
}

func TestEventController_ListEvents(t *testing.T) {
	fake := &fakeEventService{events: []*domain.Event{{ID: 1}, {ID: 2}}, total: 45}
	ctrl := NewEventController(testLogger, fake)
	req := httptest.NewRequest(http.MethodGet, "/events?page=2&page_size=500", nil)
	rr := httptest.NewRecorder()

	ctrl.ListEvents(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got ListEventsResponse
	decodeData(t, rr, &got)
	assert.Len(t, got.Events, 2)
	assert.Equal(t, helpers.PaginationMeta{Page: 2, PageSize: helpers.MaxPageSize, Total: 45, TotalPages: 1}, got.Pagination)
	assert.Equal(t, domain.PaginationParams{Page: 2, PageSize: helpers.MaxPageSize}, fake.lastParams)
}

func TestEventController_ListEvents_EmptyIsArray(t *testing.T) {
	ctrl := NewEventController(testLogger, &fakeEventService{})
	rr := httptest.NewRecorder()
	ctrl.ListEvents(rr, httptest.NewRequest(http.MethodGet, "/events", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"events":[]`)
}

func TestEventController_GetEvent(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		fakeErr    error
		wantStatus int
		wantCode   string
	}{
		{"success", "3", nil, http.StatusOK, ""},
		{"not found", "3", fmt.Errorf("event 3: %w", domain.ErrNotFound), http.StatusNotFound, helpers.ErrCodeNotFound},
		{"non numeric id", "abc", nil, http.StatusBadRequest, helpers.ErrCodeBadRequest},
		{"zero id", "0", nil, http.StatusBadRequest, helpers.ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details := domain.NewEventDetails(&domain.Event{ID: 3, Title: "GopherCon", Seats: 10}, 4, 0)
			fake := &fakeEventService{err: tt.fakeErr, details: details}
			ctrl := NewEventController(testLogger, fake)
			req := httptest.NewRequest(http.MethodGet, "/events/"+tt.id, nil)
			req.SetPathValue("eventID", tt.id)
			rr := httptest.NewRecorder()

			ctrl.GetEvent(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantCode != "" {
				envelope, _ := decodeEnvelope(t, rr)
				assert.Equal(t, tt.wantCode, envelope.Error.Code)
				return
			}
			var got domain.EventDetails
			decodeData(t, rr, &got)
			assert.Equal(t, 6, got.AvailableSeats)
			assert.Equal(t, int64(3), fake.lastID)
		})
	}
}

func TestEventController_UpdateEvent(t *testing.T) {
	fake := &fakeEventService{}
	ctrl := NewEventController(testLogger, fake)
	req := httptest.NewRequest(http.MethodPatch, "/events/8", bytes.NewBufferString(`{"seats":50}`))
	req.SetPathValue("eventID", "8")
	rr := httptest.NewRecorder()

	ctrl.UpdateEvent(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, fake.lastUpdate.Seats)
	assert.Equal(t, 50, *fake.lastUpdate.Seats)
	assert.Nil(t, fake.lastUpdate.Title)
	assert.Equal(t, int64(8), fake.lastID)

	fake.err = domain.NewValidationError([]string{"seats cannot be less than the 12 registered participants"})
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/events/8", bytes.NewBufferString(`{"seats":5}`))
	req.SetPathValue("eventID", "8")
	ctrl.UpdateEvent(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "12 registered participants")
}

func TestEventController_DeleteEvent(t *testing.T) {
	tests := []struct {
		name       string
		fakeErr    error
		wantStatus int
	}{
		{"success", nil, http.StatusOK},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeEventService{err: tt.fakeErr}
			req := httptest.NewRequest(http.MethodDelete, "/events/4", nil)
			req.SetPathValue("eventID", "4")
			req.RemoteAddr = "192.0.2.7:1234"
			rr := httptest.NewRecorder()

			NewEventController(testLogger, fake).DeleteEvent(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			assert.True(t, fake.deleteCalled)
			assert.Equal(t, "192.0.2.7", fake.lastActor.IPAddress)
		})
	}
}
