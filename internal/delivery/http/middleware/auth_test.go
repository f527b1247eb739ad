package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"eventmanager/internal/delivery/http/helpers"
	"eventmanager/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenVerifier implements domain.TokenVerifier for tests.
type fakeTokenVerifier struct {
	claims domain.Claims
	err    error
}

func (f *fakeTokenVerifier) Verify(_ string) (*domain.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := f.claims
	return &c, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRequireAuth(t *testing.T) {
	user := domain.Claims{UserID: 7, Username: "alice", Role: domain.RoleUser}

	tests := []struct {
		name         string
		authHeader   string
		verifier     domain.TokenVerifier
		wantStatus   int
		wantBodyCode string
		nextCalled   bool
		wantClaims   domain.Claims
	}{
		{
			name:       "valid token sets context and calls next",
			authHeader: "Bearer valid-token",
			verifier:   &fakeTokenVerifier{claims: user},
			wantStatus: http.StatusOK,
			nextCalled: true,
			wantClaims: user,
		},
		{
			name:       "scheme is case insensitive",
			authHeader: "bearer valid-token",
			verifier:   &fakeTokenVerifier{claims: user},
			wantStatus: http.StatusOK,
			nextCalled: true,
			wantClaims: user,
		},
		{
			name:         "missing authorization header",
			authHeader:   "",
			verifier:     &fakeTokenVerifier{claims: user},
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
		{
			name:         "invalid authorization format no Bearer prefix",
			authHeader:   "Basic abc",
			verifier:     &fakeTokenVerifier{claims: user},
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
		{
			name:         "empty token after Bearer",
			authHeader:   "Bearer ",
			verifier:     &fakeTokenVerifier{claims: user},
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
		{
			name:         "verifier returns error",
			authHeader:   "Bearer bad-token",
			verifier:     &fakeTokenVerifier{err: errors.New("invalid or expired token")},
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			var captured domain.Claims
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				if c, ok := ClaimsFromContext(r.Context()); ok {
					captured = c
				}
				w.WriteHeader(http.StatusOK)
			})
			handler := RequireAuth(tt.verifier, testLogger())(next)

			req := httptest.NewRequest(http.MethodGet, "http://test/auth/me", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()

			handler(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code, "status code")
			assert.Equal(t, tt.nextCalled, nextCalled, "next handler called")
			if tt.nextCalled {
				assert.Equal(t, tt.wantClaims, captured, "claims in context")
			}
			if tt.wantBodyCode != "" {
				var envelope helpers.APIResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
				require.NotNil(t, envelope.Error)
				assert.Equal(t, tt.wantBodyCode, envelope.Error.Code)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		header     string
		wantStatus int
	}{
		{"admin passes", domain.RoleAdmin, "Bearer t", http.StatusOK},
		{"user is forbidden", domain.RoleUser, "Bearer t", http.StatusForbidden},
		{"anonymous is unauthorized", domain.RoleAdmin, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &fakeTokenVerifier{claims: domain.Claims{UserID: 1, Role: tt.role}}
			handler := RequireAdmin(verifier, testLogger())(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/audit/verify", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.RemoteAddr = "192.0.2.1:4711"
	req.Header.Set("User-Agent", "curl/8")

	anon := Actor(req)
	assert.Equal(t, domain.Actor{IPAddress: "192.0.2.1", UserAgent: "curl/8"}, anon)

	req = req.WithContext(SetClaims(req.Context(), domain.Claims{UserID: 3, Username: "bob", Role: domain.RoleAdmin}))
	got := Actor(req)
	assert.Equal(t, int64(3), got.UserID)
	assert.Equal(t, "bob", got.Username)
	assert.Equal(t, domain.RoleAdmin, got.Role)
}
