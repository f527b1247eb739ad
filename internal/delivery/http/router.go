package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	"eventmanager/internal/delivery/http/controllers"
	"eventmanager/internal/delivery/http/middleware"
	"eventmanager/internal/domain"
	"eventmanager/internal/metrics"
	"eventmanager/internal/ratelimit"
)

// Controllers groups the handlers mounted by NewRouter.
type Controllers struct {
	Events       *controllers.EventController
	Participants *controllers.ParticipantController
	Auth         *controllers.AuthController
	Audit        *controllers.AuditController
	Cache        *controllers.CacheController
	Analytics    *controllers.AnalyticsController
	Search       *controllers.SearchController
	Health       *controllers.HealthController
}

// NewRouter initializes the HTTP router with all application routes
func NewRouter(c Controllers, verifier domain.TokenVerifier, metricsHandler http.Handler, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(verifier, logger)
	admin := middleware.RequireAdmin(verifier, logger)

	// Events
	mux.HandleFunc("GET /events", c.Events.ListEvents)
	mux.HandleFunc("POST /events", auth(c.Events.CreateEvent))
	mux.HandleFunc("GET /events/{eventID}", c.Events.GetEvent)
	mux.HandleFunc("PATCH /events/{eventID}", auth(c.Events.UpdateEvent))
	mux.HandleFunc("PUT /events/{eventID}", auth(c.Events.UpdateEvent))
	mux.HandleFunc("DELETE /events/{eventID}", auth(c.Events.DeleteEvent))

	// Participants and waitlist
	mux.HandleFunc("GET /events/{eventID}/participants", c.Participants.ListParticipants)
	mux.HandleFunc("POST /events/{eventID}/participants", auth(c.Participants.Register))
	mux.HandleFunc("DELETE /events/{eventID}/participants/{participantID}", auth(c.Participants.Remove))
	mux.HandleFunc("POST /events/{eventID}/participants/{participantID}/checkin", auth(c.Participants.CheckIn))
	mux.HandleFunc("GET /events/{eventID}/waitlist", c.Participants.ListWaitlist)
	mux.HandleFunc("POST /events/{eventID}/waitlist", auth(c.Participants.JoinWaitlist))
	mux.HandleFunc("DELETE /events/{eventID}/waitlist/{entryID}", auth(c.Participants.LeaveWaitlist))

	// Search
	mux.HandleFunc("GET /events/search", c.Search.Search)
	mux.HandleFunc("GET /events/suggest", c.Search.Suggest)
	mux.HandleFunc("POST /search/reindex", admin(c.Search.Reindex))

	// Analytics
	mux.HandleFunc("GET /analytics/summary", c.Analytics.Summary)
	mux.HandleFunc("GET /analytics/timeseries", c.Analytics.TimeSeries)
	mux.HandleFunc("GET /analytics/trends", c.Analytics.Trends)
	mux.HandleFunc("GET /analytics/clustering", c.Analytics.Clustering)
	mux.HandleFunc("GET /analytics/anomalies", c.Analytics.Anomalies)
	mux.HandleFunc("GET /analytics/associations", c.Analytics.Associations)

	// Audit
	mux.HandleFunc("GET /audit/logs", admin(c.Audit.ListLogs))
	mux.HandleFunc("GET /audit/verify", admin(c.Audit.VerifyChain))

	// Cache
	mux.HandleFunc("DELETE /cache", admin(c.Cache.Clear))
	mux.HandleFunc("GET /cache/health", c.Cache.Health)

	// Auth
	mux.HandleFunc("POST /auth/register", c.Auth.Register)
	mux.HandleFunc("POST /auth/login", c.Auth.Login)
	mux.HandleFunc("GET /auth/me", auth(c.Auth.Me))

	// Health, metrics
	mux.HandleFunc("GET /health", c.Health.Health)
	mux.HandleFunc("GET /health/ready", c.Health.Ready)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

// HandlerConfig selects the middleware wrapped around the router. A nil Limiter disables rate limiting.
type HandlerConfig struct {
	CORSOrigins []string
	Limiter     ratelimit.Limiter
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	// Tracer, when set, opens a server span per request.
	Tracer trace.Tracer
}

// NewHandler wraps mux with correlation ids, tracing, request logging, metrics, CORS and
// rate limiting, outermost first.
func NewHandler(mux http.Handler, cfg HandlerConfig) http.Handler {
	h := mux
	if cfg.Limiter != nil {
		h = middleware.RateLimit(cfg.Limiter, cfg.Logger, cfg.Metrics, h)
	}
	h = middleware.CORS(cfg.CORSOrigins, h)
	h = middleware.MetricsMiddleware(cfg.Metrics, h)
	h = middleware.LoggingMiddleware(cfg.Logger, h)
	if cfg.Tracer != nil {
		h = middleware.Tracing(cfg.Tracer, h)
	}
	return middleware.CorrelationID(h)
}
