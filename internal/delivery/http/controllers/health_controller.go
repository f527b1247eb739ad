package controllers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"eventmanager/internal/delivery/http/helpers"
)

// Health statuses.
const (
	StatusOK        = "ok"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

const readinessTimeout = 3 * time.Second

// HealthResponse reports overall status and the result of each dependency check.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Check probes one dependency.
type Check func(ctx context.Context) error

type HealthController struct {
	Logger *slog.Logger
	Checks map[string]Check
}

func NewHealthController(logger *slog.Logger, checks map[string]Check) *HealthController {
	return &HealthController{Logger: logger, Checks: checks}
}

// Health godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} controllers.HealthResponse
// @Router /health [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: StatusOK})
}

// Ready godoc
// @Summary Readiness probe
// @Description Runs every dependency check concurrently. Responds 503 when any fails.
// @Tags health
// @Produce json
// @Success 200 {object} helpers.APIResponse{data=controllers.HealthResponse}
// @Failure 503 {object} helpers.APIResponse{data=controllers.HealthResponse}
// @Router /health/ready [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]string, len(c.Checks))
	healthy := true
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range c.Checks {
		g.Go(func() error {
			err := check(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				healthy = false
				results[name] = err.Error()
				c.Logger.WarnContext(r.Context(), "readiness check failed", "check", name, "err", err)
				return nil
			}
			results[name] = StatusOK
			return nil
		})
	}
	_ = g.Wait()

	if !healthy {
		helpers.WriteJSONSuccess(w, http.StatusServiceUnavailable, HealthResponse{Status: StatusDegraded, Checks: results})
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, HealthResponse{Status: StatusOK, Checks: results})
}
