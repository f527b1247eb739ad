package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"eventmanager/internal/delivery/http/helpers"
	"eventmanager/internal/delivery/http/middleware"
	"eventmanager/internal/domain"
)

// ClearCacheResponse is the data of DELETE /cache.
type ClearCacheResponse struct {
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

// CacheController exposes cache maintenance. Audit may be nil.
type CacheController struct {
	Logger *slog.Logger
	Cache  domain.Cache
	Audit  domain.AuditService
}

func NewCacheController(logger *slog.Logger, cache domain.Cache, audit domain.AuditService) *CacheController {
	return &CacheController{Logger: logger, Cache: cache, Audit: audit}
}

// Clear godoc
// @Summary Clear the cache
// @Description Deletes every key under the configured prefix. Admin only.
// @Tags cache
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse{data=controllers.ClearCacheResponse}
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /cache [delete]
func (c *CacheController) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := c.Cache.Clear(r.Context())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	c.Logger.InfoContext(r.Context(), "cache cleared", "deleted", n)
	if c.Audit != nil {
		actor := middleware.Actor(r)
		entry := domain.AuditEntry{
			Action:       domain.AuditDelete,
			Category:     domain.AuditCategorySystem,
			ResourceType: "cache",
			Username:     actor.Username,
			IPAddress:    actor.IPAddress,
			UserAgent:    actor.UserAgent,
			Details:      "cleared " + strconv.Itoa(n) + " keys",
		}
		if actor.UserID != 0 {
			entry.UserID = strconv.FormatInt(actor.UserID, 10)
		}
		if _, err := c.Audit.Log(r.Context(), entry); err != nil {
			c.Logger.WarnContext(r.Context(), "audit cache clear failed", "err", err)
		}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ClearCacheResponse{Message: "Cache cleared", Deleted: n})
}

// Health godoc
// @Summary Cache health
// @Description Pings Redis. Responds 503 when it is unreachable.
// @Tags cache
// @Produce json
// @Success 200 {object} helpers.APIResponse{data=controllers.HealthResponse}
// @Failure 503 {object} helpers.APIResponse{data=controllers.HealthResponse}
// @Router /cache/health [get]
func (c *CacheController) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := c.Cache.Ping(ctx); err != nil {
		c.Logger.WarnContext(r.Context(), "cache ping failed", "err", err)
		helpers.WriteJSONSuccess(w, http.StatusServiceUnavailable, HealthResponse{
			Status: StatusUnhealthy,
			Checks: map[string]string{"redis": err.Error()},
		})
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, HealthResponse{Status: StatusHealthy, Checks: map[string]string{"redis": StatusOK}})
}
