package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"eventmanager/internal/delivery/http/helpers"
	"eventmanager/internal/domain"
)

type AuditController struct {
	Logger  *slog.Logger
	Service domain.AuditService
}

func NewAuditController(logger *slog.Logger, svc domain.AuditService) *AuditController {
	return &AuditController{
		Logger:  logger,
		Service: svc,
	}
}

// ListLogs godoc
// @Summary Query the audit log
// @Description Newest first. Hashes are shortened for display. Admin only.
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "Actor user id"
// @Param resource_type query string false "Resource type, e.g. event"
// @Param resource_id query string false "Resource id"
// @Param action query string false "CREATE, UPDATE, DELETE, LOGIN, FAILED_LOGIN, ..."
// @Param category query string false "USER, EVENT, PARTICIPANT, SYSTEM, SECURITY, DATA"
// @Param from query string false "Lower time bound (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Upper time bound (RFC3339 or YYYY-MM-DD)"
// @Param limit query int false "Max rows (default 100, max 1000)"
// @Param offset query int false "Rows to skip"
// @Success 200 {object} helpers.APIResponse{data=[]domain.AuditLog}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /audit/logs [get]
func (c *AuditController) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, okFrom := helpers.QueryTime(r, "from")
	to, okTo := helpers.QueryTime(r, "to")
	if !okFrom || !okTo {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "from and to must be RFC3339 or YYYY-MM-DD")
		return
	}
	filter := domain.AuditFilter{
		UserID:       q.Get("user_id"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Action:       domain.AuditAction(strings.ToUpper(q.Get("action"))),
		Category:     domain.AuditCategory(strings.ToUpper(q.Get("category"))),
		From:         from,
		To:           to,
		Limit:        helpers.QueryInt(r, "limit", 0),
		Offset:       helpers.QueryInt(r, "offset", 0),
	}
	logs, err := c.Service.Query(r.Context(), filter)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, logs)
}

// VerifyChain godoc
// @Summary Verify the audit hash chain
// @Description Recomputes every hash in the id range and checks the links between entries. Admin only.
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param start_id query int false "First id of the range"
// @Param end_id query int false "Last id of the range"
// @Success 200 {object} helpers.APIResponse{data=domain.ChainVerification}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /audit/verify [get]
func (c *AuditController) VerifyChain(w http.ResponseWriter, r *http.Request) {
	start, okStart := helpers.QueryInt64Ptr(r, "start_id")
	end, okEnd := helpers.QueryInt64Ptr(r, "end_id")
	if !okStart || !okEnd {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "start_id and end_id must be integers")
		return
	}
	res, err := c.Service.Verify(r.Context(), start, end)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if !res.Valid {
		c.Logger.WarnContext(r.Context(), "audit chain verification failed", "issues", len(res.Issues), "checked", res.Checked)
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, res)
}
