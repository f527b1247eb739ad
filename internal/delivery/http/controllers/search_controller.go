package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"eventmanager/internal/delivery/http/helpers"
	"eventmanager/internal/domain"
)

const (
	defaultSuggestSize = 5
	maxSuggestSize     = 20
)

// ReindexResponse is the data of POST /search/reindex.
type ReindexResponse struct {
	Indexed int `json:"indexed"`
}

// SearchController serves full-text search. Events is used for reindexing.
type SearchController struct {
	Logger   *slog.Logger
	Searcher domain.EventSearcher
	Events   domain.EventService
}

func NewSearchController(logger *slog.Logger, searcher domain.EventSearcher, events domain.EventService) *SearchController {
	return &SearchController{Logger: logger, Searcher: searcher, Events: events}
}

// Search godoc
// @Summary Search events
// @Description Fuzzy full-text search over title, description and location with facets by category and location.
// @Tags search
// @Produce json
// @Param q query string false "Search text"
// @Param category query string false "Exact category"
// @Param location query string false "Location (fuzzy)"
// @Param date_from query string false "Earliest date (RFC3339 or YYYY-MM-DD)"
// @Param date_to query string false "Latest date (RFC3339 or YYYY-MM-DD)"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse{data=domain.SearchResult}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/search [get]
func (c *SearchController) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, okFrom := helpers.QueryTime(r, "date_from")
	to, okTo := helpers.QueryTime(r, "date_to")
	if !okFrom || !okTo {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "date_from and date_to must be RFC3339 or YYYY-MM-DD")
		return
	}
	page := helpers.ParsePagination(r)
	res, err := c.Searcher.Search(r.Context(), domain.SearchQuery{
		Text:     strings.TrimSpace(q.Get("q")),
		Category: q.Get("category"),
		Location: strings.TrimSpace(q.Get("location")),
		DateFrom: from,
		DateTo:   to,
		Page:     page.Page,
		PageSize: page.PageSize,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, res)
}

// Suggest godoc
// @Summary Title suggestions
// @Tags search
// @Produce json
// @Param q query string true "Title prefix"
// @Param size query int false "Max suggestions (default 5, max 20)"
// @Success 200 {object} helpers.APIResponse{data=[]string}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/suggest [get]
func (c *SearchController) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("q"))
	if prefix == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "q is required")
		return
	}
	size := helpers.QueryInt(r, "size", defaultSuggestSize)
	if size < 1 || size > maxSuggestSize {
		size = defaultSuggestSize
	}
	out, err := c.Searcher.Suggest(r.Context(), prefix, size)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if out == nil {
		out = []string{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, out)
}

// Reindex godoc
// @Summary Rebuild the search index
// @Description Indexes every event from the database. Admin only.
// @Tags search
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse{data=controllers.ReindexResponse}
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /search/reindex [post]
func (c *SearchController) Reindex(w http.ResponseWriter, r *http.Request) {
	n, err := c.Events.Reindex(r.Context())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	c.Logger.InfoContext(r.Context(), "search index rebuilt", "indexed", n)
	helpers.WriteJSONSuccess(w, http.StatusOK, ReindexResponse{Indexed: n})
}
