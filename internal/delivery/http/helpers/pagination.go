package helpers

import (
	"net/http"

	"eventmanager/internal/domain"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ParsePagination reads page and page_size. Values below 1 or unparsable
// fall back to the defaults; page_size is capped at MaxPageSize.
func ParsePagination(r *http.Request) domain.PaginationParams {
	p := domain.PaginationParams{
		Page:     QueryInt(r, "page", DefaultPage),
		PageSize: QueryInt(r, "page_size", DefaultPageSize),
	}
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	switch {
	case p.PageSize < 1:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	}
	return p
}

// PaginationMeta accompanies every paginated list response.
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func NewPaginationMeta(page, pageSize, total int) PaginationMeta {
	p := domain.PaginationParams{Page: page, PageSize: pageSize}
	return PaginationMeta{Page: page, PageSize: pageSize, Total: total, TotalPages: p.TotalPages(total)}
}
