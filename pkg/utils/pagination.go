package utils

import (
	"strconv"

	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

// Pagination is the page window of a list request and its response envelope
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination parses page/limit query values with the given default limit.
func NewPagination(pageStr, limitStr string, defaultLimit int) Pagination {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = constants.DefaultPage
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > constants.MaxPageLimit {
		limit = constants.MaxPageLimit
	}
	return Pagination{Page: page, Limit: limit}
}

// Offset is the number of rows to skip
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// WithTotal fills Total and TotalPages
func (p Pagination) WithTotal(total int64) Pagination {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return p
}
