// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// DefaultLimit is the page size used when the client does not send one.
const DefaultLimit = 20

// MaxLimit caps client-requested page sizes.
const MaxLimit = 100

// Params is a 1-based page number and a page size.
type Params struct {
	Page  int
	Limit int
}

// Skip returns the number of rows before the page, as int64 for Mongo
// Find().SetSkip().
func (p Params) Skip() int64 { return int64((p.Page - 1) * p.Limit) }

// Limit64 returns Limit as int64 for Mongo Find().SetLimit().
func (p Params) Limit64() int64 { return int64(p.Limit) }

// Parse reads the "page" and "limit" query parameters. Missing or invalid
// values fall back to page 1 and DefaultLimit; limit is capped at MaxLimit.
func Parse(r *http.Request) Params {
	return Params{
		Page:  positive(query.Get(r, "page"), 1),
		Limit: clamp(positive(query.Get(r, "limit"), DefaultLimit), MaxLimit),
	}
}

func positive(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func clamp(n, max int) int {
	if n > max {
		return max
	}
	return n
}

// Pagination is the block returned alongside paged lists.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// Describe builds the Pagination block for total matching rows.
func (p Params) Describe(total int64) Pagination {
	pages := int64(0)
	if p.Limit > 0 {
		pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}
