package movies

import (
	"strconv"
	"strings"

	"github.com/nnh1125/jumboboxd/internal/apperr"
)

const (
	MaxPageLimit          = 100
	DefaultWatchedLimit   = 20
	DefaultWatchlistLimit = 12
	DefaultReviewsLimit   = 10
)

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func NewPagination(page, limit int) (Pagination, error) {
	if page < 1 {
		return Pagination{}, apperr.Validation("page must be at least 1")
	}
	if limit < 1 || limit > MaxPageLimit {
		return Pagination{}, apperr.Validation("limit must be between 1 and %d", MaxPageLimit)
	}
	return Pagination{Page: page, Limit: limit}, nil
}

// ParsePagination reads raw query values, using page 1 and defaultLimit for
// blanks.
func ParsePagination(rawPage, rawLimit string, defaultLimit int) (Pagination, error) {
	page, limit := 1, defaultLimit
	if s := strings.TrimSpace(rawPage); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Pagination{}, apperr.Validation("page must be a number")
		}
		page = n
	}
	if s := strings.TrimSpace(rawLimit); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Pagination{}, apperr.Validation("limit must be a number")
		}
		limit = n
	}
	return NewPagination(page, limit)
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
	Total      int64
}

func newPage[T any](items []T, p Pagination, total int64) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Pagination: p, Total: total}
}

func (p *Page[T]) TotalPages() int64 {
	if p.Pagination.Limit <= 0 {
		return 0
	}
	limit := int64(p.Pagination.Limit)
	return (p.Total + limit - 1) / limit
}
