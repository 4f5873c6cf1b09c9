package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/upfront-market/api/internal/domain"
)

const (
	// DefaultPageSize defines the fallback number of items returned when the client omits page_size.
	DefaultPageSize = 20
	// DefaultMaxPageSize caps the supported page_size to prevent unbounded queries.
	DefaultMaxPageSize = 100
)

// Options customises parsing for a specific endpoint.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

var (
	ErrInvalidPage     = errors.New("pagination: invalid page")
	ErrInvalidPageSize = errors.New("pagination: invalid page_size")
)

// FromRequest parses page and page_size from the request query string.
func FromRequest(r *http.Request, opts Options) (domain.Pagination, error) {
	if r == nil || r.URL == nil {
		return domain.Pagination{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse reads 1-based page numbers. Page sizes above the maximum are clamped rather than rejected.
func Parse(values url.Values, opts Options) (domain.Pagination, error) {
	maxPageSize := opts.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	defaultPageSize := opts.DefaultPageSize
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	if defaultPageSize > maxPageSize {
		defaultPageSize = maxPageSize
	}

	page, err := parsePositive(values.Get("page"), 1, ErrInvalidPage)
	if err != nil {
		return domain.Pagination{}, err
	}
	pageSize, err := parsePositive(values.Get("page_size"), defaultPageSize, ErrInvalidPageSize)
	if err != nil {
		return domain.Pagination{}, err
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return domain.Pagination{Page: page, PageSize: pageSize}, nil
}

func parsePositive(raw string, fallback int, sentinel error) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", sentinel)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", sentinel)
	}
	return value, nil
}

// Offset converts a 1-based page into a row offset.
func Offset(p domain.Pagination) int {
	if p.Page <= 1 || p.PageSize <= 0 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}
