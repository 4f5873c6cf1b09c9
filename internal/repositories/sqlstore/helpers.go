package sqlstore

import (
	"strings"
	"unicode/utf8"

	domain "github.com/upfront-market/api/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(p domain.Pagination) (int, int) {
	page := p.Page
	if page < 1 {
		page = 1
	}
	size := p.PageSize
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return page, size
}

func truncate(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}

func optionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nonEmpty(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
