package observability

import (
	"strings"
	"unicode"
)

const defaultStringLimit = 256

// sanitizeString drops control characters and truncates to limit runes to avoid log injection.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}
	var b strings.Builder
	count := 0
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		if count == limit {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// SanitizeRoute cleans a route pattern for logs and span attributes.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod cleans an HTTP method.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeUserID truncates identifiers to limit PII in logs.
func SanitizeUserID(uid string) string {
	return sanitizeString(uid, 64)
}
