package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/platform/observability"
)

type rateLimiter interface {
	Allow(key string) (bool, time.Duration)
}

// windowLimiter allows limit requests per key in each fixed window.
type windowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	hits   map[string]hitWindow
}

type hitWindow struct {
	count int
	reset time.Time
}

func newWindowLimiter(limit int, period time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || period <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowLimiter{
		limit:  limit,
		window: period,
		clock:  clock,
		hits:   make(map[string]hitWindow),
	}
}

// Allow records a hit for key. When the limit is exhausted it reports how long until the window resets.
func (l *windowLimiter) Allow(key string) (bool, time.Duration) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.hits[key]
	if !ok || !now.Before(current.reset) {
		l.pruneLocked(now)
		l.hits[key] = hitWindow{count: 1, reset: now.Add(l.window)}
		return true, 0
	}
	if current.count >= l.limit {
		return false, current.reset.Sub(now)
	}
	current.count++
	l.hits[key] = current
	return true, 0
}

func (l *windowLimiter) pruneLocked(now time.Time) {
	for key, w := range l.hits {
		if !now.Before(w.reset) {
			delete(l.hits, key)
		}
	}
}

// RateLimit throttles requests per client address. A non positive limit disables throttling.
func RateLimit(limit int, period time.Duration) func(http.Handler) http.Handler {
	return rateLimitWith(newWindowLimiter(limit, period, nil))
}

func rateLimitWith(limiter rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := limiter.Allow(observability.ClientIP(r))
			if !allowed {
				seconds := int(retryAfter.Round(time.Second) / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "Too many requests, try again later", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
