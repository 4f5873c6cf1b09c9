package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/services"
)

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	system services.SystemService
	build  services.BuildInfo
	now    func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService sets the service consulted by /readyz.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthBuildInfo sets the metadata reported by /healthz.
func WithHealthBuildInfo(build services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthClock overrides the clock used for uptime and timestamps.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.now = clock
		}
	}
}

// NewHealthHandlers constructs the health handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.now()
	}
	return h
}

type healthzResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	CommitSHA   string `json:"commitSha,omitempty"`
	Environment string `json:"environment,omitempty"`
	Uptime      string `json:"uptime"`
	Timestamp   string `json:"timestamp"`
}

type readyzCheck struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readyzResponse struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version,omitempty"`
	CommitSHA   string                 `json:"commitSha,omitempty"`
	Environment string                 `json:"environment,omitempty"`
	Uptime      string                 `json:"uptime,omitempty"`
	GeneratedAt string                 `json:"generatedAt,omitempty"`
	Checks      map[string]readyzCheck `json:"checks"`
	Details     []string               `json:"details,omitempty"`
}

// Healthz reports process liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	httpx.WriteJSON(w, http.StatusOK, healthzResponse{
		Status:      domain.HealthStatusOK,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).Round(time.Second).String(),
		Timestamp:   now.UTC().Format(time.RFC3339),
	})
}

// Readyz runs the dependency checks. Anything but a fully healthy report answers 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		httpx.WriteJSON(w, http.StatusOK, readyzResponse{Status: domain.HealthStatusOK, Checks: map[string]readyzCheck{}})
		return
	}

	report, err := h.system.HealthReport(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("health_unavailable", "unable to collect health report", http.StatusServiceUnavailable))
		return
	}

	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := readyzResponse{
		Status:      report.Status,
		Version:     report.Version,
		CommitSHA:   report.CommitSHA,
		Environment: report.Environment,
		Checks:      make(map[string]readyzCheck, len(report.Checks)),
	}
	if report.Uptime > 0 {
		resp.Uptime = report.Uptime.Round(time.Second).String()
	}
	if !report.GeneratedAt.IsZero() {
		resp.GeneratedAt = report.GeneratedAt.UTC().Format(time.RFC3339)
	}
	for _, name := range names {
		check := report.Checks[name]
		entry := readyzCheck{
			Status:    check.Status,
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
		}
		if !check.CheckedAt.IsZero() {
			entry.CheckedAt = check.CheckedAt.UTC().Format(time.RFC3339)
		}
		resp.Checks[name] = entry
		if check.Status != domain.HealthStatusOK {
			reason := check.Error
			if reason == "" {
				reason = check.Detail
			}
			resp.Details = append(resp.Details, fmt.Sprintf("%s: %s", name, reason))
		}
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, resp)
}
