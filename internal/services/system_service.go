package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/repositories"
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// Integration is an optional marketplace dependency reported by the readiness report next to the
// live dependency checks: payment providers, email transport, media backends, order events.
type Integration struct {
	Name    string
	Enabled bool
	// Detail lists what is configured, e.g. "cod,stripe".
	Detail string
	// Required integrations degrade readiness when missing outside the local environment.
	Required bool
}

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Integrations     []Integration
	Clock            func() time.Time
	Build            BuildInfo
}

type systemService struct {
	healthRepo   repositories.HealthRepository
	integrations []Integration
	clock        func() time.Time
	build        BuildInfo
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the service behind /healthz and /readyz.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}
	integrations := make([]Integration, 0, len(deps.Integrations))
	for _, in := range deps.Integrations {
		if in.Name = strings.TrimSpace(in.Name); in.Name != "" {
			integrations = append(integrations, in)
		}
	}
	return &systemService{
		healthRepo:   deps.HealthRepository,
		integrations: integrations,
		clock:        func() time.Time { return clock().UTC() },
		build:        build,
	}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	if ctx == nil {
		return SystemHealthReport{}, errors.New("system service: context is required")
	}
	report, err := s.healthRepo.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.clock()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	report.GeneratedAt = report.GeneratedAt.UTC()
	report.Version = firstNonBlank(report.Version, s.build.Version)
	report.CommitSHA = firstNonBlank(report.CommitSHA, s.build.CommitSHA)
	report.Environment = firstNonBlank(report.Environment, s.build.Environment)
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	checks := make(map[string]domain.SystemHealthCheck, len(report.Checks)+len(s.integrations))
	for name, check := range report.Checks {
		checks[name] = check
	}
	report.Checks = checks

	strict := !strings.EqualFold(report.Environment, "local") && report.Environment != ""
	for _, in := range s.integrations {
		if _, checked := report.Checks[in.Name]; checked {
			continue
		}
		report.Checks[in.Name] = integrationCheck(in, strict, now)
	}

	if strings.TrimSpace(report.Status) == "" || len(s.integrations) > 0 {
		report.Status = worstStatus(report.Status, deriveStatus(report.Checks))
	}
	return report, nil
}

func integrationCheck(in Integration, strict bool, now time.Time) domain.SystemHealthCheck {
	check := domain.SystemHealthCheck{Status: domain.HealthStatusOK, Detail: in.Detail, CheckedAt: now}
	if in.Enabled {
		return check
	}
	check.Detail = "not configured"
	if in.Required && strict {
		check.Status = domain.HealthStatusDegraded
	}
	return check
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func statusRank(status string) int {
	switch status {
	case domain.HealthStatusError:
		return 2
	case domain.HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}

func worstStatus(a, b string) string {
	if statusRank(a) >= statusRank(b) && a != "" {
		return a
	}
	return b
}

func deriveStatus(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		if statusRank(check.Status) > statusRank(status) {
			status = check.Status
		}
	}
	return status
}
