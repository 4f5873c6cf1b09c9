package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/upfront-market/api/internal/domain"
)

func TestDependencyHealthRepositoryCollectSuccess(t *testing.T) {
	checks := []DependencyCheck{
		{
			Name: "database",
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(5 * time.Millisecond):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
		{Name: "redis", Check: func(context.Context) error { return nil }},
	}

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	repo, err := NewDependencyHealthRepository(checks, WithDependencyClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected status ok, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	if report.GeneratedAt != now {
		t.Fatalf("expected generatedAt %s, got %s", now, report.GeneratedAt)
	}
}

func TestDependencyHealthRepositoryOptionalFailureDegrades(t *testing.T) {
	checks := []DependencyCheck{
		{Name: "database", Check: func(context.Context) error { return nil }},
		{Name: "redis", Optional: true, Check: func(context.Context) error { return errors.New("connection refused") }},
	}
	repo, err := NewDependencyHealthRepository(checks)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if got := report.Checks["redis"].Error; got != "connection refused" {
		t.Fatalf("unexpected redis error %q", got)
	}
}

func TestDependencyHealthRepositoryRequiredFailureErrors(t *testing.T) {
	checks := []DependencyCheck{
		{Name: "database", Check: func(context.Context) error { return errors.New("boom") }},
		{Name: "redis", Optional: true, Check: func(context.Context) error { return errors.New("down") }},
	}
	repo, err := NewDependencyHealthRepository(checks)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error status, got %s", report.Status)
	}
}

func TestDependencyHealthRepositoryTimeout(t *testing.T) {
	checks := []DependencyCheck{
		{
			Name:    "database",
			Timeout: 10 * time.Millisecond,
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}
	repo, err := NewDependencyHealthRepository(checks)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	check := report.Checks["database"]
	if check.Status != domain.HealthStatusError || check.Detail != "timeout" {
		t.Fatalf("expected timeout error, got %+v", check)
	}
}

func TestNewDependencyHealthRepositoryValidatesChecks(t *testing.T) {
	if _, err := NewDependencyHealthRepository(nil); err == nil {
		t.Fatal("expected error for empty checks")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Name: "db"}}); err == nil {
		t.Fatal("expected error for missing check function")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Check: func(context.Context) error { return nil }}}); err == nil {
		t.Fatal("expected error for missing name")
	}
}
