package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/upfront-market/api/internal/domain"
)

const defaultDependencyTimeout = 1500 * time.Millisecond

// DependencyCheck describes a dependency check executed during readiness checks.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	// Optional checks report degraded instead of error when they fail.
	Optional bool
	Check    func(context.Context) error
}

// DependencyHealthOption customises the dependency-backed health repository.
type DependencyHealthOption func(*dependencyHealthRepository)

// WithDependencyTimeout overrides the timeout applied when a check omits its own.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if timeout > 0 {
			repo.defaultTimeout = timeout
		}
	}
}

// WithDependencyClock injects a custom clock.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if clock != nil {
			repo.now = clock
		}
	}
}

type dependencyHealthRepository struct {
	checks         []DependencyCheck
	defaultTimeout time.Duration
	now            func() time.Time
}

var _ HealthRepository = (*dependencyHealthRepository)(nil)

// NewDependencyHealthRepository builds a HealthRepository evaluating the given checks concurrently.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: at least one dependency check is required")
	}
	for _, check := range checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("health repository: dependency check missing name")
		}
		if check.Check == nil {
			return nil, fmt.Errorf("health repository: dependency %s missing check function", check.Name)
		}
	}

	repo := &dependencyHealthRepository{
		checks:         append([]DependencyCheck(nil), checks...),
		defaultTimeout: defaultDependencyTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

func (r *dependencyHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("health repository: context is required")
	}

	results := make(map[string]domain.SystemHealthCheck, len(r.checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, check := range r.checks {
		wg.Add(1)
		go func(check DependencyCheck) {
			defer wg.Done()
			result := r.runCheck(ctx, check)
			mu.Lock()
			results[check.Name] = result
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	status := domain.HealthStatusOK
	for _, result := range results {
		if result.Status == domain.HealthStatusError {
			status = domain.HealthStatusError
			break
		}
		if result.Status == domain.HealthStatusDegraded {
			status = domain.HealthStatusDegraded
		}
	}

	return domain.SystemHealthReport{
		Status:      status,
		Checks:      results,
		GeneratedAt: r.now(),
	}, nil
}

func (r *dependencyHealthRepository) runCheck(ctx context.Context, check DependencyCheck) domain.SystemHealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := check.Check(checkCtx)
	end := r.now()

	result := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	if err == nil && checkCtx.Err() != nil {
		err = checkCtx.Err()
	}
	if err == nil {
		return result
	}

	result.Error = err.Error()
	result.Detail = err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		result.Detail = "timeout"
	case errors.Is(err, context.Canceled):
		result.Detail = "cancelled"
	}
	result.Status = domain.HealthStatusError
	if check.Optional {
		result.Status = domain.HealthStatusDegraded
	}
	return result
}
