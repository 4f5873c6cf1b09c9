package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/upfront-market/api/internal/platform/requestctx"
	"github.com/upfront-market/api/internal/repositories"
)

type eventLogger = func(context.Context, string, map[string]any)

func noopLogger(context.Context, string, map[string]any) {}

func defaultIDGenerator() string { return ulid.Make().String() }

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}

// guestUserIDs are the values storefronts send for anonymous shoppers.
var guestUserIDs = map[string]struct{}{
	"":          {},
	"undefined": {},
	"null":      {},
}

// normaliseUserID maps guest sentinels to nil.
func normaliseUserID(userID string) *string {
	trimmed := strings.TrimSpace(userID)
	if _, guest := guestUserIDs[strings.ToLower(trimmed)]; guest {
		return nil
	}
	return &trimmed
}

// TaskRunner executes follow-up work that must not delay or fail the caller.
type TaskRunner interface {
	Go(ctx context.Context, name string, task func(ctx context.Context))
}

// InlineRunner runs tasks synchronously on a detached context.
type InlineRunner struct{}

func (InlineRunner) Go(ctx context.Context, _ string, task func(ctx context.Context)) {
	task(requestctx.Detach(ctx))
}

// AsyncRunner runs tasks on background goroutines and can be drained on shutdown.
type AsyncRunner struct {
	wg     sync.WaitGroup
	logger eventLogger
}

// NewAsyncRunner builds an AsyncRunner. Panicking tasks are logged and swallowed.
func NewAsyncRunner(logger func(context.Context, string, map[string]any)) *AsyncRunner {
	if logger == nil {
		logger = noopLogger
	}
	return &AsyncRunner{logger: logger}
}

func (r *AsyncRunner) Go(ctx context.Context, name string, task func(ctx context.Context)) {
	detached := requestctx.Detach(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger(detached, "task.panic", map[string]any{"task": name, "panic": rec})
			}
		}()
		task(detached)
	}()
}

// Wait blocks until running tasks finish or ctx is done.
func (r *AsyncRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
