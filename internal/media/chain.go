package media

import (
	"context"
	"errors"
	"time"
)

const defaultFetchTimeout = 3 * time.Second

// Logger receives structured media events.
type Logger func(ctx context.Context, event string, fields map[string]any)

// Recorder counts which backend served a request.
type Recorder interface {
	RecordMediaResolution(backend string)
}

// ChainOption customises a Chain.
type ChainOption func(*Chain)

// WithFetchTimeout bounds each backend lookup.
func WithFetchTimeout(timeout time.Duration) ChainOption {
	return func(c *Chain) {
		if timeout > 0 {
			c.fetchTimeout = timeout
		}
	}
}

// WithLogger installs an event logger.
func WithLogger(logger Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder installs a metrics recorder.
func WithRecorder(recorder Recorder) ChainOption {
	return func(c *Chain) {
		c.recorder = recorder
	}
}

// WithPlaceholder overrides the placeholder used when every backend misses.
func WithPlaceholder(placeholder *Placeholder) ChainOption {
	return func(c *Chain) {
		c.placeholder = placeholder
	}
}

// Chain tries resolvers in order and the candidates of the path within each resolver.
type Chain struct {
	resolvers    []Resolver
	placeholder  *Placeholder
	fetchTimeout time.Duration
	logger       Logger
	recorder     Recorder
}

// NewChain builds a chain over resolvers. Nil resolvers are skipped.
func NewChain(resolvers []Resolver, opts ...ChainOption) *Chain {
	c := &Chain{
		fetchTimeout: defaultFetchTimeout,
		logger:       func(context.Context, string, map[string]any) {},
		placeholder:  &Placeholder{},
	}
	for _, r := range resolvers {
		if r != nil {
			c.resolvers = append(c.resolvers, r)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Resolvers returns the configured backends in lookup order.
func (c *Chain) Resolvers() []Resolver {
	return append([]Resolver(nil), c.resolvers...)
}

// Resolve returns the first hit across resolvers and candidates. The error is ErrNotFound when
// every lookup missed and ErrInvalidPath for rejected paths. Backend failures count as misses.
func (c *Chain) Resolve(ctx context.Context, p string) (Object, error) {
	cleaned, err := CleanPath(p)
	if err != nil {
		return Object{}, err
	}
	candidates := Candidates(cleaned)
	for _, resolver := range c.resolvers {
		for _, candidate := range candidates {
			if ctx.Err() != nil {
				return Object{}, ctx.Err()
			}
			obj, err := c.tryResolver(ctx, resolver, candidate)
			if err == nil {
				if obj.ContentType == "" {
					obj.ContentType = ContentTypeFor(candidate)
				}
				if obj.Source == "" {
					obj.Source = resolver.Name()
				}
				c.logger(ctx, "media.resolve.hit", map[string]any{
					"path":      cleaned,
					"candidate": candidate,
					"backend":   obj.Source,
				})
				return obj, nil
			}
			if !errors.Is(err, ErrNotFound) {
				c.logger(ctx, "media.resolve.backend_error", map[string]any{
					"path":      cleaned,
					"candidate": candidate,
					"backend":   resolver.Name(),
					"error":     err.Error(),
				})
			}
		}
	}
	return Object{}, ErrNotFound
}

// Fetch resolves p and falls back to the placeholder, so it always yields an object.
func (c *Chain) Fetch(ctx context.Context, p string) Object {
	obj, err := c.Resolve(ctx, p)
	if err != nil {
		c.logger(ctx, "media.resolve.miss", map[string]any{"path": p, "reason": err.Error()})
		placeholderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		obj = c.placeholder.Render(placeholderCtx, p)
	}
	if c.recorder != nil {
		c.recorder.RecordMediaResolution(backendLabel(obj.Source))
	}
	return obj
}

func (c *Chain) tryResolver(ctx context.Context, resolver Resolver, candidate string) (obj Object, err error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			obj, err = Object{}, errors.New("media: resolver panicked")
		}
	}()
	return resolver.Resolve(fetchCtx, candidate)
}

// backendLabel collapses per-bucket resolver names into a bounded metric label.
func backendLabel(source string) string {
	for i := 0; i < len(source); i++ {
		if source[i] == ':' {
			return source[:i]
		}
	}
	if source == "" {
		return "unknown"
	}
	return source
}
