package requestctx

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

type (
	loggerKey     struct{}
	traceKey      struct{}
	annotationKey struct{}
)

var noopLogger = zap.NewNop()

// TraceInfo captures trace metadata propagated through the request context.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger stores the logger in ctx for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the request logger or a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noopLogger
	}
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger exposes the shared no-op logger.
func NoopLogger() *zap.Logger { return noopLogger }

// WithTrace stores trace metadata on ctx.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceKey{}, info)
}

// Trace returns the trace metadata stored on ctx.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceKey{}).(TraceInfo)
	return info, ok
}

// TraceID returns the trace identifier stored on ctx, if any.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// Detach returns a context that keeps the logger and trace of ctx but is never cancelled.
// Work that must outlive the request, such as notification fan-out, runs on it.
func Detach(ctx context.Context) context.Context {
	out := WithLogger(context.Background(), Logger(ctx))
	if info, ok := Trace(ctx); ok {
		out = WithTrace(out, info)
	}
	return out
}

// annotations collects request attributes learned after the request logger ran, such as the
// authenticated principal. Inner middleware writes, the outer logger reads once the handler returns.
type annotations struct {
	mu     sync.Mutex
	values map[string]string
}

// WithAnnotations installs an empty annotation holder on ctx.
func WithAnnotations(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, annotationKey{}, &annotations{values: make(map[string]string)})
}

// Annotate records key=value on the holder installed by WithAnnotations. Empty values and
// contexts without a holder are ignored.
func Annotate(ctx context.Context, key, value string) {
	if ctx == nil || key == "" || value == "" {
		return
	}
	holder, ok := ctx.Value(annotationKey{}).(*annotations)
	if !ok {
		return
	}
	holder.mu.Lock()
	holder.values[key] = value
	holder.mu.Unlock()
}

// Annotations returns the recorded keys in sorted order with their values.
func Annotations(ctx context.Context) ([]string, map[string]string) {
	if ctx == nil {
		return nil, nil
	}
	holder, ok := ctx.Value(annotationKey{}).(*annotations)
	if !ok {
		return nil, nil
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()
	keys := make([]string, 0, len(holder.values))
	values := make(map[string]string, len(holder.values))
	for k, v := range holder.values {
		keys = append(keys, k)
		values[k] = v
	}
	sort.Strings(keys)
	return keys, values
}
