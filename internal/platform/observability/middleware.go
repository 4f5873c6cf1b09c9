package observability

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/platform/requestctx"
)

// RequestIDHeader echoes the chi request id back to the client.
const RequestIDHeader = "X-Request-ID"

// Health check and media traffic is logged at debug level unless it fails.
var quietPrefixes = []string{"/healthz", "/readyz", "/metrics", "/media/"}

// InjectLoggerMiddleware stores logger on the request context.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
		})
	}
}

// RequestLoggerMiddleware writes one structured line per request once the handler returns. The
// line carries the matched route, its URL parameters (order oid, cart id, vendor coupon id) and
// the principal annotated by the auth middleware.
func RequestLoggerMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestctx.WithAnnotations(r.Context())
			traceInfo, _ := requestctx.Trace(ctx)
			if traceInfo.ProjectID == "" {
				traceInfo.ProjectID = projectID
			}
			requestID := middleware.GetReqID(ctx)
			if requestID != "" {
				w.Header().Set(RequestIDHeader, requestID)
			}

			logger := requestctx.Logger(ctx).With(
				zap.String("request_id", requestID),
				zap.String("method", SanitizeMethod(r.Method)),
				zap.String("trace_id", traceInfo.TraceID),
			)
			if resource := loggingTraceResource(traceInfo); resource != "" {
				logger = logger.With(zap.String("logging.googleapis.com/trace", resource))
			}
			if ip := ClientIP(r); ip != "" {
				logger = logger.With(zap.String("remote_ip", ip))
			}
			ctx = requestctx.WithLogger(ctx, logger)
			r = r.WithContext(ctx)

			recorder := newResponseRecorder(w)
			start := time.Now()
			quiet := isQuietPath(r.URL.Path)

			completed := false
			defer func() {
				status := recorder.Status()
				if !completed && status < http.StatusInternalServerError {
					status = http.StatusInternalServerError
				}
				route := SanitizeRoute(routePattern(r))
				annotateSpan(trace.SpanFromContext(ctx), status, route)

				fields := []zap.Field{
					zap.String("route", route),
					zap.Int("status", status),
					zap.Duration("latency", time.Since(start)),
					zap.Int64("bytes", recorder.BytesWritten()),
				}
				fields = append(fields, routeParamFields(r)...)
				fields = append(fields, annotationFields(ctx)...)

				level := completionLevel(status, quiet)
				if ce := logger.Check(level, "request completed"); ce != nil {
					ce.Write(fields...)
				}
			}()

			next.ServeHTTP(recorder, r)
			completed = true
		})
	}
}

// RecoveryMiddleware turns panics into the JSON 500 envelope and logs the stack.
func RecoveryMiddleware(fallback *zap.Logger) func(http.Handler) http.Handler {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				logger := requestctx.Logger(ctx)
				if logger == requestctx.NoopLogger() {
					logger = fallback
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				httpx.WriteError(ctx, w, httpx.NewError("internal_error", "An unexpected error occurred", http.StatusInternalServerError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the caller address without port. middleware.RealIP has already applied
// X-Forwarded-For and X-Real-IP by the time this runs.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return sanitizeString(addr, 64)
}

func isQuietPath(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func completionLevel(status int, quiet bool) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case quiet:
		return zapcore.DebugLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func routeParamFields(r *http.Request) []zap.Field {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	var fields []zap.Field
	for i, key := range rctx.URLParams.Keys {
		if key == "*" || key == "" || i >= len(rctx.URLParams.Values) {
			continue
		}
		value := rctx.URLParams.Values[i]
		if key == "user_id" {
			value = SanitizeUserID(value)
		}
		fields = append(fields, zap.String("param."+key, sanitizeString(value, 64)))
	}
	return fields
}

func annotationFields(ctx context.Context) []zap.Field {
	keys, values := requestctx.Annotations(ctx)
	fields := make([]zap.Field, 0, len(keys))
	for _, key := range keys {
		value := values[key]
		if key == "user_id" {
			value = SanitizeUserID(value)
		}
		fields = append(fields, zap.String(key, sanitizeString(value, 128)))
	}
	return fields
}

func routePattern(r *http.Request) string {
	if r == nil {
		return "/"
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if r.URL != nil && r.URL.Path != "" {
		return r.URL.Path
	}
	return "/"
}

func loggingTraceResource(info requestctx.TraceInfo) string {
	if info.ProjectID == "" || info.TraceID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", info.ProjectID, info.TraceID)
}

func annotateSpan(span trace.Span, status int, route string) {
	if span == nil || !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{semconv.HTTPResponseStatusCode(status)}
	if route != "" {
		attrs = append(attrs, semconv.HTTPRoute(route))
	}
	span.SetAttributes(attrs...)
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
		return
	}
	span.SetStatus(codes.Ok, "")
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	bytes       int64
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

// Flush keeps streaming responses working through the recorder.
func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *responseRecorder) Status() int { return r.status }

func (r *responseRecorder) BytesWritten() int64 { return r.bytes }
