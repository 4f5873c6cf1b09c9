package observability

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/upfront-market/api/internal/platform/requestctx"
)

const (
	cloudTraceHeader  = "X-Cloud-Trace-Context"
	traceparentHeader = "traceparent"
)

var tracer = otel.Tracer("github.com/upfront-market/api/internal/platform/observability")

// TraceMiddleware extracts W3C traceparent or Cloud Trace headers, starts a server span and stores
// trace metadata on the request context.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			info, remoteSpanCtx, ok := parseTraceparent(r.Header.Get(traceparentHeader))
			if !ok {
				info, remoteSpanCtx, ok = parseCloudTraceContext(r.Header.Get(cloudTraceHeader))
			}
			if ok {
				ctx = trace.ContextWithRemoteSpanContext(ctx, remoteSpanCtx)
			}

			ctx, span := tracer.Start(ctx, spanNameFromRequest(r), trace.WithSpanKind(trace.SpanKindServer))
			span.SetAttributes(standardSpanAttributes(r)...)

			spanCtx := span.SpanContext()
			if spanCtx.TraceID().IsValid() {
				info.TraceID = spanCtx.TraceID().String()
				info.SpanID = spanCtx.SpanID().String()
				info.Sampled = spanCtx.IsSampled()
			}
			info.ProjectID = projectID

			ctx = requestctx.WithTrace(ctx, info)
			r = r.WithContext(ctx)

			if formatted := formatCloudTraceHeader(info); formatted != "" {
				w.Header().Set(cloudTraceHeader, formatted)
			}

			defer span.End()
			next.ServeHTTP(w, r)
		})
	}
}

// parseTraceparent parses "00-<trace-id>-<parent-id>-<flags>".
func parseTraceparent(header string) (requestctx.TraceInfo, trace.SpanContext, bool) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 || len(parts[0]) != 2 || parts[0] == "ff" {
		return requestctx.TraceInfo{}, trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(parts[1])
	if err != nil {
		return requestctx.TraceInfo{}, trace.SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(parts[2])
	if err != nil {
		return requestctx.TraceInfo{}, trace.SpanContext{}, false
	}
	flagBytes, err := hex.DecodeString(parts[3])
	if err != nil || len(flagBytes) != 1 {
		return requestctx.TraceInfo{}, trace.SpanContext{}, false
	}
	flags := trace.TraceFlags(flagBytes[0]) & trace.FlagsSampled

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	})
	return requestctx.TraceInfo{
		TraceID: traceID.String(),
		SpanID:  spanID.String(),
		Sampled: flags.IsSampled(),
	}, spanCtx, true
}

func parseCloudTraceContext(header string) (requestctx.TraceInfo, trace.SpanContext, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return requestctx.TraceInfo{}, trace.SpanContext{}, false
	}

	traceIDHex, spanPart, found := strings.Cut(header, "/")
	if !found || len(strings.TrimSpace(traceIDHex)) != 32 {
		return requestctx.TraceInfo{}, trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(strings.TrimSpace(traceIDHex))
	if err != nil {
		return requestctx.TraceInfo{}, trace.SpanContext{}, false
	}

	spanPart, optionPart, _ := strings.Cut(spanPart, ";")
	spanID, ok := parseSpanID(spanPart)
	if !ok {
		return requestctx.TraceInfo{}, trace.SpanContext{}, false
	}

	sampled := parseTraceOptions(optionPart)
	flags := trace.TraceFlags(0)
	if sampled {
		flags = trace.FlagsSampled
	}

	return requestctx.TraceInfo{
			TraceID: traceID.String(),
			SpanID:  spanID.String(),
			Sampled: sampled,
		}, trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: flags,
			Remote:     true,
		}), true
}

func parseSpanID(value string) (trace.SpanID, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return trace.SpanID{}, false
	}

	// Cloud Trace sends span ids as unsigned decimals.
	if num, err := strconv.ParseUint(value, 10, 64); err == nil {
		var spanID trace.SpanID
		binary.BigEndian.PutUint64(spanID[:], num)
		if spanID.IsValid() {
			return spanID, true
		}
		return trace.SpanID{}, false
	}

	if len(value) <= 16 {
		padded := strings.Repeat("0", 16-len(value)) + value
		if spanID, err := trace.SpanIDFromHex(padded); err == nil {
			return spanID, true
		}
	}
	return trace.SpanID{}, false
}

func parseTraceOptions(optionPart string) bool {
	for _, segment := range strings.Split(optionPart, ";") {
		segment = strings.TrimSpace(segment)
		if strings.HasPrefix(segment, "o=") {
			return segment == "o=1"
		}
	}
	return false
}

func formatCloudTraceHeader(info requestctx.TraceInfo) string {
	if info.TraceID == "" || info.SpanID == "" {
		return ""
	}
	option := "0"
	if info.Sampled {
		option = "1"
	}
	return fmt.Sprintf("%s/%s;o=%s", info.TraceID, info.SpanID, option)
}

func spanNameFromRequest(r *http.Request) string {
	if r == nil || r.URL == nil {
		return "unknown"
	}
	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	return r.Method + " " + path
}

func standardSpanAttributes(r *http.Request) []attribute.KeyValue {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", r.Method),
		attribute.String("url.scheme", scheme),
	}
	if r.URL != nil && r.URL.Path != "" {
		attrs = append(attrs, attribute.String("url.path", r.URL.Path))
	}
	if host := r.Host; host != "" {
		attrs = append(attrs, attribute.String("server.address", host))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", ua))
	}
	return attrs
}
