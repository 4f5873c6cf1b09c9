package idempotency

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/platform/httpx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
	maxKeyLength      = 255
	// defaultMaxBody matches the JSON decode limit of the handlers.
	defaultMaxBody = 1 << 20
)

// Logger abstracts the logging dependency used inside the middleware.
type Logger interface {
	Printf(format string, args ...any)
}

type clockFunc func() time.Time

type middlewareConfig struct {
	headerName string
	ttl        time.Duration
	maxBody    int64
	methods    map[string]struct{}
	clock      clockFunc
	logger     Logger
}

// MiddlewareOption customises middleware behaviour.
type MiddlewareOption func(*middlewareConfig)

// WithHeader overrides the header carrying the key.
func WithHeader(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if name = strings.TrimSpace(name); name != "" {
			cfg.headerName = name
		}
	}
}

// WithTTL sets how long replayable responses are kept.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithMaxBody caps the request body buffered for fingerprinting.
func WithMaxBody(limit int64) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if limit > 0 {
			cfg.maxBody = limit
		}
	}
}

// WithMethods restricts the guarded HTTP methods.
func WithMethods(methods ...string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		set := make(map[string]struct{}, len(methods))
		for _, method := range methods {
			if method = strings.ToUpper(strings.TrimSpace(method)); method != "" {
				set[method] = struct{}{}
			}
		}
		if len(set) > 0 {
			cfg.methods = set
		}
	}
}

// WithLogger receives store failures.
func WithLogger(logger Logger) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(clock clockFunc) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

func mutatingMethods() map[string]struct{} {
	return map[string]struct{}{
		http.MethodPost:   {},
		http.MethodPut:    {},
		http.MethodPatch:  {},
		http.MethodDelete: {},
	}
}

// Middleware replays the stored response when a mutating request repeats its Idempotency-Key.
// Keys are scoped to the caller: the token subject, or the client address for guest storefront
// traffic. Requests without a key pass through. Server errors and throttled responses are not
// stored, so a buyer retrying a payment confirmation after a provider outage re-runs it.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	cfg := middlewareConfig{
		headerName: defaultHeaderName,
		ttl:        DefaultTTL,
		maxBody:    defaultMaxBody,
		methods:    mutatingMethods(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := cfg.methods[r.Method]; !ok {
				next.ServeHTTP(w, r)
				return
			}
			key := strings.TrimSpace(r.Header.Get(cfg.headerName))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				respondError(w, r, http.StatusBadRequest, "idempotency_key_invalid", "idempotency key too long")
				return
			}

			body, err := bufferBody(r, cfg.maxBody)
			if errors.Is(err, errBodyTooLarge) {
				respondError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
				return
			}
			if err != nil {
				respondError(w, r, http.StatusBadRequest, "idempotency_read_body_failed", "unable to read request body")
				return
			}

			caller := requester(r)
			fingerprint := requestFingerprint(r, body, caller)
			scoped := scopedKey(key, caller)
			ctx := r.Context()

			reservation, err := store.Reserve(ctx, scoped, fingerprint, cfg.clock().UTC(), cfg.ttl)
			if err != nil {
				handleStoreError(w, r, cfg.logger, err)
				return
			}
			switch reservation.State {
			case ReservationStateCompleted:
				writeStoredResponse(w, reservation.Record)
				return
			case ReservationStatePending:
				respondError(w, r, http.StatusConflict, "idempotency_in_progress", "another request is processing this idempotency key")
				return
			case ReservationStateNew:
			default:
				respondError(w, r, http.StatusInternalServerError, "idempotency_unknown_state", "unexpected idempotency state")
				return
			}

			recorder := newResponseRecorder(w)
			next.ServeHTTP(recorder, r)

			if !replayable(recorder.Status()) {
				if err := store.Release(ctx, scoped, fingerprint); err != nil {
					cfg.logf("idempotency: release key %s after status %d: %v", key, recorder.Status(), err)
				}
				cfg.flush(recorder, key)
				return
			}

			response := Response{
				Status:  recorder.Status(),
				Headers: recorder.HeaderSnapshot(),
				Body:    recorder.Body(),
			}
			if err := store.SaveResponse(ctx, scoped, fingerprint, response, cfg.clock().UTC(), cfg.ttl); err != nil {
				cfg.logf("idempotency: persist response for key %s (caller %s): %v", key, caller, err)
				if releaseErr := store.Release(ctx, scoped, fingerprint); releaseErr != nil {
					cfg.logf("idempotency: release key %s after save failure: %v", key, releaseErr)
				}
				respondError(w, r, http.StatusInternalServerError, "idempotency_store_error", "unable to persist idempotency state")
				return
			}
			cfg.flush(recorder, key)
		})
	}
}

func (cfg middlewareConfig) logf(format string, args ...any) {
	if cfg.logger != nil {
		cfg.logger.Printf(format, args...)
	}
}

func (cfg middlewareConfig) flush(recorder *responseRecorder, key string) {
	if err := recorder.Commit(); err != nil {
		cfg.logf("idempotency: flush response for key %s: %v", key, err)
	}
}

// replayable excludes outcomes a retry may legitimately change.
func replayable(status int) bool {
	return status < http.StatusInternalServerError && status != http.StatusTooManyRequests
}

var errBodyTooLarge = errors.New("idempotency: body exceeds limit")

func bufferBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// requestFingerprint ignores Host so the same request through different edge proxies matches.
func requestFingerprint(r *http.Request, body []byte, caller string) string {
	parts := []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Header.Get("Content-Type"),
		caller,
		hashBody(body),
	}
	return sha256Hex([]byte(strings.Join(parts, "|")))
}

// requester identifies who owns a key. The middleware is mounted ahead of the route-group auth,
// so an unverified bearer credential is keyed by its hash; the handler still verifies it.
func requester(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity.UID != "" {
		return "user:" + identity.UID
	}
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		return "bearer:" + sha256Hex([]byte(authz))[:32]
	}
	host := strings.TrimSpace(r.RemoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return "guest"
	}
	return "guest:" + host
}

func hashBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return sha256Hex(body)
}

func scopedKey(key, caller string) string {
	return strings.TrimSpace(key) + "|" + caller
}

func handleStoreError(w http.ResponseWriter, r *http.Request, logger Logger, err error) {
	if errors.Is(err, ErrFingerprintMismatch) {
		respondError(w, r, http.StatusConflict, "idempotency_key_conflict", "idempotency key already used for a different request")
		return
	}
	if logger != nil {
		logger.Printf("idempotency: store error: %v", err)
	}
	respondError(w, r, http.StatusServiceUnavailable, "idempotency_store_unavailable", "unable to process idempotency key")
}

func writeStoredResponse(w http.ResponseWriter, record Record) {
	dst := w.Header()
	for key, values := range headersFromRecord(record.ResponseHeaders) {
		dst[key] = values
	}
	dst.Set(replayHeaderName, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(record.ResponseBody) > 0 {
		_, _ = w.Write(record.ResponseBody)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	httpx.WriteError(r.Context(), w, httpx.NewError(code, message, status))
}

// responseRecorder buffers the handler output until the store decides whether to keep it.
type responseRecorder struct {
	parent http.ResponseWriter
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseRecorder(parent http.ResponseWriter) *responseRecorder {
	return &responseRecorder{parent: parent, header: make(http.Header)}
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 && status > 0 {
		r.status = status
	}
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(data)
}

func (r *responseRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseRecorder) Body() []byte {
	if r.body.Len() == 0 {
		return nil
	}
	return r.body.Bytes()
}

func (r *responseRecorder) HeaderSnapshot() http.Header {
	return r.header.Clone()
}

func (r *responseRecorder) Commit() error {
	dst := r.parent.Header()
	for key, values := range r.header {
		dst[key] = append([]string(nil), values...)
	}
	r.parent.WriteHeader(r.Status())
	if r.body.Len() == 0 {
		return nil
	}
	_, err := r.parent.Write(r.body.Bytes())
	return err
}
