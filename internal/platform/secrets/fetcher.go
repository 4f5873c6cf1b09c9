package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultFallbackPath = ".secrets.local"
	defaultCacheTTL     = 10 * time.Minute
	metricNamespace     = "github.com/upfront-market/api/internal/platform/secrets"
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references (payment gateway keys, mail credentials, database DSNs)
// through Google Secret Manager with a short-lived cache and a local fallback file.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger

	projectID    string
	cacheTTL     time.Duration
	now          func() time.Time
	fallbackPath string

	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]cacheEntry

	latency   metric.Float64Histogram
	cacheHits metric.Int64Counter
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

type fetcherConfig struct {
	logger       *zap.Logger
	projectID    string
	fallbackPath string
	cacheTTL     time.Duration
	meter        metric.Meter
	client       secretManagerClient
	clientOpts   []option.ClientOption
	now          func() time.Time
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) { cfg.logger = logger }
}

// WithDefaultProject configures the project used when a reference carries no ?project= override.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherConfig) { cfg.projectID = strings.TrimSpace(projectID) }
}

// WithFallbackFile overrides the path to the local fallback secrets file.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) { cfg.fallbackPath = strings.TrimSpace(path) }
}

// WithCacheTTL bounds how long resolved values are reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(cfg *fetcherConfig) {
		if ttl > 0 {
			cfg.cacheTTL = ttl
		}
	}
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherConfig) { cfg.meter = m }
}

// WithSecretManagerClient injects a preconfigured Secret Manager client (primarily for tests).
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) { cfg.client = client }
}

// WithClientOptions forwards Cloud client options when constructing the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) { cfg.clientOpts = append(cfg.clientOpts, opts...) }
}

// WithClock overrides the cache clock.
func WithClock(now func() time.Time) Option {
	return func(cfg *fetcherConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// NewFetcher builds a Fetcher. A Secret Manager client that cannot be created leaves the fetcher in
// fallback-only mode instead of failing startup.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackPath,
		cacheTTL:     defaultCacheTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}

	f := &Fetcher{
		logger:       cfg.logger,
		projectID:    cfg.projectID,
		cacheTTL:     cfg.cacheTTL,
		now:          cfg.now,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]cacheEntry),
	}

	var err error
	if f.latency, err = meter.Float64Histogram("secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for secret fetch attempts"),
	); err != nil {
		cfg.logger.Warn("secrets: unable to register latency metric", zap.Error(err))
	}
	if f.cacheHits, err = meter.Int64Counter("secrets.fetch.cache_hits",
		metric.WithDescription("Count of cache hits when resolving secrets"),
	); err != nil {
		cfg.logger.Warn("secrets: unable to register cache hit metric", zap.Error(err))
	}

	if cfg.client != nil {
		f.client = cfg.client
		return f, nil
	}
	client, err := secretManagerClientFactory(ctx, cfg.clientOpts...)
	if err != nil {
		cfg.logger.Warn("secrets: secret manager client unavailable; operating in fallback mode", zap.Error(err))
		return f, nil
	}
	f.client = client
	f.ownsClient = true
	return f, nil
}

// Close releases the Secret Manager client when the fetcher created it.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// ResolveSecret implements config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Resolve returns the value for a secret://name[?version=N&project=P] reference.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	key := parsed.cacheKey()
	if value, ok := f.lookupCache(key); ok {
		f.recordCacheHit(ctx)
		f.recordLatency(ctx, time.Since(start), "cache")
		return value, nil
	}

	projectID := parsed.Project
	if projectID == "" {
		projectID = f.projectID
	}

	if projectID != "" && f.client != nil {
		value, fetchErr := f.fetchRemote(ctx, projectID, parsed)
		if fetchErr == nil {
			f.storeCache(key, value)
			f.recordLatency(ctx, time.Since(start), "remote")
			return value, nil
		}
		if !isFallbackError(fetchErr) {
			f.recordLatency(ctx, time.Since(start), "error")
			return "", fmt.Errorf("secrets: fetch failed for %s: %w", parsed.Name, fetchErr)
		}
		f.logger.Debug("secrets: falling back to local secrets", zap.String("secret", parsed.Name), zap.Error(fetchErr))
	}

	value, ok := f.lookupFallback(parsed)
	if !ok {
		f.recordLatency(ctx, time.Since(start), "error")
		return "", fmt.Errorf("secrets: fallback value not found for %s", parsed.Name)
	}
	f.storeCache(key, value)
	f.recordLatency(ctx, time.Since(start), "fallback")
	return value, nil
}

// Invalidate drops cached values for the reference so the next Resolve refetches it.
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := parseReference(ref)
	if err != nil {
		return
	}
	f.mu.Lock()
	delete(f.cache, parsed.cacheKey())
	f.mu.Unlock()
}

func (f *Fetcher) lookupCache(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[key]
	if !ok || !f.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

func (f *Fetcher) storeCache(key, value string) {
	f.mu.Lock()
	f.cache[key] = cacheEntry{value: value, expiresAt: f.now().Add(f.cacheTTL)}
	f.mu.Unlock()
}

func (f *Fetcher) fetchRemote(ctx context.Context, projectID string, ref reference) (string, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", projectID, ref.Name, ref.version())
	retry := gax.WithRetry(func() gax.Retryer {
		return gax.OnCodes([]codes.Code{codes.Unavailable, codes.ResourceExhausted}, gax.Backoff{
			Initial:    100 * time.Millisecond,
			Max:        time.Second,
			Multiplier: 2,
		})
	})
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name}, retry)
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) lookupFallback(ref reference) (string, bool) {
	f.fallbackOnce.Do(f.loadFallback)
	if f.fallbackErr != nil {
		f.logger.Debug("secrets: fallback load error", zap.Error(f.fallbackErr))
		return "", false
	}
	if val, ok := f.fallbackVals[ref.cacheKey()]; ok {
		return val, true
	}
	val, ok := f.fallbackVals[ref.Name]
	return val, ok
}

// loadFallback reads lines of `secret://name[?version=N]=value`. Blank lines and # comments are skipped.
func (f *Fetcher) loadFallback() {
	f.fallbackVals = map[string]string{}
	if f.fallbackPath == "" {
		return
	}
	file, err := os.Open(f.fallbackPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.fallbackErr = fmt.Errorf("secrets: unable to open fallback file %s: %w", f.fallbackPath, err)
		}
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// The reference itself contains no '=' before the query, so split on the last '='.
		idx := strings.LastIndex(line, "=")
		if idx <= 0 {
			continue
		}
		rawKey, value := strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:])
		parsed, err := parseReference(rawKey)
		if err != nil {
			continue
		}
		f.fallbackVals[parsed.cacheKey()] = value
		if parsed.Version == "" {
			f.fallbackVals[parsed.Name] = value
		}
	}
	if err := scanner.Err(); err != nil {
		f.fallbackErr = fmt.Errorf("secrets: failed reading %s: %w", f.fallbackPath, err)
	}
}

func (f *Fetcher) recordLatency(ctx context.Context, d time.Duration, source string) {
	if f.latency == nil {
		return
	}
	f.latency.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attribute.String("source", source)))
}

func (f *Fetcher) recordCacheHit(ctx context.Context) {
	if f.cacheHits == nil {
		return
	}
	f.cacheHits.Add(ctx, 1)
}

type reference struct {
	Name    string
	Version string
	Project string
}

func (r reference) version() string {
	if r.Version == "" {
		return "latest"
	}
	return r.Version
}

func (r reference) cacheKey() string {
	key := r.Name + "#" + r.version()
	if r.Project != "" {
		key = r.Project + "/" + key
	}
	return key
}

func parseReference(ref string) (reference, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return reference{}, errors.New("secrets: empty reference")
	}
	if strings.HasPrefix(ref, "sm://") {
		ref = "secret://" + strings.TrimPrefix(ref, "sm://")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return reference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return reference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}
	values := u.Query()
	return reference{
		Name:    name,
		Version: strings.TrimSpace(values.Get("version")),
		Project: strings.TrimSpace(values.Get("project")),
	}, nil
}

func isFallbackError(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
