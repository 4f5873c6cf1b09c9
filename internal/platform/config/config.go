package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultDatabaseDriver       = "sqlite"
	defaultMaxOpenConns         = 25
	defaultMaxIdleConns         = 10
	defaultConnMaxLifetime      = 5 * time.Minute
	defaultConnMaxIdleTime      = 2 * time.Minute
	defaultAuthMode             = "jwt"
	defaultVerifyTimeout        = 5 * time.Second
	defaultCurrency             = "USD"
	defaultMailFromName         = "Upfront"
	defaultSMTPPort             = 25
	defaultMailTimeout          = 5 * time.Second
	defaultMediaRoot            = "./media"
	defaultPlaceholderURL       = "https://placehold.co"
	defaultMediaFetchTimeout    = 3 * time.Second
	defaultMediaMaxRedirects    = 3
	defaultMediaCacheMaxAge     = 24 * time.Hour
	defaultSecurityEnvironment  = "local"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	defaultSettingsCacheTTL     = 10 * time.Minute
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Firebase    FirebaseConfig
	PSP         PSPConfig
	Mail        MailConfig
	Media       MediaConfig
	PubSub      PubSubConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	PublicBaseURL string
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
}

// RedisConfig points at the cache used for idempotency keys and settings.
type RedisConfig struct {
	Addr             string
	Password         string
	DB               int
	SettingsCacheTTL time.Duration
}

// Enabled reports whether a redis address was configured.
func (c RedisConfig) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	Mode      string
	JWTSecret string
	JWTIssuer string
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	CheckRevoked    bool
}

// PSPConfig collects payment provider credentials.
type PSPConfig struct {
	StripeAPIKey        string
	StripeWebhookSecret string
	PayPalClientID      string
	PayPalSecret        string
	PayPalBaseURL       string
	MidtransServerKey   string
	MidtransProduction  bool
	VerifyTimeout       time.Duration
	DefaultCurrency     string
}

// MailConfig configures transactional email delivery.
type MailConfig struct {
	MailerSendAPIKey  string
	FromAddress       string
	FromName          string
	OperationsAddress string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	Timeout           time.Duration
}

// MediaConfig lists the backends tried when serving media.
type MediaConfig struct {
	S3Bucket         string
	S3Region         string
	S3FallbackBucket string
	S3Endpoint       string
	S3AccessKey      string
	S3SecretKey      string
	GCSBucket        string
	CDNCloudName     string
	CDNBaseURL       string
	CDNVendorPrefix  string
	LocalRoot        string
	PlaceholderURL   string
	FetchTimeout     time.Duration
	MaxRedirects     int
	RedirectToCDN    bool
	CacheMaxAge      time.Duration
}

// PubSubConfig configures order event publishing.
type PubSubConfig struct {
	ProjectID  string
	OrderTopic string
}

// SecurityConfig groups deployment level security settings.
type SecurityConfig struct {
	Environment      string
	SecretsProjectID string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

// WithEnvFile overrides the dotenv file path. An empty path disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks config fields (e.g. "PSP.StripeAPIKey") as mandatory.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) { o.panicOnMissingSecrets = true }
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// EnvironmentValues returns the effective environment after applying Load's precedence rules
// (dotenv < process env < explicit map). Callers use it to build dependencies needed by Load itself.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)
	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(dotEnv))
	for k, v := range dotEnv {
		values[k] = v
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[strings.TrimSpace(key)] = value
		}
	}
	for k, v := range options.envMap {
		values[k] = v
	}
	return values, nil
}

// Load assembles the application configuration from defaults, dotenv overrides, the environment and
// optional Secret Manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)

	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnv[key]
		return value, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:          stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:   durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:  durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:   durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			PublicBaseURL: strings.TrimRight(stringWithDefault(lookup, "API_SERVER_PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(stringWithDefault(lookup, "API_DATABASE_DRIVER", defaultDatabaseDriver)),
			DSN:             stringWithDefault(lookup, "API_DATABASE_DSN", ""),
			MaxOpenConns:    intWithDefault(lookup, "API_DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
			MaxIdleConns:    intWithDefault(lookup, "API_DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
			ConnMaxLifetime: durationWithDefault(lookup, "API_DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
			ConnMaxIdleTime: durationWithDefault(lookup, "API_DATABASE_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime),
			AutoMigrate:     boolWithDefault(lookup, "API_DATABASE_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Addr:             stringWithDefault(lookup, "API_REDIS_ADDR", ""),
			Password:         stringWithDefault(lookup, "API_REDIS_PASSWORD", ""),
			DB:               intWithDefault(lookup, "API_REDIS_DB", 0),
			SettingsCacheTTL: durationWithDefault(lookup, "API_REDIS_SETTINGS_CACHE_TTL", defaultSettingsCacheTTL),
		},
		Auth: AuthConfig{
			Mode:      strings.ToLower(stringWithDefault(lookup, "API_AUTH_MODE", defaultAuthMode)),
			JWTSecret: stringWithDefault(lookup, "API_AUTH_JWT_SECRET", ""),
			JWTIssuer: stringWithDefault(lookup, "API_AUTH_JWT_ISSUER", ""),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
			CheckRevoked:    boolWithDefault(lookup, "API_FIREBASE_CHECK_REVOKED", false),
		},
		PSP: PSPConfig{
			StripeAPIKey:        stringWithDefault(lookup, "API_PSP_STRIPE_API_KEY", ""),
			StripeWebhookSecret: stringWithDefault(lookup, "API_PSP_STRIPE_WEBHOOK_SECRET", ""),
			PayPalClientID:      stringWithDefault(lookup, "API_PSP_PAYPAL_CLIENT_ID", ""),
			PayPalSecret:        stringWithDefault(lookup, "API_PSP_PAYPAL_SECRET", ""),
			PayPalBaseURL:       strings.TrimRight(stringWithDefault(lookup, "API_PSP_PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"), "/"),
			MidtransServerKey:   stringWithDefault(lookup, "API_PSP_MIDTRANS_SERVER_KEY", ""),
			MidtransProduction:  boolWithDefault(lookup, "API_PSP_MIDTRANS_PRODUCTION", false),
			VerifyTimeout:       durationWithDefault(lookup, "API_PSP_VERIFY_TIMEOUT", defaultVerifyTimeout),
			DefaultCurrency:     strings.ToUpper(stringWithDefault(lookup, "API_PSP_DEFAULT_CURRENCY", defaultCurrency)),
		},
		Mail: MailConfig{
			MailerSendAPIKey:  stringWithDefault(lookup, "API_MAIL_MAILERSEND_API_KEY", ""),
			FromAddress:       stringWithDefault(lookup, "API_MAIL_FROM_ADDRESS", ""),
			FromName:          stringWithDefault(lookup, "API_MAIL_FROM_NAME", defaultMailFromName),
			OperationsAddress: stringWithDefault(lookup, "API_MAIL_OPERATIONS_ADDRESS", ""),
			SMTPHost:          stringWithDefault(lookup, "API_MAIL_SMTP_HOST", ""),
			SMTPPort:          intWithDefault(lookup, "API_MAIL_SMTP_PORT", defaultSMTPPort),
			SMTPUsername:      stringWithDefault(lookup, "API_MAIL_SMTP_USERNAME", ""),
			SMTPPassword:      stringWithDefault(lookup, "API_MAIL_SMTP_PASSWORD", ""),
			Timeout:           durationWithDefault(lookup, "API_MAIL_TIMEOUT", defaultMailTimeout),
		},
		Media: MediaConfig{
			S3Bucket:         stringWithDefault(lookup, "API_MEDIA_S3_BUCKET", ""),
			S3Region:         stringWithDefault(lookup, "API_MEDIA_S3_REGION", ""),
			S3FallbackBucket: stringWithDefault(lookup, "API_MEDIA_S3_FALLBACK_BUCKET", ""),
			S3Endpoint:       stringWithDefault(lookup, "API_MEDIA_S3_ENDPOINT", ""),
			S3AccessKey:      stringWithDefault(lookup, "API_MEDIA_S3_ACCESS_KEY", ""),
			S3SecretKey:      stringWithDefault(lookup, "API_MEDIA_S3_SECRET_KEY", ""),
			GCSBucket:        stringWithDefault(lookup, "API_MEDIA_GCS_BUCKET", ""),
			CDNCloudName:     stringWithDefault(lookup, "API_MEDIA_CDN_CLOUD_NAME", ""),
			CDNBaseURL:       strings.TrimRight(stringWithDefault(lookup, "API_MEDIA_CDN_BASE_URL", ""), "/"),
			CDNVendorPrefix:  strings.Trim(stringWithDefault(lookup, "API_MEDIA_CDN_VENDOR_PREFIX", ""), "/"),
			LocalRoot:        stringWithDefault(lookup, "API_MEDIA_LOCAL_ROOT", defaultMediaRoot),
			PlaceholderURL:   strings.TrimRight(stringWithDefault(lookup, "API_MEDIA_PLACEHOLDER_URL", defaultPlaceholderURL), "/"),
			FetchTimeout:     durationWithDefault(lookup, "API_MEDIA_FETCH_TIMEOUT", defaultMediaFetchTimeout),
			MaxRedirects:     intWithDefault(lookup, "API_MEDIA_MAX_REDIRECTS", defaultMediaMaxRedirects),
			RedirectToCDN:    boolWithDefault(lookup, "API_MEDIA_REDIRECT_TO_CDN", false),
			CacheMaxAge:      durationWithDefault(lookup, "API_MEDIA_CACHE_MAX_AGE", defaultMediaCacheMaxAge),
		},
		PubSub: PubSubConfig{
			ProjectID:  stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			OrderTopic: stringWithDefault(lookup, "API_PUBSUB_ORDER_TOPIC", ""),
		},
		Security: SecurityConfig{
			Environment:      strings.ToLower(stringWithDefault(lookup, "API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			SecretsProjectID: stringWithDefault(lookup, "API_SECRETS_PROJECT_ID", ""),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Security.SecretsProjectID == "" {
		cfg.Security.SecretsProjectID = cfg.Firebase.ProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Database.DSN", &cfg.Database.DSN},
		{"Redis.Password", &cfg.Redis.Password},
		{"Auth.JWTSecret", &cfg.Auth.JWTSecret},
		{"PSP.StripeAPIKey", &cfg.PSP.StripeAPIKey},
		{"PSP.StripeWebhookSecret", &cfg.PSP.StripeWebhookSecret},
		{"PSP.PayPalSecret", &cfg.PSP.PayPalSecret},
		{"PSP.MidtransServerKey", &cfg.PSP.MidtransServerKey},
		{"Mail.MailerSendAPIKey", &cfg.Mail.MailerSendAPIKey},
		{"Mail.SMTPPassword", &cfg.Mail.SMTPPassword},
		{"Media.S3SecretKey", &cfg.Media.S3SecretKey},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	switch cfg.Database.Driver {
	case "sqlite":
	case "mysql", "postgres":
		if strings.TrimSpace(cfg.Database.DSN) == "" {
			invalid = append(invalid, "Database.DSN")
		}
	default:
		invalid = append(invalid, "Database.Driver")
	}
	switch cfg.Auth.Mode {
	case "jwt":
		if strings.TrimSpace(cfg.Auth.JWTSecret) == "" && cfg.Security.Environment != defaultSecurityEnvironment {
			invalid = append(invalid, "Auth.JWTSecret")
		}
	case "firebase":
		if cfg.Firebase.ProjectID == "" {
			invalid = append(invalid, "Firebase.ProjectID")
		}
	default:
		invalid = append(invalid, "Auth.Mode")
	}
	if cfg.PSP.VerifyTimeout <= 0 {
		invalid = append(invalid, "PSP.VerifyTimeout")
	}
	if cfg.Mail.Timeout <= 0 {
		invalid = append(invalid, "Mail.Timeout")
	}
	if cfg.Media.MaxRedirects <= 0 {
		invalid = append(invalid, "Media.MaxRedirects")
	}
	if cfg.Media.FetchTimeout <= 0 {
		invalid = append(invalid, "Media.FetchTimeout")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		invalid = append(invalid, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		invalid = append(invalid, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		invalid = append(invalid, "Idempotency.CleanupBatchSize")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(value))); err == nil {
			return parsed
		}
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		}
	}
	return fallback
}
