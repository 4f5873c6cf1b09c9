package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.Database.Driver)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 10 {
		t.Errorf("unexpected pool sizes %d/%d", cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}
	if cfg.Auth.Mode != "jwt" {
		t.Errorf("expected jwt auth mode, got %s", cfg.Auth.Mode)
	}
	if cfg.PSP.VerifyTimeout != 5*time.Second {
		t.Errorf("unexpected verify timeout %s", cfg.PSP.VerifyTimeout)
	}
	if cfg.Mail.FromName != "Upfront" {
		t.Errorf("unexpected mail sender name %s", cfg.Mail.FromName)
	}
	if cfg.Media.MaxRedirects != 3 {
		t.Errorf("unexpected media redirect limit %d", cfg.Media.MaxRedirects)
	}
	if cfg.Media.CacheMaxAge != 24*time.Hour {
		t.Errorf("unexpected media cache max age %s", cfg.Media.CacheMaxAge)
	}
	if cfg.Redis.Enabled() {
		t.Errorf("expected redis disabled without address")
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected local environment, got %s", cfg.Security.Environment)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.CleanupBatchSize != defaultIdempotencyBatchSize {
		t.Errorf("unexpected default cleanup batch size: %d", cfg.Idempotency.CleanupBatchSize)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":               "9090",
		"API_SERVER_IDLE_TIMEOUT":       "2m",
		"API_SERVER_PUBLIC_BASE_URL":    "https://shop.example.com/",
		"API_DATABASE_DRIVER":           "postgres",
		"API_DATABASE_DSN":              "secret://db/dsn",
		"API_REDIS_ADDR":                "localhost:6379",
		"API_AUTH_JWT_SECRET":           "secret://auth/jwt",
		"API_PSP_STRIPE_API_KEY":        "secret://stripe/api",
		"API_PSP_STRIPE_WEBHOOK_SECRET": "secret://stripe/webhook",
		"API_PSP_PAYPAL_CLIENT_ID":      "paypal-client",
		"API_PSP_PAYPAL_SECRET":         "secret://paypal/secret",
		"API_PSP_MIDTRANS_PRODUCTION":   "true",
		"API_PSP_VERIFY_TIMEOUT":        "3s",
		"API_PSP_DEFAULT_CURRENCY":      "eur",
		"API_MAIL_MAILERSEND_API_KEY":   "secret://mail/key",
		"API_MEDIA_S3_BUCKET":           "media-prod",
		"API_MEDIA_CDN_VENDOR_PREFIX":   "/vendor/",
		"API_MEDIA_MAX_REDIRECTS":       "5",
		"API_MEDIA_REDIRECT_TO_CDN":     "on",
		"API_FIREBASE_PROJECT_ID":       "upfront-prod",
		"API_SECURITY_ENVIRONMENT":      "PROD",
		"API_IDEMPOTENCY_HEADER":        "X-Idem-Key",
		"API_IDEMPOTENCY_TTL":           "48h",
	}
	secrets := map[string]string{
		"secret://db/dsn":         "postgres://u:p@db/upfront",
		"secret://auth/jwt":       "jwt-secret",
		"secret://stripe/api":     "stripe-key",
		"secret://stripe/webhook": "stripe-webhook",
		"secret://paypal/secret":  "paypal-secret",
		"secret://mail/key":       "mail-key",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("unknown secret")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Server.PublicBaseURL != "https://shop.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Server.PublicBaseURL)
	}
	if cfg.Database.DSN != "postgres://u:p@db/upfront" {
		t.Errorf("expected resolved dsn, got %s", cfg.Database.DSN)
	}
	if !cfg.Redis.Enabled() {
		t.Errorf("expected redis enabled")
	}
	if cfg.PSP.StripeAPIKey != "stripe-key" || cfg.PSP.PayPalSecret != "paypal-secret" {
		t.Errorf("expected resolved psp secrets, got %+v", cfg.PSP)
	}
	if !cfg.PSP.MidtransProduction {
		t.Errorf("expected midtrans production")
	}
	if cfg.PSP.DefaultCurrency != "EUR" {
		t.Errorf("expected upper-cased currency, got %s", cfg.PSP.DefaultCurrency)
	}
	if cfg.Mail.MailerSendAPIKey != "mail-key" {
		t.Errorf("expected resolved mail key, got %s", cfg.Mail.MailerSendAPIKey)
	}
	if cfg.Media.CDNVendorPrefix != "vendor" || cfg.Media.MaxRedirects != 5 || !cfg.Media.RedirectToCDN {
		t.Errorf("unexpected media config %+v", cfg.Media)
	}
	if cfg.PubSub.ProjectID != "upfront-prod" {
		t.Errorf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Security.Environment != "prod" {
		t.Errorf("expected prod environment, got %s", cfg.Security.Environment)
	}
	if cfg.Idempotency.Header != "X-Idem-Key" || cfg.Idempotency.TTL != 48*time.Hour {
		t.Errorf("unexpected idempotency config %+v", cfg.Idempotency)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\n# comment\nexport API_MAIL_FROM_ADDRESS=\"shop@example.com\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Mail.FromAddress != "shop@example.com" {
		t.Errorf("expected mail address from dotenv, got %s", cfg.Mail.FromAddress)
	}
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	if _, err := Load(context.Background(), WithEnvFile(filepath.Join(t.TempDir(), "absent.env")), WithoutSystemEnv()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
}

func TestLoadValidationFailures(t *testing.T) {
	env := map[string]string{
		"API_DATABASE_DRIVER":      "mysql",
		"API_AUTH_MODE":            "firebase",
		"API_MEDIA_MAX_REDIRECTS":  "0",
		"API_SECURITY_ENVIRONMENT": "prod",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T (%v)", err, err)
	}
	want := map[string]bool{"Database.DSN": true, "Firebase.ProjectID": true, "Media.MaxRedirects": true}
	for _, field := range validation.Fields() {
		delete(want, field)
	}
	if len(want) != 0 {
		t.Fatalf("missing validation fields %v in %v", want, validation.Fields())
	}
}

func TestLoadRequiresJWTSecretOutsideLocal(t *testing.T) {
	env := map[string]string{"API_SECURITY_ENVIRONMENT": "staging"}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if fields := validation.Fields(); len(fields) != 1 || fields[0] != "Auth.JWTSecret" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{"API_PSP_STRIPE_API_KEY": "secret://missing"}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{"API_PSP_STRIPE_WEBHOOK_SECRET": "sm://stripe/webhook"}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://stripe/webhook" {
			return "legacy-secret", nil
		}
		return "", errors.New("not found")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PSP.StripeWebhookSecret != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.PSP.StripeWebhookSecret)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_REDIS_ADDR", "redis:6379")

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(map[string]string{"API_FIREBASE_PROJECT_ID": "override-project"}))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}
	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_REDIS_ADDR"]; got != "redis:6379" {
		t.Fatalf("expected system env value, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""),
		WithRequiredSecrets("PSP.StripeAPIKey", "PSP.StripeAPIKey"),
	)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "PSP.StripeAPIKey" {
		t.Fatalf("unexpected missing names %v", names)
	}
	if redacted := missing.RedactedNames(); len(redacted) != 1 || redacted[0] == "PSP.StripeAPIKey" {
		t.Fatalf("expected redacted name, got %v", redacted)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	defer func() {
		rec := recover()
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "Mail.MailerSendAPIKey" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	_, _ = Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""),
		WithRequiredSecrets("Mail.MailerSendAPIKey"),
		WithPanicOnMissingSecrets(),
	)
}
