package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	gormlogger "gorm.io/gorm/logger"

	"github.com/upfront-market/api/internal/di"
	"github.com/upfront-market/api/internal/handlers"
	"github.com/upfront-market/api/internal/platform/config"
	"github.com/upfront-market/api/internal/platform/database"
	"github.com/upfront-market/api/internal/platform/idempotency"
	"github.com/upfront-market/api/internal/platform/observability"
	"github.com/upfront-market/api/internal/platform/requestctx"
	"github.com/upfront-market/api/internal/platform/secrets"
	"github.com/upfront-market/api/internal/repositories/sqlstore"
	"github.com/upfront-market/api/internal/services"
)

const (
	couponRateLimit       = 10
	confirmationRateLimit = 30
	rateLimitWindow       = time.Minute
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = requestctx.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	provider, err := database.Open(ctx, cfg.Database,
		database.WithLogWriter(observability.NewPrintfAdapter(logger.Named("gorm")), gormlogger.Warn),
	)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err), zap.String("driver", cfg.Database.Driver))
	}

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	regOpts := []sqlstore.RegistryOption{
		sqlstore.WithTransactionOptions(database.WithTxAttempts(3)),
	}
	if redisClient != nil {
		regOpts = append(regOpts, sqlstore.WithRedisHealthCheck(redisClient))
	}
	registry, err := sqlstore.NewRegistry(provider, regOpts...)
	if err != nil {
		logger.Fatal("failed to build repositories", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := registry.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	containerOpts := []di.Option{
		di.WithLogger(logger.Named("services")),
		di.WithBuildInfo(buildInfo),
	}
	if redisClient != nil {
		containerOpts = append(containerOpts, di.WithRedisClient(redisClient))
	}
	container, err := di.NewContainer(ctx, cfg, registry, containerOpts...)
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	svc := container.Services
	authenticator := container.Authenticator

	idempotencyMiddleware := idempotency.Middleware(
		container.Idempotency,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupCtx.Done():
					return
				case <-cleanupTicker.C:
					removed, err := container.Idempotency.CleanupExpired(cleanupCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					if err != nil {
						cleanupLogger.Warn("idempotency cleanup failed", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Debug("idempotency cleanup", zap.Int("removed", removed))
					}
				}
			}
		}()
	}

	catalogHandlers := handlers.NewCatalogHandlers(svc.Catalog)
	cartHandlers := handlers.NewCartHandlers(authenticator, svc.Cart)
	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders,
		handlers.WithCouponService(svc.Coupons),
		handlers.WithCouponRateLimit(handlers.RateLimit(couponRateLimit, rateLimitWindow)),
	)
	paymentHandlers := handlers.NewPaymentHandlers(authenticator, svc.Payments,
		handlers.WithConfirmationRateLimit(handlers.RateLimit(confirmationRateLimit, rateLimitWindow)),
	)
	meHandlers := handlers.NewMeHandlers(authenticator, svc.Orders, svc.Notifications)
	reviewHandlers := handlers.NewReviewHandlers(authenticator, svc.Reviews)
	vendorHandlers := handlers.NewVendorHandlers(authenticator, svc.Vendors, svc.Coupons, svc.Notifications,
		handlers.WithVendorReviews(svc.Reviews),
	)
	adminHandlers := handlers.NewAdminHandlers(authenticator, svc.Settings)

	mediaOpts := []handlers.MediaHandlerOption{
		handlers.WithMaxRedirects(cfg.Media.MaxRedirects),
		handlers.WithCacheMaxAge(cfg.Media.CacheMaxAge),
	}
	if cfg.Media.RedirectToCDN {
		if cdnURL := container.CDNURL(); cdnURL != nil {
			mediaOpts = append(mediaOpts, handlers.WithCDNRedirect(cdnURL))
		}
	}
	mediaHandler := handlers.NewMediaHandler(container.Media, mediaOpts...)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
		container.Metrics.Middleware(),
		idempotencyMiddleware,
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	var opts []handlers.Option
	opts = append(opts, handlers.WithMiddlewares(middlewares...))
	opts = append(opts, handlers.WithHealthHandlers(healthHandlers))
	opts = append(opts, handlers.WithMetricsHandler(container.Metrics.Handler()))
	opts = append(opts, handlers.WithMediaHandler(mediaHandler))
	opts = append(opts, handlers.WithPublicRoutes(catalogHandlers.Routes))
	opts = append(opts, handlers.WithStorefrontRoutes(func(r chi.Router) {
		cartHandlers.Routes(r)
		orderHandlers.Routes(r)
		paymentHandlers.Routes(r)
		reviewHandlers.Routes(r)
	}))
	opts = append(opts, handlers.WithMeRoutes(meHandlers.Routes))
	opts = append(opts, handlers.WithVendorRoutes(vendorHandlers.Routes))
	opts = append(opts, handlers.WithAdminRoutes(adminHandlers.Routes))
	opts = append(opts, handlers.WithWebhookRoutes(paymentHandlers.WebhookRoutes))

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("upfront api listening", zap.String("database", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.PubSub.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("API_SECRETS_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the secrets whose provider is switched on by a non-secret setting.
func requiredSecretNames(env map[string]string) []string {
	lookup := func(key string) string { return strings.TrimSpace(env[key]) }

	var required []string
	if !strings.EqualFold(lookup("API_AUTH_MODE"), "firebase") {
		required = append(required, "Auth.JWTSecret")
	}
	if lookup("API_PSP_STRIPE_API_KEY") != "" {
		required = append(required, "PSP.StripeWebhookSecret")
	}
	if lookup("API_PSP_PAYPAL_CLIENT_ID") != "" {
		required = append(required, "PSP.PayPalSecret")
	}
	if lookup("API_MAIL_SMTP_USERNAME") != "" {
		required = append(required, "Mail.SMTPPassword")
	}
	if lookup("API_MEDIA_S3_ACCESS_KEY") != "" {
		required = append(required, "Media.S3SecretKey")
	}
	return required
}
