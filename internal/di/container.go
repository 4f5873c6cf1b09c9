package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upfront-market/api/internal/media"
	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/platform/config"
	"github.com/upfront-market/api/internal/platform/idempotency"
	"github.com/upfront-market/api/internal/platform/observability"
	"github.com/upfront-market/api/internal/repositories"
	"github.com/upfront-market/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Pricing       services.PricingEngine
	Settings      services.SettingsService
	Catalog       services.CatalogService
	Cart          services.CartService
	Orders        services.OrderService
	Coupons       services.CouponService
	Payments      services.PaymentService
	Notifications services.NotificationService
	Vendors       services.VendorService
	Reviews       services.ReviewService
	System        services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config        config.Config
	Repositories  repositories.Registry
	Services      Services
	Authenticator *auth.Authenticator
	Metrics       *observability.Metrics
	Media         *media.Chain
	Idempotency   idempotency.Store
	Tasks         *services.AsyncRunner

	closers []func(ctx context.Context) error
}

// Option customises container construction.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	build    services.BuildInfo
	redis    redis.UniversalClient
	verifier auth.TokenVerifier
	clock    func() time.Time
}

// WithLogger routes service events to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBuildInfo sets the metadata reported by the health endpoints.
func WithBuildInfo(info services.BuildInfo) Option {
	return func(o *options) {
		o.build = info
	}
}

// WithRedisClient supplies an existing redis client instead of dialing cfg.Redis.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		o.redis = client
	}
}

// WithTokenVerifier overrides the verifier selected by cfg.Auth.Mode.
func WithTokenVerifier(verifier auth.TokenVerifier) Option {
	return func(o *options) {
		o.verifier = verifier
	}
}

// WithClock injects the clock shared by every service.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies on top of reg. External clients (mail, payment
// gateways, media backends, Pub/Sub) are only built when their configuration is present.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	o := options{
		logger: zap.NewNop(),
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	c := &Container{
		Config:       cfg,
		Repositories: reg,
		Metrics:      observability.NewMetrics(),
	}
	logEvent := observability.EventLogger(o.logger)
	c.Tasks = services.NewAsyncRunner(logEvent)

	if o.redis == nil && cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		o.redis = client
		c.closers = append(c.closers, func(context.Context) error { return client.Close() })
	}

	if err := c.buildInfrastructure(ctx, cfg, o); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	infra, err := c.buildExternal(ctx, cfg, o)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	svc, err := buildServices(reg, cfg, o, c, infra)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	c.Services = svc
	return c, nil
}

// Close drains background tasks, then releases clients and the repository registry.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Tasks != nil {
		if err := c.Tasks.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain background tasks: %w", err))
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Container) buildInfrastructure(ctx context.Context, cfg config.Config, o options) error {
	if o.redis != nil {
		store, err := idempotency.NewRedisStore(o.redis)
		if err != nil {
			return fmt.Errorf("build idempotency store: %w", err)
		}
		c.Idempotency = store
	} else {
		c.Idempotency = idempotency.NewMemoryStore()
	}

	verifier := o.verifier
	if verifier == nil {
		var err error
		verifier, err = newTokenVerifier(ctx, cfg, o.clock)
		if err != nil {
			return err
		}
	}
	c.Authenticator = auth.NewAuthenticator(verifier)
	return nil
}

func newTokenVerifier(ctx context.Context, cfg config.Config, clock func() time.Time) (auth.TokenVerifier, error) {
	switch cfg.Auth.Mode {
	case "firebase":
		var opts []auth.FirebaseOption
		if cfg.Firebase.CheckRevoked {
			opts = append(opts, auth.WithRevocationCheck())
		}
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase, opts...)
		if err != nil {
			return nil, fmt.Errorf("build firebase verifier: %w", err)
		}
		return verifier, nil
	default:
		verifier, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret,
			auth.WithJWTIssuer(cfg.Auth.JWTIssuer),
			auth.WithJWTClock(clock),
		)
		if err != nil {
			return nil, fmt.Errorf("build jwt verifier: %w", err)
		}
		return verifier, nil
	}
}

func buildServices(reg repositories.Registry, cfg config.Config, o options, c *Container, infra external) (Services, error) {
	var svc Services
	logEvent := observability.EventLogger(o.logger)

	settingsSvc, err := services.NewSettingsService(services.SettingsServiceDeps{
		Settings: reg.Settings(),
		Taxes:    reg.Taxes(),
		Cache:    o.redis,
		CacheTTL: cfg.Redis.SettingsCacheTTL,
		Clock:    o.clock,
		Logger:   logEvent,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build settings service: %w", err)
	}
	svc.Settings = settingsSvc

	pricing, err := services.NewPricingEngine(services.PricingEngineDeps{
		Products: reg.Products(),
		Settings: settingsSvc,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}
	svc.Pricing = pricing

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: reg.Products(),
		Vendors:  reg.Vendors(),
		Clock:    o.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:      reg.Carts(),
		Products:   reg.Products(),
		Pricer:     pricing,
		UnitOfWork: reg,
		Clock:      o.clock,
		Logger:     logEvent,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	notificationSvc, err := services.NewNotificationService(services.NotificationServiceDeps{
		Notifications:     reg.Notifications(),
		Users:             reg.Users(),
		Vendors:           reg.Vendors(),
		Mailer:            infra.mailer,
		Renderer:          infra.renderer,
		Settings:          settingsSvc,
		From:              infra.from,
		OperationsAddress: cfg.Mail.OperationsAddress,
		EmailTimeout:      cfg.Mail.Timeout,
		Metrics:           c.Metrics,
		Clock:             o.clock,
		Logger:            logEvent,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build notification service: %w", err)
	}
	svc.Notifications = notificationSvc

	orderDeps := services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Carts:      reg.Carts(),
		Products:   reg.Products(),
		Users:      reg.Users(),
		UnitOfWork: reg,
		Notifier:   notificationSvc,
		Tasks:      c.Tasks,
		Clock:      o.clock,
		Logger:     logEvent,
	}
	if infra.events != nil {
		orderDeps.Events = infra.events
	}
	orderSvc, err := services.NewOrderService(orderDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	couponSvc, err := services.NewCouponService(services.CouponServiceDeps{
		Coupons:    reg.Coupons(),
		Orders:     reg.Orders(),
		UnitOfWork: reg,
		Clock:      o.clock,
		Logger:     logEvent,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon service: %w", err)
	}
	svc.Coupons = couponSvc

	paymentDeps := services.PaymentServiceDeps{
		Orders:          reg.Orders(),
		Carts:           reg.Carts(),
		UnitOfWork:      reg,
		Gateway:         infra.gateway,
		Notifier:        notificationSvc,
		Tasks:           c.Tasks,
		Metrics:         c.Metrics,
		Settings:        settingsSvc,
		PublicBaseURL:   cfg.Server.PublicBaseURL,
		DefaultCurrency: cfg.PSP.DefaultCurrency,
		Clock:           o.clock,
		Logger:          logEvent,
	}
	if infra.webhooks != nil {
		paymentDeps.Webhooks = infra.webhooks
	}
	if infra.events != nil {
		paymentDeps.Events = infra.events
	}
	paymentSvc, err := services.NewPaymentService(paymentDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}
	svc.Payments = paymentSvc

	vendorSvc, err := services.NewVendorService(services.VendorServiceDeps{
		Vendors:    reg.Vendors(),
		Products:   reg.Products(),
		Orders:     reg.Orders(),
		Dashboards: reg.Dashboards(),
		Clock:      o.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build vendor service: %w", err)
	}
	svc.Vendors = vendorSvc

	reviewSvc, err := services.NewReviewService(services.ReviewServiceDeps{
		Reviews:  reg.Reviews(),
		Products: reg.Products(),
		Clock:    o.clock,
		Logger:   logEvent,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build review service: %w", err)
	}
	svc.Reviews = reviewSvc

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Integrations:     integrations(cfg, c, infra),
		Clock:            o.clock,
		Build:            o.build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}
