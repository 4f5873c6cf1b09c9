package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/upfront-market/api/internal/platform/database"
	"github.com/upfront-market/api/internal/repositories"
)

// RegistryOption customises the SQL registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	redis       redis.UniversalClient
	healthClock func() time.Time
	txOptions   []database.TxOption
}

// WithRedisHealthCheck adds an optional redis check to the readiness report.
func WithRedisHealthCheck(client redis.UniversalClient) RegistryOption {
	return func(o *registryOptions) {
		o.redis = client
	}
}

// WithHealthClock injects the clock used by the readiness report.
func WithHealthClock(clock func() time.Time) RegistryOption {
	return func(o *registryOptions) {
		if clock != nil {
			o.healthClock = clock
		}
	}
}

// WithTransactionOptions applies the given options to every RunInTx call.
func WithTransactionOptions(opts ...database.TxOption) RegistryOption {
	return func(o *registryOptions) {
		o.txOptions = append(o.txOptions, opts...)
	}
}

// Registry implements repositories.Registry over a single database provider.
type Registry struct {
	provider      *database.Provider
	txOptions     []database.TxOption
	products      *ProductRepository
	vendors       *VendorRepository
	users         *UserRepository
	carts         *CartRepository
	orders        *OrderRepository
	coupons       *CouponRepository
	notifications *NotificationRepository
	reviews       *ReviewRepository
	taxes         *TaxRepository
	settings      *SettingsRepository
	dashboards    *DashboardRepository
	health        repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every SQL repository on top of provider.
func NewRegistry(provider *database.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("sqlstore: database provider is required")
	}
	options := registryOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	reg := &Registry{provider: provider, txOptions: options.txOptions}
	reg.products, _ = NewProductRepository(provider)
	reg.vendors, _ = NewVendorRepository(provider)
	reg.users, _ = NewUserRepository(provider)
	reg.carts, _ = NewCartRepository(provider)
	reg.orders, _ = NewOrderRepository(provider)
	reg.coupons, _ = NewCouponRepository(provider)
	reg.notifications, _ = NewNotificationRepository(provider)
	reg.reviews, _ = NewReviewRepository(provider)
	reg.taxes, _ = NewTaxRepository(provider)
	reg.settings, _ = NewSettingsRepository(provider)
	reg.dashboards, _ = NewDashboardRepository(provider)

	checks := []repositories.DependencyCheck{
		{Name: "database", Check: provider.Ping},
	}
	if options.redis != nil {
		client := options.redis
		checks = append(checks, repositories.DependencyCheck{
			Name:     "redis",
			Optional: true,
			Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
		})
	}
	var healthOpts []repositories.DependencyHealthOption
	if options.healthClock != nil {
		healthOpts = append(healthOpts, repositories.WithDependencyClock(options.healthClock))
	}
	health, err := repositories.NewDependencyHealthRepository(checks, healthOpts...)
	if err != nil {
		return nil, err
	}
	reg.health = health
	return reg, nil
}

// Migrate creates or updates every table owned by the store.
func (r *Registry) Migrate(ctx context.Context) error {
	return r.provider.AutoMigrate(ctx, Models()...)
}

// RunInTx runs fn in one database transaction. Repositories called with the ctx passed to fn join it.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunInTx(ctx, fn, r.txOptions...)
}

// Close releases the database pool.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

func (r *Registry) Products() repositories.ProductRepository           { return r.products }
func (r *Registry) Vendors() repositories.VendorRepository             { return r.vendors }
func (r *Registry) Users() repositories.UserRepository                 { return r.users }
func (r *Registry) Carts() repositories.CartRepository                 { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository               { return r.orders }
func (r *Registry) Coupons() repositories.CouponRepository             { return r.coupons }
func (r *Registry) Notifications() repositories.NotificationRepository { return r.notifications }
func (r *Registry) Reviews() repositories.ReviewRepository             { return r.reviews }
func (r *Registry) Taxes() repositories.TaxRepository                  { return r.taxes }
func (r *Registry) Settings() repositories.SettingsRepository          { return r.settings }
func (r *Registry) Dashboards() repositories.DashboardRepository       { return r.dashboards }
func (r *Registry) Health() repositories.HealthRepository              { return r.health }
