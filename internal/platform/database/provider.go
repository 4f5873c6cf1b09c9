package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/upfront-market/api/internal/platform/config"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSlowThreshold = 200 * time.Millisecond
)

// ErrProviderClosed is returned once Close has been called.
var ErrProviderClosed = errors.New("database: provider is closed")

// Provider owns the shared gorm handle and hands out context-bound sessions.
type Provider struct {
	db     *gorm.DB
	closed atomic.Bool
}

// ProviderOption customises Open.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	logWriter gormlogger.Writer
	logLevel  gormlogger.LogLevel
	now       func() time.Time
}

// WithLogWriter routes slow query and error logs to w, typically a zap Printf adapter.
func WithLogWriter(w gormlogger.Writer, level gormlogger.LogLevel) ProviderOption {
	return func(o *providerOptions) {
		o.logWriter = w
		if level > 0 {
			o.logLevel = level
		}
	}
}

// WithNowFunc overrides the timestamp source used for autoCreateTime/autoUpdateTime columns.
func WithNowFunc(now func() time.Time) ProviderOption {
	return func(o *providerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig, opts ...ProviderOption) (*Provider, error) {
	options := providerOptions{
		logLevel: gormlogger.Warn,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	dialector, err := dialectorFor(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	logger := gormlogger.Default.LogMode(gormlogger.Silent)
	if options.logWriter != nil {
		logger = gormlogger.New(options.logWriter, gormlogger.Config{
			SlowThreshold:             defaultSlowThreshold,
			LogLevel:                  options.logLevel,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		})
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger,
		NowFunc:        options.now,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: obtain pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	provider := &Provider{db: db}
	if err := provider.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	return provider, nil
}

// NewProvider wraps an existing gorm handle.
func NewProvider(db *gorm.DB) *Provider {
	return &Provider{db: db}
}

// DB returns a session bound to ctx, joining the transaction stored in ctx when present.
func (p *Provider) DB(ctx context.Context) *gorm.DB {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return p.db.WithContext(ctx)
}

// Ping verifies connectivity.
func (p *Provider) Ping(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errors.New("database: provider not initialised")
	}
	if p.closed.Load() {
		return ErrProviderClosed
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate creates or updates the tables backing the given models.
func (p *Provider) AutoMigrate(ctx context.Context, models ...any) error {
	if err := p.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}

// Close releases the connection pool. The provider cannot be reused afterwards.
func (p *Provider) Close(context.Context) error {
	if p == nil || p.db == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RunInTx executes fn inside a transaction on the provider's handle.
func (p *Provider) RunInTx(ctx context.Context, fn func(ctx context.Context) error, opts ...TxOption) error {
	if p == nil || p.db == nil {
		return WrapError("transaction", errors.New("database: provider not initialised"))
	}
	if p.closed.Load() {
		return ErrProviderClosed
	}
	return RunTransaction(ctx, p.db, fn, opts...)
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	dsn = strings.TrimSpace(dsn)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMySQL:
		if dsn == "" {
			return nil, errors.New("database: mysql dsn is required")
		}
		return mysql.Open(dsn), nil
	case DriverPostgres, "postgresql":
		if dsn == "" {
			return nil, errors.New("database: postgres dsn is required")
		}
		return postgres.Open(dsn), nil
	case DriverSQLite, "":
		if dsn == "" {
			dsn = "file:upfront.db?_foreign_keys=on"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}
}
