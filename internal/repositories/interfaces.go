package repositories

import (
	"context"
	"time"

	domain "github.com/upfront-market/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Vendors() VendorRepository
	Users() UserRepository
	Carts() CartRepository
	Orders() OrderRepository
	Coupons() CouponRepository
	Notifications() NotificationRepository
	Reviews() ReviewRepository
	Taxes() TaxRepository
	Settings() SettingsRepository
	Dashboards() DashboardRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository calls in one database transaction. Repositories invoked with the
// context passed to fn join the transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository reads and writes catalog products with their child records.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindPublishedBySlug(ctx context.Context, slug string) (domain.Product, error)
	ListPublished(ctx context.Context, filter ProductFilter) (domain.Page[domain.Product], error)
	ListByVendor(ctx context.Context, vendorID string, status *domain.ProductStatus) ([]domain.Product, error)
	// Save inserts or updates the product. Sizes, colours, specifications and gallery are replaced wholesale.
	Save(ctx context.Context, product domain.Product) (domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	SaveCategory(ctx context.Context, category domain.Category) (domain.Category, error)
}

// VendorRepository reads and updates vendor shops.
type VendorRepository interface {
	FindByID(ctx context.Context, vendorID string) (domain.Vendor, error)
	FindBySlug(ctx context.Context, slug string) (domain.Vendor, error)
	FindByUserID(ctx context.Context, userID string) (domain.Vendor, error)
	ListByIDs(ctx context.Context, vendorIDs []string) ([]domain.Vendor, error)
	Save(ctx context.Context, vendor domain.Vendor) (domain.Vendor, error)
}

// UserRepository reads marketplace accounts.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
	ListAdmins(ctx context.Context) ([]domain.User, error)
	Save(ctx context.Context, user domain.User) (domain.User, error)
}

// CartRepository stores cart lines keyed by (cart_id, product).
type CartRepository interface {
	FindLine(ctx context.Context, cartID, productID string) (domain.CartItem, error)
	SaveLine(ctx context.Context, item domain.CartItem) (domain.CartItem, error)
	// DeleteLine removes one line of the cart, optionally scoped to the owning user.
	DeleteLine(ctx context.Context, cartID, itemID string, userID *string) error
	ListLines(ctx context.Context, cartID string, userID *string) ([]domain.CartItem, error)
	DeleteCart(ctx context.Context, cartID string) (int64, error)
}

// OrderRepository persists orders, their item snapshots and coupon associations.
type OrderRepository interface {
	// Insert stores the order and its items. A duplicate OID yields a conflict error.
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByOID(ctx context.Context, oid string) (domain.Order, error)
	FindByStripeSession(ctx context.Context, sessionID string) (domain.Order, error)
	// FindByPayPalOrder returns the order a PayPal order id is stored on.
	FindByPayPalOrder(ctx context.Context, paypalOrderID string) (domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string, status *domain.PaymentStatus) ([]domain.Order, error)
	// ListForVendor returns orders containing the vendor's items. Items of other vendors are omitted.
	ListForVendor(ctx context.Context, vendorID string, filter VendorOrderFilter) ([]domain.Order, error)
	// UpdateAmounts writes the order totals and bumps the version when it still equals expectedVersion.
	UpdateAmounts(ctx context.Context, order domain.Order, expectedVersion int64) (domain.Order, error)
	UpdateItemAmounts(ctx context.Context, item domain.OrderItem) error
	AttachCoupon(ctx context.Context, itemID, couponID string) error
	SetReferences(ctx context.Context, orderID string, refs domain.PaymentReferences) error
	// Settle transitions a pending order. It fails with a conflict error when another writer changed
	// the order since expectedVersion was read or the order is no longer pending.
	Settle(ctx context.Context, cmd SettleCommand) (domain.Order, error)
}

// CouponRepository stores vendor coupons.
type CouponRepository interface {
	FindActiveByCode(ctx context.Context, code string) (domain.Coupon, error)
	FindByID(ctx context.Context, vendorID, couponID string) (domain.Coupon, error)
	ListByVendor(ctx context.Context, vendorID string) ([]domain.Coupon, error)
	Insert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error)
	Update(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error)
	Delete(ctx context.Context, vendorID, couponID string) error
}

// NotificationRepository stores in-app notifications addressed to users or vendors.
type NotificationRepository interface {
	InsertMany(ctx context.Context, notifications []domain.Notification) error
	List(ctx context.Context, target domain.NotificationTarget, seen *bool) ([]domain.Notification, error)
	Summary(ctx context.Context, target domain.NotificationTarget) (domain.NotificationSummary, error)
	MarkSeen(ctx context.Context, target domain.NotificationTarget, notificationID string) (domain.Notification, error)
}

// ReviewRepository stores product reviews. Vendor scoped reads go through the reviewed product.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) (domain.Review, error)
	ListByProduct(ctx context.Context, productID string, activeOnly bool) ([]domain.Review, error)
	ListForVendor(ctx context.Context, vendorID string) ([]domain.Review, error)
	FindForVendor(ctx context.Context, vendorID, reviewID string) (domain.Review, error)
	// UpdateModeration writes the reply and visibility of a review of one of review.VendorID's products.
	UpdateModeration(ctx context.Context, review domain.Review) (domain.Review, error)
}

// TaxRepository stores per-country tax rates.
type TaxRepository interface {
	FindByCountry(ctx context.Context, country string) (domain.Tax, error)
	List(ctx context.Context) ([]domain.Tax, error)
	Upsert(ctx context.Context, tax domain.Tax) (domain.Tax, error)
}

// SettingsRepository stores the site settings singleton under domain.SiteSettingsKey.
type SettingsRepository interface {
	Get(ctx context.Context) (domain.SiteSettings, error)
	Save(ctx context.Context, settings domain.SiteSettings) (domain.SiteSettings, error)
}

// DashboardRepository aggregates vendor sales over paid orders.
type DashboardRepository interface {
	VendorStats(ctx context.Context, vendorID string) (domain.VendorStats, error)
	MonthlyOrderCounts(ctx context.Context, vendorID string) ([]domain.MonthlyCount, error)
	MonthlyProductCounts(ctx context.Context, vendorID string) ([]domain.MonthlyCount, error)
	// Earnings sums paid revenue since monthStart and over all time.
	Earnings(ctx context.Context, vendorID string, monthStart time.Time) (domain.VendorEarnings, error)
	MonthlyEarnings(ctx context.Context, vendorID string) ([]domain.MonthlyEarning, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// ProductFilter narrows public catalog listings.
type ProductFilter struct {
	CategoryID string
	VendorID   string
	Featured   *bool
	Pagination domain.Pagination
}

// VendorOrderFilter narrows vendor order listings.
type VendorOrderFilter struct {
	PaymentStatuses []domain.PaymentStatus
	Since           *time.Time
}

// SettleCommand describes a settlement transition guarded by the order version.
type SettleCommand struct {
	OrderID         string
	ExpectedVersion int64
	PaymentStatus   domain.PaymentStatus
	OrderStatus     domain.OrderStatus
	References      domain.PaymentReferences
	SettledAt       time.Time
}
