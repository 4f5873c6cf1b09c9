package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/upfront-market/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination          = domain.Pagination
	Product             = domain.Product
	ProductStatus       = domain.ProductStatus
	Category            = domain.Category
	Vendor              = domain.Vendor
	User                = domain.User
	CartItem            = domain.CartItem
	CartTotals          = domain.CartTotals
	LineAmounts         = domain.LineAmounts
	Order               = domain.Order
	OrderItem           = domain.OrderItem
	OrderContact        = domain.OrderContact
	PaymentMethod       = domain.PaymentMethod
	PaymentStatus       = domain.PaymentStatus
	Coupon              = domain.Coupon
	Tax                 = domain.Tax
	SiteSettings        = domain.SiteSettings
	Notification        = domain.Notification
	NotificationTarget  = domain.NotificationTarget
	NotificationSummary = domain.NotificationSummary
	Review              = domain.Review
	VendorStats         = domain.VendorStats
	MonthlyCount        = domain.MonthlyCount
	VendorEarnings      = domain.VendorEarnings
	MonthlyEarning      = domain.MonthlyEarning
	SystemHealthReport  = domain.SystemHealthReport
)

// ResultStatus tags checkout, coupon and payment outcomes for the storefront.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultWarning ResultStatus = "warning"
	ResultError   ResultStatus = "error"
	ResultInfo    ResultStatus = "info"
)

// PricingEngine computes the monetary breakdown of a single cart line.
type PricingEngine interface {
	Price(ctx context.Context, input LineInput) (LineAmounts, error)
}

// SettingsService reads and updates marketplace settings and tax rates.
type SettingsService interface {
	Get(ctx context.Context) (SiteSettings, error)
	Update(ctx context.Context, cmd UpdateSettingsCommand) (SiteSettings, error)
	TaxRate(ctx context.Context, country string) (decimal.Decimal, error)
	ListTaxes(ctx context.Context) ([]Tax, error)
	UpsertTax(ctx context.Context, cmd UpsertTaxCommand) (Tax, error)
}

// CartService manages guest and member cart lines.
type CartService interface {
	UpsertLine(ctx context.Context, cmd UpsertCartLineCommand) (CartLineResult, error)
	ListLines(ctx context.Context, cartID string, userID string) ([]CartItem, error)
	Totals(ctx context.Context, cartID string, userID string) (CartTotals, error)
	DeleteLine(ctx context.Context, cartID string, itemID string, userID string) error
	Clear(ctx context.Context, cartID string) (int64, error)
}

// OrderService turns carts into order snapshots and serves buyer order reads.
type OrderService interface {
	CreateFromCart(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetByOID(ctx context.Context, oid string) (Order, error)
	ListForBuyer(ctx context.Context, userID string) ([]Order, error)
	GetForBuyer(ctx context.Context, userID string, oid string) (Order, error)
}

// CouponService applies vendor coupons to orders and manages vendor coupon catalogues.
type CouponService interface {
	Apply(ctx context.Context, cmd ApplyCouponCommand) (CouponResult, error)
	ListVendorCoupons(ctx context.Context, vendorID string) ([]Coupon, error)
	CreateVendorCoupon(ctx context.Context, cmd CreateCouponCommand) (Coupon, error)
	GetVendorCoupon(ctx context.Context, vendorID string, couponID string) (Coupon, error)
	UpdateVendorCoupon(ctx context.Context, cmd UpdateCouponCommand) (Coupon, error)
	DeleteVendorCoupon(ctx context.Context, vendorID string, couponID string) error
	VendorCouponStats(ctx context.Context, vendorID string) (CouponStats, error)
}

// PaymentService starts hosted checkouts and confirms payments at most once per order.
type PaymentService interface {
	StartCardCheckout(ctx context.Context, oid string) (CardCheckout, error)
	Confirm(ctx context.Context, cmd ConfirmPaymentCommand) (PaymentResult, error)
	ConfirmCard(ctx context.Context, oid string, sessionID string) (PaymentResult, error)
	ConfirmPayPal(ctx context.Context, oid string, paypalOrderID string) (PaymentResult, error)
	ConfirmMidtrans(ctx context.Context, oid string, midtransOrderID string) (PaymentResult, error)
	ConfirmCOD(ctx context.Context, oid string) (PaymentResult, error)
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (PaymentResult, error)
}

// NotificationService fans out order notifications and serves the notification inbox.
type NotificationService interface {
	NotifyOrderCreated(ctx context.Context, order Order)
	NotifyOrderPaid(ctx context.Context, order Order)
	List(ctx context.Context, target NotificationTarget, seen *bool) ([]Notification, error)
	Summary(ctx context.Context, target NotificationTarget) (NotificationSummary, error)
	MarkSeen(ctx context.Context, target NotificationTarget, notificationID string) (Notification, error)
}

// VendorService serves the vendor dashboard.
type VendorService interface {
	ResolveVendor(ctx context.Context, userID string, vendorID string) (Vendor, error)
	Stats(ctx context.Context, vendorID string) (VendorStats, error)
	OrderChart(ctx context.Context, vendorID string) ([]MonthlyCount, error)
	ProductChart(ctx context.Context, vendorID string) ([]MonthlyCount, error)
	Products(ctx context.Context, vendorID string, status *ProductStatus) ([]Product, error)
	Orders(ctx context.Context, vendorID string) ([]Order, error)
	Order(ctx context.Context, vendorID string, oid string) (Order, error)
	Earnings(ctx context.Context, vendorID string) (VendorEarnings, error)
	MonthlyEarnings(ctx context.Context, vendorID string) ([]MonthlyEarning, error)
	UpdateShop(ctx context.Context, cmd UpdateShopCommand) (Vendor, error)
}

// ReviewService collects buyer reviews and lets vendors reply to and publish reviews of their
// products.
type ReviewService interface {
	ListForProduct(ctx context.Context, productID string) ([]Review, error)
	Create(ctx context.Context, cmd CreateReviewCommand) (Review, error)
	ListForVendor(ctx context.Context, vendorID string) ([]Review, error)
	GetForVendor(ctx context.Context, vendorID string, reviewID string) (Review, error)
	UpdateForVendor(ctx context.Context, cmd UpdateReviewCommand) (Review, error)
}

// CatalogService serves public catalog reads and operator catalog writes.
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.Page[Product], error)
	GetProduct(ctx context.Context, slug string) (Product, error)
	GetShop(ctx context.Context, slug string) (Vendor, error)
	ListShopProducts(ctx context.Context, slug string, pager Pagination) (domain.Page[Product], error)
	ListCategories(ctx context.Context) ([]Category, error)
	SaveProduct(ctx context.Context, product Product) (Product, error)
	SaveCategory(ctx context.Context, category Category) (Category, error)
}

// SystemService exposes operational metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderEventPublisher emits order lifecycle events to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}

// SettlementRecorder counts payment confirmation outcomes.
type SettlementRecorder interface {
	RecordSettlement(provider, outcome string)
}

// EmailRecorder counts notification email attempts.
type EmailRecorder interface {
	RecordEmail(audience, outcome string)
}

// Commands & DTOs ---------------------------------------------------------------

// LineInput describes a cart line to price. Product may be supplied to skip the lookup.
type LineInput struct {
	ProductID   string
	Product     *Product
	Size        string
	ClientPrice decimal.Decimal
	Qty         int
	// ShippingPerUnit defaults to the product shipping amount when nil.
	ShippingPerUnit *decimal.Decimal
	Country         string
}

// UpdateSettingsCommand changes the provided settings fields.
type UpdateSettingsCommand struct {
	ServiceFeePercent *decimal.Decimal
	CurrencyCode      *string
	CurrencySymbol    *string
}

// UpsertTaxCommand sets the tax rate of a country.
type UpsertTaxCommand struct {
	Country string
	Rate    decimal.Decimal
	Active  bool
}

// UpsertCartLineCommand mirrors the cart payload.
type UpsertCartLineCommand struct {
	CartID         string
	ProductID      string
	UserID         string
	Qty            int
	Price          decimal.Decimal
	ShippingAmount *decimal.Decimal
	Country        string
	Size           string
	Color          string
}

// CartLineOutcome reports what an upsert did.
type CartLineOutcome string

const (
	CartLineCreated CartLineOutcome = "created"
	CartLineUpdated CartLineOutcome = "updated"
	CartLineRemoved CartLineOutcome = "removed"
)

// CartLineResult is the outcome of UpsertLine. Item is empty for removals.
type CartLineResult struct {
	Outcome CartLineOutcome
	Item    CartItem
}

// CreateOrderCommand carries the checkout form.
type CreateOrderCommand struct {
	CartID        string
	UserID        string
	FullName      string
	Email         string
	Mobile        string
	Address       string
	City          string
	State         string
	Country       string
	PaymentMethod PaymentMethod
}

// ApplyCouponCommand applies a coupon code to an order.
type ApplyCouponCommand struct {
	OrderOID string
	Code     string
}

// CouponResult is the storefront facing outcome of a coupon application.
type CouponResult struct {
	Status          ResultStatus
	Message         string
	DiscountedItems int
	Order           *Order
}

// CreateCouponCommand creates a vendor coupon.
type CreateCouponCommand struct {
	VendorID string
	Code     string
	Discount int
	Active   bool
}

// UpdateCouponCommand changes the provided coupon fields.
type UpdateCouponCommand struct {
	VendorID string
	CouponID string
	Discount *int
	Active   *bool
}

// UpdateShopCommand changes the provided fields of the caller's shop. The slug never changes.
type UpdateShopCommand struct {
	VendorID    string
	Name        *string
	Email       *string
	Mobile      *string
	Image       *string
	Description *string
}

// CreateReviewCommand is a buyer's review of a published product.
type CreateReviewCommand struct {
	ProductID string
	UserID    string
	Rating    int
	Comment   string
}

// UpdateReviewCommand sets the vendor reply or visibility of a review.
type UpdateReviewCommand struct {
	VendorID string
	ReviewID string
	Reply    *string
	Active   *bool
}

// CouponStats counts a vendor's coupons.
type CouponStats struct {
	Total  int
	Active int
}

// CardCheckout is the hosted checkout created for an order.
type CardCheckout struct {
	SessionID   string
	RedirectURL string
	ExpiresAt   time.Time
}

// ConfirmPaymentCommand is the unified confirmation payload. At most one reference may be set.
type ConfirmPaymentCommand struct {
	OrderOID        string
	SessionID       string
	PayPalOrderID   string
	MidtransOrderID string
}

// PaymentResult is the storefront facing outcome of a confirmation. Rejected marks outcomes
// reported with a client error status.
type PaymentResult struct {
	Status   ResultStatus
	Message  string
	Rejected bool
	Order    *Order
}

// ProductListFilter narrows public product listings.
type ProductListFilter struct {
	CategoryID string
	VendorID   string
	Featured   *bool
	Pagination Pagination
}

// OrderEvent is published when an order is created or paid.
type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"orderId"`
	OID           string    `json:"oid"`
	PaymentMethod string    `json:"paymentMethod"`
	PaymentStatus string    `json:"paymentStatus"`
	OrderStatus   string    `json:"orderStatus"`
	Total         string    `json:"total"`
	VendorIDs     []string  `json:"vendorIds"`
	OccurredAt    time.Time `json:"occurredAt"`
}

const (
	OrderEventCreated = "order.created"
	OrderEventPaid    = "order.paid"
)
