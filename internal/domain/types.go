package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines page based paging inputs for list operations.
type Pagination struct {
	Page     int
	PageSize int
}

// Page wraps a slice of results with the totals needed to render pagination controls.
type Page[T any] struct {
	Items    []T
	Page     int
	PageSize int
	Total    int64
}

// ProductStatus enumerates the publication states of a product.
type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusInReview  ProductStatus = "in_review"
	ProductStatusPublished ProductStatus = "published"
	ProductStatusDisabled  ProductStatus = "disabled"
)

// Valid reports whether the status is one of the known product states.
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusDraft, ProductStatusInReview, ProductStatusPublished, ProductStatusDisabled:
		return true
	}
	return false
}

// Category groups products for browsing.
type Category struct {
	ID     string
	Title  string
	Slug   string
	Image  string
	Active bool
}

// Vendor is a shop owned by a user account.
type Vendor struct {
	ID          string
	UserID      string
	Name        string
	Email       string
	Slug        string
	Image       string
	Mobile      string
	Description string
	Active      bool
	CreatedAt   time.Time
}

// User is a marketplace account. Admins receive operational notifications.
type User struct {
	ID       string
	Email    string
	FullName string
	IsAdmin  bool
}

// ProductSize is a size variant with its own price.
type ProductSize struct {
	Name  string
	Price decimal.Decimal
}

// ProductColor is a colour option offered for a product.
type ProductColor struct {
	Name string
	Code string
}

// ProductSpecification is a free-form title/content pair shown on the product page.
type ProductSpecification struct {
	Title   string
	Content string
}

// Product is a sellable item owned by a vendor.
type Product struct {
	ID             string
	VendorID       string
	CategoryID     string
	Title          string
	Slug           string
	Description    string
	Image          string
	Price          decimal.Decimal
	RegularPrice   decimal.Decimal
	ShippingAmount decimal.Decimal
	Stock          int
	Status         ProductStatus
	Featured       bool
	Sizes          []ProductSize
	Colors         []ProductColor
	Specifications []ProductSpecification
	Gallery        []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SizePrice returns the price of the named size variant.
func (p Product) SizePrice(size string) (decimal.Decimal, bool) {
	for _, s := range p.Sizes {
		if equalFoldTrim(s.Name, size) {
			return s.Price, true
		}
	}
	return decimal.Zero, false
}

// CartItem is one product line held in a cart.
type CartItem struct {
	ID        string
	CartID    string
	UserID    *string
	ProductID string
	VendorID  string
	Qty       int
	Color     string
	Size      string
	Country   string
	Amounts   LineAmounts
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartTotals aggregates the monetary fields of all lines of a cart.
type CartTotals struct {
	CartID    string
	ItemCount int
	Amounts   LineAmounts
}

// PaymentMethod identifies how the buyer intends to pay for an order.
type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodPayPal   PaymentMethod = "paypal"
	PaymentMethodMidtrans PaymentMethod = "midtrans"
	PaymentMethodCOD      PaymentMethod = "cod"
)

// Valid reports whether the method is supported.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodPayPal, PaymentMethodMidtrans, PaymentMethodCOD:
		return true
	}
	return false
}

// PaymentStatus tracks settlement of an order.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// OrderStatus tracks fulfilment of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusFulfilled  OrderStatus = "fulfilled"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderContact holds the checkout contact and shipping address.
type OrderContact struct {
	FullName string
	Email    string
	Mobile   string
	Address  string
	City     string
	State    string
	Country  string
}

// PaymentReferences stores the gateway identifiers attached to an order.
type PaymentReferences struct {
	StripeSessionID string
	PayPalOrderID   string
	MidtransOrderID string
}

// Order is the immutable snapshot of a checked out cart.
type Order struct {
	ID            string
	OID           string
	CartID        string
	BuyerID       *string
	Contact       OrderContact
	VendorIDs     []string
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	OrderStatus   OrderStatus
	Amounts       LineAmounts
	Saved         decimal.Decimal
	InitialTotal  decimal.Decimal
	References    PaymentReferences
	Version       int64
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Pending reports whether the order has not been settled yet.
func (o Order) Pending() bool {
	return o.PaymentStatus == PaymentStatusPending && o.OrderStatus == OrderStatusPending
}

// ItemsForVendor returns the order items sold by the given vendor.
func (o Order) ItemsForVendor(vendorID string) []OrderItem {
	var out []OrderItem
	for _, item := range o.Items {
		if item.VendorID == vendorID {
			out = append(out, item)
		}
	}
	return out
}

// OrderItem is the per-line snapshot of a cart item at order creation time.
type OrderItem struct {
	ID           string
	OrderID      string
	OID          string
	ProductID    string
	ProductTitle string
	VendorID     string
	Qty          int
	Color        string
	Size         string
	Country      string
	Amounts      LineAmounts
	Saved        decimal.Decimal
	InitialTotal decimal.Decimal
	CouponIDs    []string
	CreatedAt    time.Time
}

// HasCoupon reports whether the coupon has already been applied to the item.
func (i OrderItem) HasCoupon(couponID string) bool {
	for _, id := range i.CouponIDs {
		if id == couponID {
			return true
		}
	}
	return false
}

// Coupon is a vendor scoped percentage discount code.
type Coupon struct {
	ID        string
	VendorID  string
	Code      string
	Discount  int
	Active    bool
	CreatedAt time.Time
}

// Tax is a per-country percentage rate.
type Tax struct {
	Country   string
	Rate      decimal.Decimal
	Active    bool
	UpdatedAt time.Time
}

// SiteSettingsKey is the fixed storage key of the settings singleton.
const SiteSettingsKey = "site"

// SiteSettings holds marketplace wide configuration read by the pricing engine.
type SiteSettings struct {
	ServiceFeePercent decimal.Decimal
	CurrencyCode      string
	CurrencySymbol    string
	UpdatedAt         time.Time
}

// DefaultSiteSettings is used until an operator stores settings.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		ServiceFeePercent: decimal.Zero,
		CurrencyCode:      "USD",
		CurrencySymbol:    "$",
	}
}
