package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"
)

// Models lists every row type owned by the store, in dependency order, for AutoMigrate.
func Models() []any {
	return []any{
		&userRow{},
		&vendorRow{},
		&categoryRow{},
		&productRow{},
		&productSizeRow{},
		&productColorRow{},
		&productSpecificationRow{},
		&productGalleryRow{},
		&cartItemRow{},
		&orderRow{},
		&orderVendorRow{},
		&orderItemRow{},
		&couponRow{},
		&orderItemCouponRow{},
		&notificationRow{},
		&reviewRow{},
		&taxRow{},
		&siteSettingsRow{},
	}
}

type userRow struct {
	ID        string `gorm:"primaryKey;size:26"`
	Email     string `gorm:"size:254;index"`
	FullName  string `gorm:"size:120"`
	IsAdmin   bool   `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

type vendorRow struct {
	ID          string `gorm:"primaryKey;size:26"`
	UserID      string `gorm:"size:26;index"`
	Name        string `gorm:"size:120"`
	Email       string `gorm:"size:254"`
	Slug        string `gorm:"size:60;uniqueIndex"`
	Image       string `gorm:"size:255"`
	Mobile      string `gorm:"size:32"`
	Description string `gorm:"type:text"`
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (vendorRow) TableName() string { return "vendors" }

type categoryRow struct {
	ID     string `gorm:"primaryKey;size:26"`
	Title  string `gorm:"size:120"`
	Slug   string `gorm:"size:60;uniqueIndex"`
	Image  string `gorm:"size:255"`
	Active bool
}

func (categoryRow) TableName() string { return "categories" }

type productRow struct {
	ID             string          `gorm:"primaryKey;size:26"`
	VendorID       string          `gorm:"size:26;index"`
	CategoryID     string          `gorm:"size:26;index"`
	Title          string          `gorm:"size:90"`
	Slug           string          `gorm:"size:40;uniqueIndex"`
	Description    string          `gorm:"type:text"`
	Image          string          `gorm:"size:255"`
	Price          decimal.Decimal `gorm:"type:decimal(16,2)"`
	RegularPrice   decimal.Decimal `gorm:"type:decimal(16,2)"`
	ShippingAmount decimal.Decimal `gorm:"type:decimal(16,2)"`
	Stock          int
	Status         string `gorm:"size:16;index"`
	Featured       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Sizes          []productSizeRow          `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Colors         []productColorRow         `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Specifications []productSpecificationRow `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Gallery        []productGalleryRow       `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

func (productRow) TableName() string { return "products" }

type productSizeRow struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	ProductID string          `gorm:"size:26;index"`
	Name      string          `gorm:"size:60"`
	Price     decimal.Decimal `gorm:"type:decimal(16,2)"`
}

func (productSizeRow) TableName() string { return "product_sizes" }

type productColorRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ProductID string `gorm:"size:26;index"`
	Name      string `gorm:"size:60"`
	Code      string `gorm:"size:32"`
}

func (productColorRow) TableName() string { return "product_colors" }

type productSpecificationRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ProductID string `gorm:"size:26;index"`
	Title     string `gorm:"size:120"`
	Content   string `gorm:"size:1000"`
}

func (productSpecificationRow) TableName() string { return "product_specifications" }

type productGalleryRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ProductID string `gorm:"size:26;index"`
	Image     string `gorm:"size:255"`
	Position  int
}

func (productGalleryRow) TableName() string { return "product_gallery" }

type cartItemRow struct {
	ID             string          `gorm:"primaryKey;size:26"`
	CartID         string          `gorm:"size:64;uniqueIndex:idx_cart_items_cart_product,priority:1"`
	ProductID      string          `gorm:"size:26;uniqueIndex:idx_cart_items_cart_product,priority:2"`
	UserID         *string         `gorm:"size:64;index"`
	VendorID       string          `gorm:"size:26"`
	Qty            int             `gorm:"not null"`
	Color          string          `gorm:"size:60"`
	Size           string          `gorm:"size:60"`
	Country        string          `gorm:"size:64"`
	Price          decimal.Decimal `gorm:"type:decimal(16,2)"`
	SubTotal       decimal.Decimal `gorm:"type:decimal(16,2)"`
	ShippingAmount decimal.Decimal `gorm:"type:decimal(16,2)"`
	TaxFee         decimal.Decimal `gorm:"type:decimal(16,2)"`
	ServiceFee     decimal.Decimal `gorm:"type:decimal(16,2)"`
	Total          decimal.Decimal `gorm:"type:decimal(16,2)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (cartItemRow) TableName() string { return "cart_items" }

type orderRow struct {
	ID              string          `gorm:"primaryKey;size:26"`
	OID             string          `gorm:"column:oid;size:16;uniqueIndex"`
	CartID          string          `gorm:"size:64;index"`
	BuyerID         *string         `gorm:"size:64;index"`
	FullName        string          `gorm:"size:120"`
	Email           string          `gorm:"size:254"`
	Mobile          string          `gorm:"size:32"`
	Address         string          `gorm:"size:255"`
	City            string          `gorm:"size:120"`
	State           string          `gorm:"size:120"`
	Country         string          `gorm:"size:64"`
	PaymentMethod   string          `gorm:"size:16"`
	PaymentStatus   string          `gorm:"size:16;index"`
	OrderStatus     string          `gorm:"size:16"`
	SubTotal        decimal.Decimal `gorm:"type:decimal(16,2)"`
	ShippingAmount  decimal.Decimal `gorm:"type:decimal(16,2)"`
	TaxFee          decimal.Decimal `gorm:"type:decimal(16,2)"`
	ServiceFee      decimal.Decimal `gorm:"type:decimal(16,2)"`
	Total           decimal.Decimal `gorm:"type:decimal(16,2)"`
	Saved           decimal.Decimal `gorm:"type:decimal(16,2)"`
	InitialTotal    decimal.Decimal `gorm:"type:decimal(16,2)"`
	StripeSessionID string          `gorm:"size:255;index"`
	PayPalOrderID   *string         `gorm:"column:paypal_order_id;size:64;uniqueIndex"`
	MidtransOrderID string          `gorm:"size:64"`
	Version         int64           `gorm:"not null"`
	SettledAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Items   []orderItemRow   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Vendors []orderVendorRow `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (orderRow) TableName() string { return "orders" }

type orderVendorRow struct {
	OrderID  string `gorm:"primaryKey;size:26"`
	VendorID string `gorm:"primaryKey;size:26;index"`
}

func (orderVendorRow) TableName() string { return "order_vendors" }

type orderItemRow struct {
	ID             string          `gorm:"primaryKey;size:26"`
	OrderID        string          `gorm:"size:26;index"`
	OID            string          `gorm:"column:oid;size:16"`
	ProductID      string          `gorm:"size:26"`
	ProductTitle   string          `gorm:"size:90"`
	VendorID       string          `gorm:"size:26;index"`
	Qty            int             `gorm:"not null"`
	Color          string          `gorm:"size:60"`
	Size           string          `gorm:"size:60"`
	Country        string          `gorm:"size:64"`
	Price          decimal.Decimal `gorm:"type:decimal(16,2)"`
	SubTotal       decimal.Decimal `gorm:"type:decimal(16,2)"`
	ShippingAmount decimal.Decimal `gorm:"type:decimal(16,2)"`
	TaxFee         decimal.Decimal `gorm:"type:decimal(16,2)"`
	ServiceFee     decimal.Decimal `gorm:"type:decimal(16,2)"`
	Total          decimal.Decimal `gorm:"type:decimal(16,2)"`
	Saved          decimal.Decimal `gorm:"type:decimal(16,2)"`
	InitialTotal   decimal.Decimal `gorm:"type:decimal(16,2)"`
	CreatedAt      time.Time       `gorm:"index"`

	Coupons []orderItemCouponRow `gorm:"foreignKey:OrderItemID;constraint:OnDelete:CASCADE"`
}

func (orderItemRow) TableName() string { return "order_items" }

type orderItemCouponRow struct {
	OrderItemID string `gorm:"primaryKey;size:26"`
	CouponID    string `gorm:"primaryKey;size:26"`
	CreatedAt   time.Time
}

func (orderItemCouponRow) TableName() string { return "order_item_coupons" }

type couponRow struct {
	ID        string `gorm:"primaryKey;size:26"`
	VendorID  string `gorm:"size:26;index"`
	Code      string `gorm:"size:32;uniqueIndex"`
	Discount  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (couponRow) TableName() string { return "coupons" }

type notificationRow struct {
	ID          string  `gorm:"primaryKey;size:26"`
	TargetKind  string  `gorm:"size:8;not null;index:idx_notifications_target,priority:1"`
	TargetID    string  `gorm:"size:64;not null;index:idx_notifications_target,priority:2"`
	Type        string  `gorm:"size:16"`
	OrderID     *string `gorm:"size:26"`
	OrderItemID *string `gorm:"size:26"`
	Message     string  `gorm:"size:500"`
	Seen        bool    `gorm:"not null;default:false"`
	CreatedAt   time.Time
}

func (notificationRow) TableName() string { return "notifications" }

type reviewRow struct {
	ID        string `gorm:"primaryKey;size:26"`
	ProductID string `gorm:"size:26;not null;index"`
	UserID    string `gorm:"size:128;index"`
	Rating    int    `gorm:"not null"`
	Comment   string `gorm:"size:1000"`
	Reply     string `gorm:"size:1000"`
	Active    bool   `gorm:"not null;default:false;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (reviewRow) TableName() string { return "reviews" }

type taxRow struct {
	Country   string          `gorm:"primaryKey;size:64"`
	Rate      decimal.Decimal `gorm:"type:decimal(8,2)"`
	Active    bool
	UpdatedAt time.Time
}

func (taxRow) TableName() string { return "taxes" }

type siteSettingsRow struct {
	Key               string          `gorm:"column:setting_key;primaryKey;size:16"`
	ServiceFeePercent decimal.Decimal `gorm:"type:decimal(8,2)"`
	CurrencyCode      string          `gorm:"size:3"`
	CurrencySymbol    string          `gorm:"size:8"`
	UpdatedAt         time.Time
}

func (siteSettingsRow) TableName() string { return "site_settings" }
