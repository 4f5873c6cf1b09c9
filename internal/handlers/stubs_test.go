package handlers

import (
	"context"

	"github.com/shopspring/decimal"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/services"
)

type stubCartService struct {
	upsertFunc func(ctx context.Context, cmd services.UpsertCartLineCommand) (services.CartLineResult, error)
	listFunc   func(ctx context.Context, cartID, userID string) ([]services.CartItem, error)
	totalsFunc func(ctx context.Context, cartID, userID string) (services.CartTotals, error)
	deleteFunc func(ctx context.Context, cartID, itemID, userID string) error
}

func (s *stubCartService) UpsertLine(ctx context.Context, cmd services.UpsertCartLineCommand) (services.CartLineResult, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, cmd)
	}
	return services.CartLineResult{}, nil
}

func (s *stubCartService) ListLines(ctx context.Context, cartID, userID string) ([]services.CartItem, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, cartID, userID)
	}
	return nil, nil
}

func (s *stubCartService) Totals(ctx context.Context, cartID, userID string) (services.CartTotals, error) {
	if s.totalsFunc != nil {
		return s.totalsFunc(ctx, cartID, userID)
	}
	return services.CartTotals{}, nil
}

func (s *stubCartService) DeleteLine(ctx context.Context, cartID, itemID, userID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, cartID, itemID, userID)
	}
	return nil
}

func (s *stubCartService) Clear(context.Context, string) (int64, error) {
	return 0, nil
}

type stubOrderService struct {
	createFunc      func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	getFunc         func(ctx context.Context, oid string) (services.Order, error)
	listBuyerFunc   func(ctx context.Context, userID string) ([]services.Order, error)
	getForBuyerFunc func(ctx context.Context, userID, oid string) (services.Order, error)
}

func (s *stubOrderService) CreateFromCart(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) GetByOID(ctx context.Context, oid string) (services.Order, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, oid)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) ListForBuyer(ctx context.Context, userID string) ([]services.Order, error) {
	if s.listBuyerFunc != nil {
		return s.listBuyerFunc(ctx, userID)
	}
	return nil, nil
}

func (s *stubOrderService) GetForBuyer(ctx context.Context, userID, oid string) (services.Order, error) {
	if s.getForBuyerFunc != nil {
		return s.getForBuyerFunc(ctx, userID, oid)
	}
	return services.Order{}, services.ErrOrderNotFound
}

type stubCouponService struct {
	applyFunc  func(ctx context.Context, cmd services.ApplyCouponCommand) (services.CouponResult, error)
	listFunc   func(ctx context.Context, vendorID string) ([]services.Coupon, error)
	createFunc func(ctx context.Context, cmd services.CreateCouponCommand) (services.Coupon, error)
	getFunc    func(ctx context.Context, vendorID, couponID string) (services.Coupon, error)
	updateFunc func(ctx context.Context, cmd services.UpdateCouponCommand) (services.Coupon, error)
	deleteFunc func(ctx context.Context, vendorID, couponID string) error
	statsFunc  func(ctx context.Context, vendorID string) (services.CouponStats, error)
}

func (s *stubCouponService) Apply(ctx context.Context, cmd services.ApplyCouponCommand) (services.CouponResult, error) {
	if s.applyFunc != nil {
		return s.applyFunc(ctx, cmd)
	}
	return services.CouponResult{}, nil
}

func (s *stubCouponService) ListVendorCoupons(ctx context.Context, vendorID string) ([]services.Coupon, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, vendorID)
	}
	return nil, nil
}

func (s *stubCouponService) CreateVendorCoupon(ctx context.Context, cmd services.CreateCouponCommand) (services.Coupon, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Coupon{}, nil
}

func (s *stubCouponService) GetVendorCoupon(ctx context.Context, vendorID, couponID string) (services.Coupon, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, vendorID, couponID)
	}
	return services.Coupon{}, services.ErrCouponNotFound
}

func (s *stubCouponService) UpdateVendorCoupon(ctx context.Context, cmd services.UpdateCouponCommand) (services.Coupon, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.Coupon{}, nil
}

func (s *stubCouponService) DeleteVendorCoupon(ctx context.Context, vendorID, couponID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, vendorID, couponID)
	}
	return nil
}

func (s *stubCouponService) VendorCouponStats(ctx context.Context, vendorID string) (services.CouponStats, error) {
	if s.statsFunc != nil {
		return s.statsFunc(ctx, vendorID)
	}
	return services.CouponStats{}, nil
}

type stubPaymentService struct {
	startFunc   func(ctx context.Context, oid string) (services.CardCheckout, error)
	confirmFunc func(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.PaymentResult, error)
	codFunc     func(ctx context.Context, oid string) (services.PaymentResult, error)
	webhookFunc func(ctx context.Context, payload []byte, signature string) (services.PaymentResult, error)
}

func (s *stubPaymentService) StartCardCheckout(ctx context.Context, oid string) (services.CardCheckout, error) {
	if s.startFunc != nil {
		return s.startFunc(ctx, oid)
	}
	return services.CardCheckout{}, nil
}

func (s *stubPaymentService) Confirm(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.PaymentResult, error) {
	if s.confirmFunc != nil {
		return s.confirmFunc(ctx, cmd)
	}
	return services.PaymentResult{}, nil
}

func (s *stubPaymentService) ConfirmCard(ctx context.Context, oid, sessionID string) (services.PaymentResult, error) {
	return s.Confirm(ctx, services.ConfirmPaymentCommand{OrderOID: oid, SessionID: sessionID})
}

func (s *stubPaymentService) ConfirmPayPal(ctx context.Context, oid, paypalOrderID string) (services.PaymentResult, error) {
	return s.Confirm(ctx, services.ConfirmPaymentCommand{OrderOID: oid, PayPalOrderID: paypalOrderID})
}

func (s *stubPaymentService) ConfirmMidtrans(ctx context.Context, oid, midtransOrderID string) (services.PaymentResult, error) {
	return s.Confirm(ctx, services.ConfirmPaymentCommand{OrderOID: oid, MidtransOrderID: midtransOrderID})
}

func (s *stubPaymentService) ConfirmCOD(ctx context.Context, oid string) (services.PaymentResult, error) {
	if s.codFunc != nil {
		return s.codFunc(ctx, oid)
	}
	return services.PaymentResult{}, nil
}

func (s *stubPaymentService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (services.PaymentResult, error) {
	if s.webhookFunc != nil {
		return s.webhookFunc(ctx, payload, signature)
	}
	return services.PaymentResult{}, nil
}

type stubNotificationService struct {
	listFunc     func(ctx context.Context, target services.NotificationTarget, seen *bool) ([]services.Notification, error)
	summaryFunc  func(ctx context.Context, target services.NotificationTarget) (services.NotificationSummary, error)
	markSeenFunc func(ctx context.Context, target services.NotificationTarget, id string) (services.Notification, error)
}

func (s *stubNotificationService) NotifyOrderCreated(context.Context, services.Order) {}

func (s *stubNotificationService) NotifyOrderPaid(context.Context, services.Order) {}

func (s *stubNotificationService) List(ctx context.Context, target services.NotificationTarget, seen *bool) ([]services.Notification, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, target, seen)
	}
	return nil, nil
}

func (s *stubNotificationService) Summary(ctx context.Context, target services.NotificationTarget) (services.NotificationSummary, error) {
	if s.summaryFunc != nil {
		return s.summaryFunc(ctx, target)
	}
	return services.NotificationSummary{}, nil
}

func (s *stubNotificationService) MarkSeen(ctx context.Context, target services.NotificationTarget, id string) (services.Notification, error) {
	if s.markSeenFunc != nil {
		return s.markSeenFunc(ctx, target, id)
	}
	return services.Notification{}, services.ErrNotificationNotFound
}

type stubVendorService struct {
	resolveFunc  func(ctx context.Context, userID, vendorID string) (services.Vendor, error)
	statsFunc    func(ctx context.Context, vendorID string) (services.VendorStats, error)
	productsFunc func(ctx context.Context, vendorID string, status *services.ProductStatus) ([]services.Product, error)
	ordersFunc   func(ctx context.Context, vendorID string) ([]services.Order, error)
	orderFunc    func(ctx context.Context, vendorID, oid string) (services.Order, error)
	earningsFunc func(ctx context.Context, vendorID string) (services.VendorEarnings, error)
	shopFunc     func(ctx context.Context, cmd services.UpdateShopCommand) (services.Vendor, error)
}

func (s *stubVendorService) ResolveVendor(ctx context.Context, userID, vendorID string) (services.Vendor, error) {
	if s.resolveFunc != nil {
		return s.resolveFunc(ctx, userID, vendorID)
	}
	return services.Vendor{ID: "vendor-1", UserID: userID, Active: true}, nil
}

func (s *stubVendorService) Stats(ctx context.Context, vendorID string) (services.VendorStats, error) {
	if s.statsFunc != nil {
		return s.statsFunc(ctx, vendorID)
	}
	return services.VendorStats{}, nil
}

func (s *stubVendorService) OrderChart(context.Context, string) ([]services.MonthlyCount, error) {
	return []services.MonthlyCount{{Month: 3, Count: 2}}, nil
}

func (s *stubVendorService) ProductChart(context.Context, string) ([]services.MonthlyCount, error) {
	return []services.MonthlyCount{{Month: 1, Count: 5}}, nil
}

func (s *stubVendorService) Products(ctx context.Context, vendorID string, status *services.ProductStatus) ([]services.Product, error) {
	if s.productsFunc != nil {
		return s.productsFunc(ctx, vendorID, status)
	}
	return nil, nil
}

func (s *stubVendorService) Orders(ctx context.Context, vendorID string) ([]services.Order, error) {
	if s.ordersFunc != nil {
		return s.ordersFunc(ctx, vendorID)
	}
	return nil, nil
}

func (s *stubVendorService) Order(ctx context.Context, vendorID, oid string) (services.Order, error) {
	if s.orderFunc != nil {
		return s.orderFunc(ctx, vendorID, oid)
	}
	return services.Order{}, services.ErrVendorNotFound
}

func (s *stubVendorService) Earnings(ctx context.Context, vendorID string) (services.VendorEarnings, error) {
	if s.earningsFunc != nil {
		return s.earningsFunc(ctx, vendorID)
	}
	return services.VendorEarnings{}, nil
}

func (s *stubVendorService) MonthlyEarnings(context.Context, string) ([]services.MonthlyEarning, error) {
	return []services.MonthlyEarning{{Year: 2024, Month: 3, SalesCount: 4, TotalEarning: decimal.RequireFromString("88.2")}}, nil
}

func (s *stubVendorService) UpdateShop(ctx context.Context, cmd services.UpdateShopCommand) (services.Vendor, error) {
	if s.shopFunc != nil {
		return s.shopFunc(ctx, cmd)
	}
	return services.Vendor{}, services.ErrVendorNotFound
}

type stubReviewService struct {
	listProductFunc func(ctx context.Context, productID string) ([]services.Review, error)
	createFunc      func(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error)
	listVendorFunc  func(ctx context.Context, vendorID string) ([]services.Review, error)
	getFunc         func(ctx context.Context, vendorID, reviewID string) (services.Review, error)
	updateFunc      func(ctx context.Context, cmd services.UpdateReviewCommand) (services.Review, error)
}

func (s *stubReviewService) ListForProduct(ctx context.Context, productID string) ([]services.Review, error) {
	if s.listProductFunc != nil {
		return s.listProductFunc(ctx, productID)
	}
	return nil, nil
}

func (s *stubReviewService) Create(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Review{}, services.ErrReviewUnavailable
}

func (s *stubReviewService) ListForVendor(ctx context.Context, vendorID string) ([]services.Review, error) {
	if s.listVendorFunc != nil {
		return s.listVendorFunc(ctx, vendorID)
	}
	return nil, nil
}

func (s *stubReviewService) GetForVendor(ctx context.Context, vendorID, reviewID string) (services.Review, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, vendorID, reviewID)
	}
	return services.Review{}, services.ErrReviewNotFound
}

func (s *stubReviewService) UpdateForVendor(ctx context.Context, cmd services.UpdateReviewCommand) (services.Review, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.Review{}, services.ErrReviewNotFound
}

type stubCatalogService struct {
	listFunc     func(ctx context.Context, filter services.ProductListFilter) (domain.Page[services.Product], error)
	getFunc      func(ctx context.Context, slug string) (services.Product, error)
	shopFunc     func(ctx context.Context, slug string) (services.Vendor, error)
	shopListFunc func(ctx context.Context, slug string, pager services.Pagination) (domain.Page[services.Product], error)
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter services.ProductListFilter) (domain.Page[services.Product], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.Page[services.Product]{}, nil
}

func (s *stubCatalogService) GetProduct(ctx context.Context, slug string) (services.Product, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, slug)
	}
	return services.Product{}, services.ErrCatalogNotFound
}

func (s *stubCatalogService) GetShop(ctx context.Context, slug string) (services.Vendor, error) {
	if s.shopFunc != nil {
		return s.shopFunc(ctx, slug)
	}
	return services.Vendor{}, services.ErrCatalogNotFound
}

func (s *stubCatalogService) ListShopProducts(ctx context.Context, slug string, pager services.Pagination) (domain.Page[services.Product], error) {
	if s.shopListFunc != nil {
		return s.shopListFunc(ctx, slug, pager)
	}
	return domain.Page[services.Product]{}, nil
}

func (s *stubCatalogService) ListCategories(context.Context) ([]services.Category, error) {
	return []services.Category{{ID: "cat-1", Title: "Kitchen", Slug: "kitchen", Active: true}}, nil
}

func (s *stubCatalogService) SaveProduct(_ context.Context, p services.Product) (services.Product, error) {
	return p, nil
}

func (s *stubCatalogService) SaveCategory(_ context.Context, c services.Category) (services.Category, error) {
	return c, nil
}

type stubSettingsService struct {
	settings services.SiteSettings
	taxes    []services.Tax
	lastTax  services.UpsertTaxCommand
	updated  services.UpdateSettingsCommand
	err      error
}

func (s *stubSettingsService) Get(context.Context) (services.SiteSettings, error) {
	return s.settings, s.err
}

func (s *stubSettingsService) Update(_ context.Context, cmd services.UpdateSettingsCommand) (services.SiteSettings, error) {
	s.updated = cmd
	if s.err != nil {
		return services.SiteSettings{}, s.err
	}
	if cmd.ServiceFeePercent != nil {
		s.settings.ServiceFeePercent = *cmd.ServiceFeePercent
	}
	if cmd.CurrencyCode != nil {
		s.settings.CurrencyCode = *cmd.CurrencyCode
	}
	return s.settings, nil
}

func (s *stubSettingsService) TaxRate(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, s.err
}

func (s *stubSettingsService) ListTaxes(context.Context) ([]services.Tax, error) {
	return s.taxes, s.err
}

func (s *stubSettingsService) UpsertTax(_ context.Context, cmd services.UpsertTaxCommand) (services.Tax, error) {
	s.lastTax = cmd
	if s.err != nil {
		return services.Tax{}, s.err
	}
	return services.Tax{Country: cmd.Country, Rate: cmd.Rate, Active: cmd.Active}, nil
}

func sampleOrder(oid string) services.Order {
	buyer := "buyer-1"
	return services.Order{
		ID:            "order-1",
		OID:           oid,
		BuyerID:       &buyer,
		Contact:       services.OrderContact{FullName: "Ada Buyer", Email: "ada@example.com", Country: "Indonesia"},
		VendorIDs:     []string{"vendor-1"},
		PaymentMethod: domain.PaymentMethodCard,
		PaymentStatus: domain.PaymentStatusPending,
		OrderStatus:   domain.OrderStatusPending,
		Amounts: services.LineAmounts{
			SubTotal: decimal.RequireFromString("20"),
			Shipping: decimal.RequireFromString("1"),
			TaxFee:   decimal.RequireFromString("2.1"),
			Total:    decimal.RequireFromString("23.1"),
		},
		InitialTotal: decimal.RequireFromString("23.1"),
		Items: []services.OrderItem{{
			ID:           "item-1",
			ProductID:    "prod-1",
			ProductTitle: "Stoneware Mug",
			VendorID:     "vendor-1",
			Qty:          2,
			Amounts: services.LineAmounts{
				Price:    decimal.RequireFromString("10"),
				SubTotal: decimal.RequireFromString("20"),
				Shipping: decimal.RequireFromString("1"),
				TaxFee:   decimal.RequireFromString("2.1"),
				Total:    decimal.RequireFromString("23.1"),
			},
			InitialTotal: decimal.RequireFromString("23.1"),
		}},
	}
}
