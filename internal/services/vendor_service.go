package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/repositories"
)

var (
	// ErrVendorNotFound indicates the caller has no vendor shop.
	ErrVendorNotFound = errors.New("vendor service: vendor not found")
	// ErrVendorInvalidInput indicates missing identifiers or filters.
	ErrVendorInvalidInput = errors.New("vendor service: invalid input")
	// ErrVendorUnavailable indicates backend failures.
	ErrVendorUnavailable = errors.New("vendor service: unavailable")
)

// VendorServiceDeps wires the dashboard read models.
type VendorServiceDeps struct {
	Vendors    repositories.VendorRepository
	Products   repositories.ProductRepository
	Orders     repositories.OrderRepository
	Dashboards repositories.DashboardRepository
	Clock      func() time.Time
}

type vendorService struct {
	vendors    repositories.VendorRepository
	products   repositories.ProductRepository
	orders     repositories.OrderRepository
	dashboards repositories.DashboardRepository
	now        func() time.Time
}

var _ VendorService = (*vendorService)(nil)

// NewVendorService constructs the vendor dashboard service.
func NewVendorService(deps VendorServiceDeps) (VendorService, error) {
	if deps.Vendors == nil || deps.Products == nil || deps.Orders == nil || deps.Dashboards == nil {
		return nil, errors.New("vendor service: vendor, product, order and dashboard repositories are required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &vendorService{
		vendors:    deps.Vendors,
		products:   deps.Products,
		orders:     deps.Orders,
		dashboards: deps.Dashboards,
		now:        func() time.Time { return clock().UTC() },
	}, nil
}

// ResolveVendor returns the shop of the authenticated user. A vendor id claim is honoured only
// when the shop belongs to the user.
func (s *vendorService) ResolveVendor(ctx context.Context, userID string, vendorID string) (Vendor, error) {
	userID = strings.TrimSpace(userID)
	vendorID = strings.TrimSpace(vendorID)
	if userID == "" {
		return Vendor{}, ErrVendorInvalidInput
	}

	var (
		vendor Vendor
		err    error
	)
	if vendorID != "" {
		vendor, err = s.vendors.FindByID(ctx, vendorID)
		if err == nil && vendor.UserID != userID {
			return Vendor{}, ErrVendorNotFound
		}
	} else {
		vendor, err = s.vendors.FindByUserID(ctx, userID)
	}
	if err != nil {
		return Vendor{}, s.translateRepoError(err)
	}
	if !vendor.Active {
		return Vendor{}, ErrVendorNotFound
	}
	return vendor, nil
}

func (s *vendorService) Stats(ctx context.Context, vendorID string) (VendorStats, error) {
	if strings.TrimSpace(vendorID) == "" {
		return VendorStats{}, ErrVendorInvalidInput
	}
	stats, err := s.dashboards.VendorStats(ctx, vendorID)
	if err != nil {
		return VendorStats{}, s.translateRepoError(err)
	}
	return stats, nil
}

func (s *vendorService) OrderChart(ctx context.Context, vendorID string) ([]MonthlyCount, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, ErrVendorInvalidInput
	}
	counts, err := s.dashboards.MonthlyOrderCounts(ctx, vendorID)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return counts, nil
}

func (s *vendorService) ProductChart(ctx context.Context, vendorID string) ([]MonthlyCount, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, ErrVendorInvalidInput
	}
	counts, err := s.dashboards.MonthlyProductCounts(ctx, vendorID)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return counts, nil
}

func (s *vendorService) Products(ctx context.Context, vendorID string, status *ProductStatus) ([]Product, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, ErrVendorInvalidInput
	}
	if status != nil && !status.Valid() {
		return nil, ErrVendorInvalidInput
	}
	products, err := s.products.ListByVendor(ctx, vendorID, status)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return products, nil
}

// Orders lists paid orders containing the vendor's items. Other vendors' items are omitted.
func (s *vendorService) Orders(ctx context.Context, vendorID string) ([]Order, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, ErrVendorInvalidInput
	}
	orders, err := s.orders.ListForVendor(ctx, vendorID, repositories.VendorOrderFilter{
		PaymentStatuses: []domain.PaymentStatus{domain.PaymentStatusPaid},
	})
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return orders, nil
}

func (s *vendorService) Order(ctx context.Context, vendorID string, oid string) (Order, error) {
	vendorID = strings.TrimSpace(vendorID)
	oid = strings.TrimSpace(oid)
	if vendorID == "" || oid == "" {
		return Order{}, ErrVendorInvalidInput
	}
	order, err := s.orders.FindByOID(ctx, oid)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, ErrVendorUnavailable
	}
	items := order.ItemsForVendor(vendorID)
	if len(items) == 0 || order.PaymentStatus != domain.PaymentStatusPaid {
		return Order{}, ErrOrderNotFound
	}
	order.Items = items
	return order, nil
}

func (s *vendorService) Earnings(ctx context.Context, vendorID string) (VendorEarnings, error) {
	if strings.TrimSpace(vendorID) == "" {
		return VendorEarnings{}, ErrVendorInvalidInput
	}
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	earnings, err := s.dashboards.Earnings(ctx, vendorID, monthStart)
	if err != nil {
		return VendorEarnings{}, s.translateRepoError(err)
	}
	return earnings, nil
}

func (s *vendorService) MonthlyEarnings(ctx context.Context, vendorID string) ([]MonthlyEarning, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, ErrVendorInvalidInput
	}
	rows, err := s.dashboards.MonthlyEarnings(ctx, vendorID)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return rows, nil
}

// UpdateShop applies the provided shop fields. Blank names are rejected. Other blank fields clear
// their value.
func (s *vendorService) UpdateShop(ctx context.Context, cmd UpdateShopCommand) (Vendor, error) {
	vendorID := strings.TrimSpace(cmd.VendorID)
	if vendorID == "" {
		return Vendor{}, ErrVendorInvalidInput
	}
	if cmd.Name != nil && strings.TrimSpace(*cmd.Name) == "" {
		return Vendor{}, fmt.Errorf("%w: shop name is required", ErrVendorInvalidInput)
	}
	vendor, err := s.vendors.FindByID(ctx, vendorID)
	if err != nil {
		return Vendor{}, s.translateRepoError(err)
	}
	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	assign(&vendor.Name, cmd.Name)
	assign(&vendor.Email, cmd.Email)
	assign(&vendor.Mobile, cmd.Mobile)
	assign(&vendor.Image, cmd.Image)
	assign(&vendor.Description, cmd.Description)

	saved, err := s.vendors.Save(ctx, vendor)
	if err != nil {
		return Vendor{}, s.translateRepoError(err)
	}
	return saved, nil
}

func (s *vendorService) translateRepoError(err error) error {
	if isRepoNotFound(err) {
		return ErrVendorNotFound
	}
	return ErrVendorUnavailable
}
