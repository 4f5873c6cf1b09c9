package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/upfront-market/api/internal/domain"
)

type stubDashboards struct {
	stats      VendorStats
	monthStart time.Time
	err        error
}

func (s *stubDashboards) VendorStats(context.Context, string) (VendorStats, error) {
	return s.stats, s.err
}

func (s *stubDashboards) MonthlyOrderCounts(context.Context, string) ([]MonthlyCount, error) {
	return []MonthlyCount{{Month: 3, Count: 2}}, s.err
}

func (s *stubDashboards) MonthlyProductCounts(context.Context, string) ([]MonthlyCount, error) {
	return []MonthlyCount{{Month: 1, Count: 5}}, s.err
}

func (s *stubDashboards) Earnings(_ context.Context, _ string, monthStart time.Time) (VendorEarnings, error) {
	s.monthStart = monthStart
	return VendorEarnings{MonthlyRevenue: dec("10.00"), TotalRevenue: dec("99.00")}, s.err
}

func (s *stubDashboards) MonthlyEarnings(context.Context, string) ([]MonthlyEarning, error) {
	return []MonthlyEarning{{Year: 2024, Month: 3, SalesCount: 1, TotalEarning: dec("10.00")}}, s.err
}

func newVendorFixture(t *testing.T) (VendorService, *stubDashboards) {
	t.Helper()
	buyer := "buyer-1"
	paid := domain.Order{
		ID: "o1", OID: "20240314-VND001", BuyerID: &buyer,
		PaymentStatus: domain.PaymentStatusPaid, OrderStatus: domain.OrderStatusProcessing,
		Items: []domain.OrderItem{
			{ID: "i1", VendorID: "v1", ProductTitle: "Mug"},
			{ID: "i2", VendorID: "v2", ProductTitle: "Lamp"},
		},
	}
	pending := domain.Order{
		ID: "o2", OID: "20240314-VND002",
		PaymentStatus: domain.PaymentStatusPending, OrderStatus: domain.OrderStatusPending,
		Items: []domain.OrderItem{{ID: "i3", VendorID: "v1", ProductTitle: "Bowl"}},
	}
	dashboards := &stubDashboards{stats: VendorStats{Products: 3, Orders: 1, Revenue: dec("23.10")}}
	svc, err := NewVendorService(VendorServiceDeps{
		Vendors: newFakeVendors(
			domain.Vendor{ID: "v1", UserID: "user-1", Active: true},
			domain.Vendor{ID: "v2", UserID: "user-2", Active: true},
			domain.Vendor{ID: "v9", UserID: "user-9", Active: false},
		),
		Products: newFakeProducts(
			domain.Product{ID: "p1", VendorID: "v1", Status: domain.ProductStatusPublished},
			domain.Product{ID: "p2", VendorID: "v1", Status: domain.ProductStatusDraft},
			domain.Product{ID: "p3", VendorID: "v2", Status: domain.ProductStatusPublished},
		),
		Orders:     newFakeOrders(paid, pending),
		Dashboards: dashboards,
		Clock:      fixedClock,
	})
	if err != nil {
		t.Fatalf("NewVendorService: %v", err)
	}
	return svc, dashboards
}

func TestVendorServiceResolveVendor(t *testing.T) {
	svc, _ := newVendorFixture(t)
	ctx := context.Background()

	vendor, err := svc.ResolveVendor(ctx, "user-1", "")
	if err != nil || vendor.ID != "v1" {
		t.Fatalf("expected v1, got %+v (%v)", vendor, err)
	}
	if _, err := svc.ResolveVendor(ctx, "user-1", "v2"); !errors.Is(err, ErrVendorNotFound) {
		t.Fatalf("expected claim for foreign shop to fail, got %v", err)
	}
	if _, err := svc.ResolveVendor(ctx, "user-9", ""); !errors.Is(err, ErrVendorNotFound) {
		t.Fatalf("expected inactive shop to be hidden, got %v", err)
	}
	if _, err := svc.ResolveVendor(ctx, "nobody", ""); !errors.Is(err, ErrVendorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.ResolveVendor(ctx, " ", ""); !errors.Is(err, ErrVendorInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestVendorServiceOrdersArePaidAndScoped(t *testing.T) {
	svc, _ := newVendorFixture(t)
	ctx := context.Background()

	orders, err := svc.Orders(ctx, "v1")
	if err != nil {
		t.Fatalf("Orders: %v", err)
	}
	if len(orders) != 1 || len(orders[0].Items) != 1 || orders[0].Items[0].ID != "i1" {
		t.Fatalf("expected only v1 items of paid orders, got %+v", orders)
	}

	order, err := svc.Order(ctx, "v2", "20240314-VND001")
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].VendorID != "v2" {
		t.Fatalf("expected v2 items only, got %+v", order.Items)
	}
	if _, err := svc.Order(ctx, "v1", "20240314-VND002"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected unpaid order hidden, got %v", err)
	}
	if _, err := svc.Order(ctx, "v3", "20240314-VND001"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected order without vendor items hidden, got %v", err)
	}
}

func TestVendorServiceProductsAndDashboards(t *testing.T) {
	svc, dashboards := newVendorFixture(t)
	ctx := context.Background()

	all, err := svc.Products(ctx, "v1", nil)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected two v1 products, got %d (%v)", len(all), err)
	}
	draft := domain.ProductStatusDraft
	drafts, err := svc.Products(ctx, "v1", &draft)
	if err != nil || len(drafts) != 1 || drafts[0].ID != "p2" {
		t.Fatalf("expected draft product only, got %+v (%v)", drafts, err)
	}
	bogus := domain.ProductStatus("archived-forever")
	if _, err := svc.Products(ctx, "v1", &bogus); !errors.Is(err, ErrVendorInvalidInput) {
		t.Fatalf("expected invalid status, got %v", err)
	}

	stats, err := svc.Stats(ctx, "v1")
	if err != nil || stats.Products != 3 {
		t.Fatalf("unexpected stats %+v (%v)", stats, err)
	}
	if _, err := svc.Earnings(ctx, "v1"); err != nil {
		t.Fatalf("Earnings: %v", err)
	}
	want := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !dashboards.monthStart.Equal(want) {
		t.Fatalf("expected month start %s, got %s", want, dashboards.monthStart)
	}

	dashboards.err = errBoom
	if _, err := svc.OrderChart(ctx, "v1"); !errors.Is(err, ErrVendorUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := svc.MonthlyEarnings(ctx, ""); !errors.Is(err, ErrVendorInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestVendorServiceUpdateShop(t *testing.T) {
	vendors := newFakeVendors(domain.Vendor{ID: "v1", UserID: "user-1", Name: "Old", Slug: "old-shop", Mobile: "0800", Active: true})
	svc, err := NewVendorService(VendorServiceDeps{
		Vendors:    vendors,
		Products:   newFakeProducts(),
		Orders:     newFakeOrders(),
		Dashboards: &stubDashboards{},
		Clock:      fixedClock,
	})
	if err != nil {
		t.Fatalf("NewVendorService: %v", err)
	}
	ctx := context.Background()

	updated, err := svc.UpdateShop(ctx, UpdateShopCommand{
		VendorID:    "v1",
		Name:        strPtr(" Corner Store "),
		Description: strPtr(" Hand made mugs "),
		Mobile:      strPtr(""),
	})
	if err != nil {
		t.Fatalf("UpdateShop: %v", err)
	}
	if updated.Name != "Corner Store" || updated.Description != "Hand made mugs" || updated.Mobile != "" {
		t.Fatalf("unexpected shop %+v", updated)
	}
	if updated.Slug != "old-shop" || updated.UserID != "user-1" || !updated.Active {
		t.Fatalf("expected slug, owner and status untouched, got %+v", updated)
	}
	if stored := vendors.items["v1"]; stored.Name != "Corner Store" {
		t.Fatalf("expected shop persisted, got %+v", stored)
	}

	if _, err := svc.UpdateShop(ctx, UpdateShopCommand{VendorID: "v1", Name: strPtr("  ")}); !errors.Is(err, ErrVendorInvalidInput) {
		t.Fatalf("expected blank name rejected, got %v", err)
	}
	if _, err := svc.UpdateShop(ctx, UpdateShopCommand{VendorID: "missing", Name: strPtr("x")}); !errors.Is(err, ErrVendorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
