package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	domain "github.com/upfront-market/api/internal/domain"
)

type orderFixture struct {
	svc       OrderService
	orders    *fakeOrders
	carts     *fakeCarts
	notifier  *recordingNotifier
	publisher *recordingPublisher
}

func newOrderFixture(t *testing.T, oids ...string) orderFixture {
	t.Helper()
	carts := &fakeCarts{lines: []domain.CartItem{
		{ID: "l1", CartID: "c1", ProductID: "a", VendorID: "v1", Qty: 2, Country: "X", Amounts: LineAmounts{
			Price: dec("10.00"), SubTotal: dec("20.00"), Shipping: dec("2.00"), TaxFee: dec("0.10"), ServiceFee: dec("1.00"), Total: dec("23.10"),
		}},
		{ID: "l2", CartID: "c1", ProductID: "b", VendorID: "v2", Qty: 1, Amounts: LineAmounts{
			Price: dec("20.00"), SubTotal: dec("20.00"), ServiceFee: dec("1.00"), Total: dec("21.00"),
		}},
	}}
	orders := newFakeOrders()
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}

	deps := OrderServiceDeps{
		Orders:     orders,
		Carts:      carts,
		Products:   newFakeProducts(domain.Product{ID: "a", Title: "Mug"}, domain.Product{ID: "b", Title: "Lamp"}),
		Users:      newFakeUsers(domain.User{ID: "u1", Email: "buyer@example.com"}),
		UnitOfWork: &fakeUnitOfWork{},
		Notifier:   notifier,
		Events:     publisher,
		Clock:      fixedClock,
	}
	if len(oids) > 0 {
		queue := append([]string(nil), oids...)
		deps.OIDGenerator = func(time.Time) (string, error) {
			oid := queue[0]
			if len(queue) > 1 {
				queue = queue[1:]
			}
			return oid, nil
		}
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return orderFixture{svc: svc, orders: orders, carts: carts, notifier: notifier, publisher: publisher}
}

func TestOrderServiceCreateFromCartSnapshotsLines(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.svc.CreateFromCart(context.Background(), CreateOrderCommand{
		CartID:   "c1",
		UserID:   "u1",
		FullName: "Ada Buyer",
		Email:    "buyer@example.com",
	})
	if err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}

	if !regexp.MustCompile(`^20240314-[A-Z0-9]{6}$`).MatchString(order.OID) {
		t.Fatalf("unexpected oid %q", order.OID)
	}
	if order.PaymentMethod != domain.PaymentMethodCard || !order.Pending() {
		t.Fatalf("expected pending card order, got %+v", order)
	}
	if order.BuyerID == nil || *order.BuyerID != "u1" {
		t.Fatalf("expected buyer u1")
	}
	if len(order.Items) != 2 || order.Items[0].ProductTitle != "Mug" {
		t.Fatalf("unexpected items %+v", order.Items)
	}
	if !order.Amounts.Total.Equal(dec("44.10")) || !order.InitialTotal.Equal(dec("44.10")) {
		t.Fatalf("expected total 44.10, got %s / %s", order.Amounts.Total, order.InitialTotal)
	}
	if !order.Amounts.Balanced() {
		t.Fatalf("expected balanced order totals")
	}
	for _, item := range order.Items {
		if !item.InitialTotal.Equal(item.Amounts.Total) {
			t.Fatalf("expected initial total snapshot for %s", item.ProductID)
		}
	}
	if len(order.VendorIDs) != 2 {
		t.Fatalf("expected two vendors, got %v", order.VendorIDs)
	}
	if len(f.carts.lines) != 2 {
		t.Fatalf("cart must stay intact until payment")
	}
	if len(f.notifier.created) != 1 || len(f.publisher.events) != 1 || f.publisher.events[0].Type != OrderEventCreated {
		t.Fatalf("expected created notification and event, got %v %+v", f.notifier.created, f.publisher.events)
	}
	if f.publisher.events[0].Total != "44.10" {
		t.Fatalf("expected event total 44.10, got %s", f.publisher.events[0].Total)
	}
}

func TestOrderServiceUnknownBuyerFallsBackToGuest(t *testing.T) {
	f := newOrderFixture(t)
	order, err := f.svc.CreateFromCart(context.Background(), CreateOrderCommand{CartID: "c1", UserID: "ghost", PaymentMethod: "COD"})
	if err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}
	if order.BuyerID != nil {
		t.Fatalf("expected guest order")
	}
	if order.PaymentMethod != domain.PaymentMethodCOD {
		t.Fatalf("expected cod, got %s", order.PaymentMethod)
	}
}

func TestOrderServiceRegeneratesCollidingOID(t *testing.T) {
	f := newOrderFixture(t, "20240314-AAAAAA", "20240314-BBBBBB")
	f.orders.byOID["20240314-AAAAAA"] = domain.Order{ID: "existing", OID: "20240314-AAAAAA"}

	order, err := f.svc.CreateFromCart(context.Background(), CreateOrderCommand{CartID: "c1"})
	if err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}
	if order.OID != "20240314-BBBBBB" {
		t.Fatalf("expected regenerated oid, got %s", order.OID)
	}
}

func TestOrderServiceGivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newOrderFixture(t, "20240314-AAAAAA")
	f.orders.byOID["20240314-AAAAAA"] = domain.Order{ID: "existing", OID: "20240314-AAAAAA"}

	if _, err := f.svc.CreateFromCart(context.Background(), CreateOrderCommand{CartID: "c1"}); !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f.orders.inserted != 0 {
		t.Fatalf("expected no inserted order")
	}
}

func TestOrderServiceRejectsEmptyCartAndBadInput(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateFromCart(ctx, CreateOrderCommand{CartID: "empty"}); !errors.Is(err, ErrOrderCartEmpty) {
		t.Fatalf("expected empty cart, got %v", err)
	}
	if _, err := f.svc.CreateFromCart(ctx, CreateOrderCommand{}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := f.svc.CreateFromCart(ctx, CreateOrderCommand{CartID: "c1", PaymentMethod: "bitcoin"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid payment method, got %v", err)
	}
	if _, err := f.svc.CreateFromCart(ctx, CreateOrderCommand{CartID: "c1", Email: "not-an-email"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid email, got %v", err)
	}
}

func TestOrderServicePublishFailureDoesNotFailCreate(t *testing.T) {
	f := newOrderFixture(t)
	f.publisher.err = errBoom
	if _, err := f.svc.CreateFromCart(context.Background(), CreateOrderCommand{CartID: "c1"}); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
}

func TestOrderServiceBuyerViewsOnlyPaidOrders(t *testing.T) {
	f := newOrderFixture(t)
	f.orders.byOID["P-1"] = domain.Order{ID: "o1", OID: "P-1", BuyerID: strPtr("u1"), PaymentStatus: domain.PaymentStatusPaid}
	f.orders.byOID["P-2"] = domain.Order{ID: "o2", OID: "P-2", BuyerID: strPtr("u1"), PaymentStatus: domain.PaymentStatusPending}
	f.orders.byOID["P-3"] = domain.Order{ID: "o3", OID: "P-3", BuyerID: strPtr("u2"), PaymentStatus: domain.PaymentStatusPaid}
	ctx := context.Background()

	orders, err := f.svc.ListForBuyer(ctx, "u1")
	if err != nil {
		t.Fatalf("ListForBuyer: %v", err)
	}
	if len(orders) != 1 || orders[0].OID != "P-1" {
		t.Fatalf("expected only paid order, got %+v", orders)
	}
	if _, err := f.svc.GetForBuyer(ctx, "u1", "P-2"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected pending order hidden, got %v", err)
	}
	if _, err := f.svc.GetForBuyer(ctx, "u1", "P-3"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected foreign order hidden, got %v", err)
	}
	if _, err := f.svc.ListForBuyer(ctx, "undefined"); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected guest rejected, got %v", err)
	}
}

func TestGenerateOrderOIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^20241231-[A-Z0-9]{6}$`)
	now := time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		oid, err := GenerateOrderOID(now)
		if err != nil {
			t.Fatalf("GenerateOrderOID: %v", err)
		}
		if !pattern.MatchString(oid) {
			t.Fatalf("unexpected oid %q", oid)
		}
	}
}
