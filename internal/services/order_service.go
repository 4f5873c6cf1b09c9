package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/repositories"
)

const (
	orderIDAttempts     = 5
	orderIDSuffixLength = 6
	orderIDAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxContactField     = 255
)

var (
	// ErrOrderInvalidInput indicates the checkout form was rejected.
	ErrOrderInvalidInput = errors.New("order service: invalid input")
	// ErrOrderNotFound indicates the order does not exist or is not visible to the caller.
	ErrOrderNotFound = errors.New("order service: not found")
	// ErrOrderCartEmpty indicates the cart has no lines to check out.
	ErrOrderCartEmpty = errors.New("order service: cart is empty")
	// ErrOrderConflict indicates no unique order id could be allocated.
	ErrOrderConflict = errors.New("order service: conflict")
	// ErrOrderUnavailable indicates backend failures.
	ErrOrderUnavailable = errors.New("order service: unavailable")
)

type orderNotifier interface {
	NotifyOrderCreated(ctx context.Context, order Order)
}

// OrderServiceDeps wires persistence and follow-up collaborators for order creation.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	Carts      repositories.CartRepository
	Products   repositories.ProductRepository
	Users      repositories.UserRepository
	UnitOfWork repositories.UnitOfWork
	Notifier   orderNotifier
	Events     OrderEventPublisher
	Tasks      TaskRunner
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
	// OIDGenerator overrides the random order id generator.
	OIDGenerator func(now time.Time) (string, error)
}

type orderService struct {
	orders   repositories.OrderRepository
	carts    repositories.CartRepository
	products repositories.ProductRepository
	users    repositories.UserRepository
	uow      repositories.UnitOfWork
	notifier orderNotifier
	events   OrderEventPublisher
	tasks    TaskRunner
	now      func() time.Time
	logger   eventLogger
	newOID   func(now time.Time) (string, error)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService constructs the order aggregator.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.UnitOfWork == nil {
		return nil, errors.New("order service: unit of work is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	tasks := deps.Tasks
	if tasks == nil {
		tasks = InlineRunner{}
	}
	newOID := deps.OIDGenerator
	if newOID == nil {
		newOID = GenerateOrderOID
	}
	return &orderService{
		orders:   deps.Orders,
		carts:    deps.Carts,
		products: deps.Products,
		users:    deps.Users,
		uow:      deps.UnitOfWork,
		notifier: deps.Notifier,
		events:   deps.Events,
		tasks:    tasks,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
		newOID:   newOID,
	}, nil
}

// CreateFromCart snapshots every line of the cart into a new pending order. The cart itself is
// left untouched until the order is paid.
func (s *orderService) CreateFromCart(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	cmd, err := normaliseCreateOrder(cmd)
	if err != nil {
		return Order{}, err
	}

	lines, err := s.carts.ListLines(ctx, cmd.CartID, nil)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if len(lines) == 0 {
		return Order{}, ErrOrderCartEmpty
	}

	buyerID := s.resolveBuyer(ctx, cmd.UserID)
	now := s.now()
	order := Order{
		CartID:  cmd.CartID,
		BuyerID: buyerID,
		Contact: OrderContact{
			FullName: cmd.FullName,
			Email:    cmd.Email,
			Mobile:   cmd.Mobile,
			Address:  cmd.Address,
			City:     cmd.City,
			State:    cmd.State,
			Country:  cmd.Country,
		},
		PaymentMethod: cmd.PaymentMethod,
		PaymentStatus: domain.PaymentStatusPending,
		OrderStatus:   domain.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	seenVendors := map[string]struct{}{}
	for _, line := range lines {
		title := ""
		if product, err := s.products.FindByID(ctx, line.ProductID); err == nil {
			title = product.Title
		} else if !isRepoNotFound(err) {
			return Order{}, s.translateRepoError(err)
		}
		order.Items = append(order.Items, OrderItem{
			ProductID:    line.ProductID,
			ProductTitle: title,
			VendorID:     line.VendorID,
			Qty:          line.Qty,
			Color:        line.Color,
			Size:         line.Size,
			Country:      line.Country,
			Amounts:      line.Amounts,
			InitialTotal: line.Amounts.Total,
			CreatedAt:    now,
		})
		order.Amounts = order.Amounts.Add(line.Amounts)
		if _, ok := seenVendors[line.VendorID]; !ok && line.VendorID != "" {
			seenVendors[line.VendorID] = struct{}{}
			order.VendorIDs = append(order.VendorIDs, line.VendorID)
		}
	}
	order.InitialTotal = order.Amounts.Total

	created, err := s.insertWithUniqueOID(ctx, order)
	if err != nil {
		return Order{}, err
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderID": created.ID,
		"oid":     created.OID,
		"items":   len(created.Items),
		"total":   created.Amounts.Total.StringFixed(domain.MoneyPlaces),
	})
	s.afterCreate(ctx, created)
	return created, nil
}

func (s *orderService) insertWithUniqueOID(ctx context.Context, order Order) (Order, error) {
	for attempt := 0; attempt < orderIDAttempts; attempt++ {
		oid, err := s.newOID(s.now())
		if err != nil {
			return Order{}, ErrOrderUnavailable
		}
		order.OID = oid

		var created Order
		err = s.uow.RunInTx(ctx, func(txCtx context.Context) error {
			var innerErr error
			created, innerErr = s.orders.Insert(txCtx, order)
			return innerErr
		})
		if err == nil {
			return created, nil
		}
		if !isRepoConflict(err) {
			return Order{}, s.translateRepoError(err)
		}
		s.logger(ctx, "order.oid_collision", map[string]any{"oid": oid, "attempt": attempt + 1})
	}
	return Order{}, ErrOrderConflict
}

func (s *orderService) afterCreate(ctx context.Context, order Order) {
	if s.notifier != nil {
		s.tasks.Go(ctx, "order.notify_created", func(ctx context.Context) {
			s.notifier.NotifyOrderCreated(ctx, order)
		})
	}
	if s.events != nil {
		s.tasks.Go(ctx, "order.publish_created", func(ctx context.Context) {
			publishOrderEvent(ctx, s.events, s.logger, OrderEventCreated, order, s.now())
		})
	}
}

func (s *orderService) resolveBuyer(ctx context.Context, userID string) *string {
	id := normaliseUserID(userID)
	if id == nil || s.users == nil {
		return id
	}
	if _, err := s.users.FindByID(ctx, *id); err != nil {
		s.logger(ctx, "order.buyer_unknown", map[string]any{"userID": *id})
		return nil
	}
	return id
}

func (s *orderService) GetByOID(ctx context.Context, oid string) (Order, error) {
	oid = strings.TrimSpace(oid)
	if oid == "" {
		return Order{}, ErrOrderInvalidInput
	}
	order, err := s.orders.FindByOID(ctx, oid)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	return order, nil
}

// ListForBuyer returns the buyer's paid orders.
func (s *orderService) ListForBuyer(ctx context.Context, userID string) ([]Order, error) {
	id := normaliseUserID(userID)
	if id == nil {
		return nil, ErrOrderInvalidInput
	}
	paid := domain.PaymentStatusPaid
	orders, err := s.orders.ListByBuyer(ctx, *id, &paid)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return orders, nil
}

// GetForBuyer returns one paid order of the buyer.
func (s *orderService) GetForBuyer(ctx context.Context, userID string, oid string) (Order, error) {
	id := normaliseUserID(userID)
	if id == nil {
		return Order{}, ErrOrderInvalidInput
	}
	order, err := s.GetByOID(ctx, oid)
	if err != nil {
		return Order{}, err
	}
	if order.BuyerID == nil || *order.BuyerID != *id || order.PaymentStatus != domain.PaymentStatusPaid {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return ErrOrderConflict
		}
	}
	return ErrOrderUnavailable
}

func normaliseCreateOrder(cmd CreateOrderCommand) (CreateOrderCommand, error) {
	cmd.CartID = strings.TrimSpace(cmd.CartID)
	cmd.FullName = strings.TrimSpace(cmd.FullName)
	cmd.Email = strings.TrimSpace(cmd.Email)
	cmd.Mobile = strings.TrimSpace(cmd.Mobile)
	cmd.Address = strings.TrimSpace(cmd.Address)
	cmd.City = strings.TrimSpace(cmd.City)
	cmd.State = strings.TrimSpace(cmd.State)
	cmd.Country = strings.TrimSpace(cmd.Country)
	cmd.PaymentMethod = domain.PaymentMethod(strings.ToLower(strings.TrimSpace(string(cmd.PaymentMethod))))
	if cmd.PaymentMethod == "" {
		cmd.PaymentMethod = domain.PaymentMethodCard
	}

	if cmd.CartID == "" || !cmd.PaymentMethod.Valid() {
		return cmd, ErrOrderInvalidInput
	}
	if cmd.Email != "" {
		if _, err := mail.ParseAddress(cmd.Email); err != nil {
			return cmd, ErrOrderInvalidInput
		}
	}
	for _, field := range []string{cmd.FullName, cmd.Email, cmd.Mobile, cmd.Address, cmd.City, cmd.State, cmd.Country} {
		if len(field) > maxContactField {
			return cmd, ErrOrderInvalidInput
		}
	}
	return cmd, nil
}

// GenerateOrderOID returns a date prefixed order id such as 20240301-7QK2ZD.
func GenerateOrderOID(now time.Time) (string, error) {
	var b strings.Builder
	b.Grow(len("20060102-") + orderIDSuffixLength)
	b.WriteString(now.UTC().Format("20060102"))
	b.WriteByte('-')
	limit := big.NewInt(int64(len(orderIDAlphabet)))
	for i := 0; i < orderIDSuffixLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate order id: %w", err)
		}
		b.WriteByte(orderIDAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func publishOrderEvent(ctx context.Context, publisher OrderEventPublisher, logger eventLogger, eventType string, order Order, now time.Time) {
	event := OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		OID:           order.OID,
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		OrderStatus:   string(order.OrderStatus),
		Total:         order.Amounts.Total.StringFixed(domain.MoneyPlaces),
		VendorIDs:     append([]string(nil), order.VendorIDs...),
		OccurredAt:    now,
	}
	messageID, err := publisher.PublishOrderEvent(ctx, event)
	if err != nil {
		logger(ctx, "order.event.publish_failed", map[string]any{
			"type":  eventType,
			"oid":   order.OID,
			"error": err.Error(),
		})
		return
	}
	logger(ctx, "order.event.published", map[string]any{"type": eventType, "oid": order.OID, "messageID": messageID})
}
