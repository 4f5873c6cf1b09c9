package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/notify"
	"github.com/upfront-market/api/internal/repositories"
)

const defaultEmailTimeout = 5 * time.Second

const (
	audienceBuyer  = "buyer"
	audienceVendor = "vendor"
	audienceAdmin  = "admin"
)

var (
	// ErrNotificationInvalidInput indicates an invalid target or identifier.
	ErrNotificationInvalidInput = errors.New("notification service: invalid input")
	// ErrNotificationNotFound indicates the notification does not belong to the target.
	ErrNotificationNotFound = errors.New("notification service: not found")
	// ErrNotificationUnavailable indicates backend failures.
	ErrNotificationUnavailable = errors.New("notification service: unavailable")
)

type currencySymbolSource interface {
	Get(ctx context.Context) (SiteSettings, error)
}

// NotificationServiceDeps wires notification storage, recipient lookups and email delivery.
type NotificationServiceDeps struct {
	Notifications repositories.NotificationRepository
	Users         repositories.UserRepository
	Vendors       repositories.VendorRepository
	Mailer        notify.Mailer
	Renderer      *notify.Renderer
	Settings      currencySymbolSource
	From          notify.Address
	// OperationsAddress receives the admin order emails. Empty disables them.
	OperationsAddress string
	EmailTimeout      time.Duration
	Metrics           EmailRecorder
	Clock             func() time.Time
	Logger            func(context.Context, string, map[string]any)
	IDGenerator       func() string
}

type notificationService struct {
	notifications repositories.NotificationRepository
	users         repositories.UserRepository
	vendors       repositories.VendorRepository
	mailer        notify.Mailer
	renderer      *notify.Renderer
	settings      currencySymbolSource
	from          notify.Address
	operations    string
	emailTimeout  time.Duration
	metrics       EmailRecorder
	now           func() time.Time
	logger        eventLogger
	newID         func() string
}

var _ NotificationService = (*notificationService)(nil)

// NewNotificationService constructs the notification fan-out service.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Notifications == nil {
		return nil, errors.New("notification service: notification repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("notification service: user repository is required")
	}
	if deps.Vendors == nil {
		return nil, errors.New("notification service: vendor repository is required")
	}
	if deps.Mailer != nil && deps.Renderer == nil {
		return nil, errors.New("notification service: renderer is required when a mailer is configured")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = defaultIDGenerator
	}
	timeout := deps.EmailTimeout
	if timeout <= 0 {
		timeout = defaultEmailTimeout
	}
	return &notificationService{
		notifications: deps.Notifications,
		users:         deps.Users,
		vendors:       deps.Vendors,
		mailer:        deps.Mailer,
		renderer:      deps.Renderer,
		settings:      deps.Settings,
		from:          deps.From,
		operations:    strings.TrimSpace(deps.OperationsAddress),
		emailTimeout:  timeout,
		metrics:       deps.Metrics,
		now:           func() time.Time { return clock().UTC() },
		logger:        logger,
		newID:         idGen,
	}, nil
}

// NotifyOrderCreated stores admin notifications and mails the operations address.
func (s *notificationService) NotifyOrderCreated(ctx context.Context, order Order) {
	rows := s.adminRows(ctx, order, fmt.Sprintf("New order #%s placed", order.OID))
	s.storeRows(ctx, order, rows)

	renderer := s.rendererFor(ctx)
	s.sendAdmin(ctx, renderer, order, notify.SubjectAdminOrder)
}

// NotifyOrderPaid notifies the buyer, every vendor with items in the order and the admins. Each
// recipient is isolated so one failure never prevents the others.
func (s *notificationService) NotifyOrderPaid(ctx context.Context, order Order) {
	var rows []Notification
	if order.BuyerID != nil && strings.TrimSpace(*order.BuyerID) != "" {
		rows = append(rows, Notification{
			Target:  domain.ForUser(*order.BuyerID),
			Type:    domain.NotificationTypeSystem,
			OrderID: order.ID,
			Message: fmt.Sprintf("Your order #%s has been paid", order.OID),
		})
	}

	vendors := s.loadVendors(ctx, order.VendorIDs)
	for _, vendor := range vendors {
		items := order.ItemsForVendor(vendor.ID)
		if len(items) == 0 {
			continue
		}
		rows = append(rows, Notification{
			Target:      domain.ForVendor(vendor.ID),
			Type:        domain.NotificationTypeVendor,
			OrderID:     order.ID,
			OrderItemID: items[0].ID,
			Message:     fmt.Sprintf("New sale on order #%s", order.OID),
		})
	}
	rows = append(rows, s.adminRows(ctx, order, fmt.Sprintf("Order #%s has been paid", order.OID))...)
	s.storeRows(ctx, order, rows)

	renderer := s.rendererFor(ctx)
	if renderer == nil {
		return
	}
	s.deliver(ctx, audienceBuyer, order.OID, func() (notify.Message, error) {
		return renderer.CustomerOrderConfirmation(order)
	})
	for _, vendor := range vendors {
		if len(order.ItemsForVendor(vendor.ID)) == 0 {
			continue
		}
		vendor := vendor
		s.deliver(ctx, audienceVendor, order.OID, func() (notify.Message, error) {
			recipient := s.vendorEmail(ctx, vendor)
			if recipient == "" {
				return notify.Message{}, notify.ErrNoRecipients
			}
			return renderer.VendorSale(order, vendor, recipient)
		})
	}
	s.sendAdmin(ctx, renderer, order, notify.SubjectAdminPayment)
}

func (s *notificationService) sendAdmin(ctx context.Context, renderer *notify.Renderer, order Order, subject string) {
	if renderer == nil || s.operations == "" {
		return
	}
	s.deliver(ctx, audienceAdmin, order.OID, func() (notify.Message, error) {
		return renderer.AdminOrder(order, subject, s.operations)
	})
}

// deliver renders and sends one email under its own timeout. Panics and errors are logged
// and counted, never propagated.
func (s *notificationService) deliver(ctx context.Context, audience, oid string, render func() (notify.Message, error)) {
	outcome := "sent"
	defer func() {
		if rec := recover(); rec != nil {
			outcome = "panic"
			s.logger(ctx, "notification.email.panic", map[string]any{
				"audience": audience,
				"oid":      oid,
				"panic":    fmt.Sprint(rec),
			})
		}
		if s.metrics != nil {
			s.metrics.RecordEmail(audience, outcome)
		}
	}()

	msg, err := render()
	if err == nil {
		msg.From = s.from
		sendCtx, cancel := context.WithTimeout(ctx, s.emailTimeout)
		err = s.mailer.Send(sendCtx, msg)
		cancel()
	}
	switch {
	case err == nil:
		return
	case errors.Is(err, notify.ErrNoRecipients):
		outcome = "skipped"
	default:
		outcome = "failed"
	}
	s.logger(ctx, "notification.email.failed", map[string]any{
		"audience": audience,
		"oid":      oid,
		"outcome":  outcome,
		"error":    err.Error(),
	})
}

func (s *notificationService) rendererFor(ctx context.Context) *notify.Renderer {
	if s.mailer == nil || s.renderer == nil {
		return nil
	}
	if s.settings == nil {
		return s.renderer
	}
	settings, err := s.settings.Get(ctx)
	if err != nil || strings.TrimSpace(settings.CurrencySymbol) == "" {
		return s.renderer
	}
	return s.renderer.WithSymbol(settings.CurrencySymbol)
}

func (s *notificationService) adminRows(ctx context.Context, order Order, message string) []Notification {
	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		s.logger(ctx, "notification.admins.lookup_failed", map[string]any{"oid": order.OID, "error": err.Error()})
		return nil
	}
	rows := make([]Notification, 0, len(admins))
	for _, admin := range admins {
		rows = append(rows, Notification{
			Target:  domain.ForUser(admin.ID),
			Type:    domain.NotificationTypeAdmin,
			OrderID: order.ID,
			Message: message,
		})
	}
	return rows
}

func (s *notificationService) loadVendors(ctx context.Context, vendorIDs []string) []Vendor {
	if len(vendorIDs) == 0 {
		return nil
	}
	vendors, err := s.vendors.ListByIDs(ctx, vendorIDs)
	if err != nil {
		s.logger(ctx, "notification.vendors.lookup_failed", map[string]any{"error": err.Error()})
		return nil
	}
	return vendors
}

func (s *notificationService) vendorEmail(ctx context.Context, vendor Vendor) string {
	if email := strings.TrimSpace(vendor.Email); email != "" {
		return email
	}
	if vendor.UserID == "" {
		return ""
	}
	owner, err := s.users.FindByID(ctx, vendor.UserID)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(owner.Email)
}

func (s *notificationService) storeRows(ctx context.Context, order Order, rows []Notification) {
	if len(rows) == 0 {
		return
	}
	now := s.now()
	for i := range rows {
		rows[i].ID = s.newID()
		rows[i].CreatedAt = now
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.logger(ctx, "notification.store.panic", map[string]any{"oid": order.OID, "panic": fmt.Sprint(rec)})
		}
	}()
	err := s.notifications.InsertMany(ctx, rows)
	if err == nil || len(rows) == 1 {
		if err != nil {
			s.logStoreFailure(ctx, order, rows[0], err)
		}
		return
	}
	// One bad row fails the whole batch; store the rest one by one.
	s.logger(ctx, "notification.store.batch_failed", map[string]any{
		"oid":   order.OID,
		"count": len(rows),
		"error": err.Error(),
	})
	for _, row := range rows {
		if err := s.notifications.InsertMany(ctx, []Notification{row}); err != nil {
			s.logStoreFailure(ctx, order, row, err)
		}
	}
}

func (s *notificationService) logStoreFailure(ctx context.Context, order Order, row Notification, err error) {
	s.logger(ctx, "notification.store.failed", map[string]any{
		"oid":        order.OID,
		"targetKind": string(row.Target.Kind()),
		"targetId":   row.Target.ID(),
		"error":      err.Error(),
	})
}

func (s *notificationService) List(ctx context.Context, target NotificationTarget, seen *bool) ([]Notification, error) {
	if err := target.Validate(); err != nil {
		return nil, ErrNotificationInvalidInput
	}
	items, err := s.notifications.List(ctx, target, seen)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return items, nil
}

func (s *notificationService) Summary(ctx context.Context, target NotificationTarget) (NotificationSummary, error) {
	if err := target.Validate(); err != nil {
		return NotificationSummary{}, ErrNotificationInvalidInput
	}
	summary, err := s.notifications.Summary(ctx, target)
	if err != nil {
		return NotificationSummary{}, s.translateRepoError(err)
	}
	return summary, nil
}

func (s *notificationService) MarkSeen(ctx context.Context, target NotificationTarget, notificationID string) (Notification, error) {
	notificationID = strings.TrimSpace(notificationID)
	if err := target.Validate(); err != nil || notificationID == "" {
		return Notification{}, ErrNotificationInvalidInput
	}
	item, err := s.notifications.MarkSeen(ctx, target, notificationID)
	if err != nil {
		return Notification{}, s.translateRepoError(err)
	}
	return item, nil
}

func (s *notificationService) translateRepoError(err error) error {
	if isRepoNotFound(err) {
		return ErrNotificationNotFound
	}
	return ErrNotificationUnavailable
}
