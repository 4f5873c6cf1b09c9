package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/payments"
	"github.com/upfront-market/api/internal/repositories"
)

const (
	paymentMessagePaid            = "Payment completed successfully"
	paymentMessageAlreadyDone     = "Payment has already been processed"
	paymentMessagePending         = "Payment pending. Please complete your payment"
	paymentMessageCancelled       = "Payment cancelled. Please try again or contact support"
	paymentMessageUnprocessable   = "Unable to process payment. Please try again or contact support"
	paymentMessageVerifyFailed    = "Payment verification failed. Please try again or contact support"
	paymentMessageUnverified      = "Unable to verify payment at this time"
	paymentMessageCODPlaced       = "Order placed successfully. Pay on delivery"
	paymentMessageInvalidSession  = "Invalid session ID provided"
	paymentMessageInvalidPayPal   = "Invalid PayPal order ID provided"
	paymentMessageWebhookIgnored  = "Event ignored"
	paymentMessageWebhookHandled  = "Event processed"
	settlementOutcomeAlreadyDone  = "already_processed"
	settlementOutcomeVerifyFailed = "error"
	settlementOutcomeMismatch     = "mismatch"
	// settleAttempts bounds retries when a coupon write moves the order version mid-settlement.
	settleAttempts = 3
)

// OrderEventConfirmed is published when a cash on delivery order is confirmed.
const OrderEventConfirmed = "order.confirmed"

var (
	// ErrPaymentOrderRequired indicates the confirmation payload has no order id.
	ErrPaymentOrderRequired = errors.New("payment service: order id is required")
	// ErrPaymentInvalidInput indicates conflicting or malformed payment references.
	ErrPaymentInvalidInput = errors.New("payment service: invalid input")
	// ErrPaymentOrderNotPending indicates a checkout was requested for a settled order.
	ErrPaymentOrderNotPending = errors.New("payment service: order is not pending")
	// ErrPaymentProviderUnavailable indicates the gateway is not configured or failed.
	ErrPaymentProviderUnavailable = errors.New("payment service: provider unavailable")
	// ErrPaymentInvalidWebhook indicates a webhook with a bad signature or payload.
	ErrPaymentInvalidWebhook = errors.New("payment service: invalid webhook")
	// ErrPaymentUnavailable indicates backend failures.
	ErrPaymentUnavailable = errors.New("payment service: unavailable")
)

// PaymentGateway creates hosted checkouts and verifies gateway transactions.
type PaymentGateway interface {
	Has(name string) bool
	CreateCheckoutSession(ctx context.Context, pctx payments.PaymentContext, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
	Verify(ctx context.Context, pctx payments.PaymentContext, req payments.VerifyRequest) (payments.Verification, error)
}

// StripeWebhookParser verifies and decodes Stripe webhooks.
type StripeWebhookParser interface {
	ParseWebhook(payload []byte, signature string) (payments.StripeWebhookEvent, error)
}

type paidNotifier interface {
	NotifyOrderPaid(ctx context.Context, order Order)
}

// PaymentServiceDeps wires the gateway, persistence and settlement follow-ups.
type PaymentServiceDeps struct {
	Orders     repositories.OrderRepository
	Carts      repositories.CartRepository
	UnitOfWork repositories.UnitOfWork
	Gateway    PaymentGateway
	Webhooks   StripeWebhookParser
	Notifier   paidNotifier
	Events     OrderEventPublisher
	Tasks      TaskRunner
	Metrics    SettlementRecorder
	Settings   currencySymbolSource
	// PublicBaseURL prefixes the hosted checkout return URLs.
	PublicBaseURL   string
	DefaultCurrency string
	Clock           func() time.Time
	Logger          func(context.Context, string, map[string]any)
}

type paymentService struct {
	orders   repositories.OrderRepository
	carts    repositories.CartRepository
	uow      repositories.UnitOfWork
	gateway  PaymentGateway
	webhooks StripeWebhookParser
	notifier paidNotifier
	events   OrderEventPublisher
	tasks    TaskRunner
	metrics  SettlementRecorder
	settings currencySymbolSource
	baseURL  string
	currency string
	now      func() time.Time
	logger   eventLogger
}

var _ PaymentService = (*paymentService)(nil)

// NewPaymentService constructs the payment confirmation dispatcher.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("payment service: cart repository is required")
	}
	if deps.UnitOfWork == nil {
		return nil, errors.New("payment service: unit of work is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment service: gateway is required")
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
	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = domain.DefaultSiteSettings().CurrencyCode
	}
	return &paymentService{
		orders:   deps.Orders,
		carts:    deps.Carts,
		uow:      deps.UnitOfWork,
		gateway:  deps.Gateway,
		webhooks: deps.Webhooks,
		notifier: deps.Notifier,
		events:   deps.Events,
		tasks:    tasks,
		metrics:  deps.Metrics,
		settings: deps.Settings,
		baseURL:  strings.TrimRight(strings.TrimSpace(deps.PublicBaseURL), "/"),
		currency: currency,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

// StartCardCheckout creates a hosted card checkout with one line per order item and stores the
// session id on the order.
func (s *paymentService) StartCardCheckout(ctx context.Context, oid string) (CardCheckout, error) {
	order, err := s.loadOrder(ctx, oid)
	if err != nil {
		return CardCheckout{}, err
	}
	if !order.Pending() {
		return CardCheckout{}, ErrPaymentOrderNotPending
	}
	if !s.gateway.Has(payments.ProviderStripe) {
		return CardCheckout{}, ErrPaymentProviderUnavailable
	}

	currency := s.currencyCode(ctx)
	items := make([]payments.CheckoutLineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payments.CheckoutLineItem{
			Name:     item.ProductTitle,
			Quantity: 1,
			Amount:   payments.ToMinorUnits(item.Amounts.Total),
			Currency: currency,
		})
	}

	escaped := url.PathEscape(order.OID)
	session, err := s.gateway.CreateCheckoutSession(ctx, payments.PaymentContext{
		PreferredProvider: payments.ProviderStripe,
		Currency:          currency,
	}, payments.CheckoutSessionRequest{
		OrderID:        order.OID,
		Currency:       currency,
		CustomerEmail:  order.Contact.Email,
		SuccessURL:     s.baseURL + "/payment-success/" + escaped + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      s.baseURL + "/payment-failed/" + escaped,
		Metadata:       map[string]string{"order_oid": order.OID},
		IdempotencyKey: fmt.Sprintf("checkout-%s-v%d", order.OID, order.Version),
		Items:          items,
	})
	if err != nil {
		s.logger(ctx, "payment.checkout.failed", map[string]any{"oid": order.OID, "error": err.Error()})
		return CardCheckout{}, ErrPaymentProviderUnavailable
	}

	if err := s.orders.SetReferences(ctx, order.ID, domain.PaymentReferences{StripeSessionID: session.ID}); err != nil {
		return CardCheckout{}, s.translateRepoError(err)
	}
	s.logger(ctx, "payment.checkout.created", map[string]any{"oid": order.OID, "sessionID": session.ID})
	return CardCheckout{SessionID: session.ID, RedirectURL: session.RedirectURL, ExpiresAt: session.ExpiresAt}, nil
}

// Confirm routes a unified confirmation payload to the matching provider. Without any reference
// only cash on delivery orders can be confirmed.
func (s *paymentService) Confirm(ctx context.Context, cmd ConfirmPaymentCommand) (PaymentResult, error) {
	oid := strings.TrimSpace(cmd.OrderOID)
	if oid == "" {
		return PaymentResult{}, ErrPaymentOrderRequired
	}
	sessionID := strings.TrimSpace(cmd.SessionID)
	if strings.EqualFold(sessionID, "null") {
		sessionID = ""
	}
	paypalID := strings.TrimSpace(cmd.PayPalOrderID)
	midtransID := strings.TrimSpace(cmd.MidtransOrderID)

	refs := 0
	for _, ref := range []string{sessionID, paypalID, midtransID} {
		if ref != "" {
			refs++
		}
	}
	if refs > 1 {
		return PaymentResult{}, ErrPaymentInvalidInput
	}

	order, err := s.loadOrder(ctx, oid)
	if err != nil {
		return PaymentResult{}, err
	}
	switch {
	case sessionID != "":
		return s.confirmCard(ctx, order, sessionID)
	case paypalID != "":
		return s.confirmPayPal(ctx, order, paypalID)
	case midtransID != "":
		return s.confirmMidtrans(ctx, order, midtransID)
	case order.PaymentMethod == domain.PaymentMethodCOD:
		return s.confirmCOD(ctx, order)
	}
	return PaymentResult{Status: ResultError, Message: paymentMessageInvalidSession, Rejected: true}, nil
}

func (s *paymentService) ConfirmCard(ctx context.Context, oid string, sessionID string) (PaymentResult, error) {
	order, err := s.loadOrder(ctx, oid)
	if err != nil {
		return PaymentResult{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || strings.EqualFold(sessionID, "null") {
		return PaymentResult{Status: ResultError, Message: paymentMessageInvalidSession, Rejected: true}, nil
	}
	return s.confirmCard(ctx, order, sessionID)
}

func (s *paymentService) ConfirmPayPal(ctx context.Context, oid string, paypalOrderID string) (PaymentResult, error) {
	order, err := s.loadOrder(ctx, oid)
	if err != nil {
		return PaymentResult{}, err
	}
	paypalOrderID = strings.TrimSpace(paypalOrderID)
	if paypalOrderID == "" {
		return PaymentResult{}, ErrPaymentInvalidInput
	}
	return s.confirmPayPal(ctx, order, paypalOrderID)
}

// ConfirmMidtrans verifies the Midtrans transaction. The order oid is the transaction reference
// when midtransOrderID is empty.
func (s *paymentService) ConfirmMidtrans(ctx context.Context, oid string, midtransOrderID string) (PaymentResult, error) {
	order, err := s.loadOrder(ctx, oid)
	if err != nil {
		return PaymentResult{}, err
	}
	reference := strings.TrimSpace(midtransOrderID)
	if reference == "" {
		reference = order.OID
	}
	return s.confirmMidtrans(ctx, order, reference)
}

func (s *paymentService) ConfirmCOD(ctx context.Context, oid string) (PaymentResult, error) {
	order, err := s.loadOrder(ctx, oid)
	if err != nil {
		return PaymentResult{}, err
	}
	return s.confirmCOD(ctx, order)
}

func (s *paymentService) confirmCard(ctx context.Context, order Order, sessionID string) (PaymentResult, error) {
	if !order.Pending() {
		s.record(payments.ProviderStripe, settlementOutcomeAlreadyDone)
		return PaymentResult{Status: ResultInfo, Message: paymentMessageAlreadyDone, Order: &order}, nil
	}
	if stored := order.References.StripeSessionID; stored != "" && stored != sessionID {
		s.record(payments.ProviderStripe, settlementOutcomeMismatch)
		return PaymentResult{Status: ResultError, Message: paymentMessageInvalidSession, Rejected: true}, nil
	}

	verification, err := s.verify(ctx, payments.ProviderStripe, order, sessionID)
	if err != nil {
		return s.verificationFailure(payments.ProviderStripe, err, paymentMessageInvalidSession), nil
	}
	return s.applyVerification(ctx, order, verification, domain.PaymentReferences{StripeSessionID: sessionID})
}

func (s *paymentService) confirmPayPal(ctx context.Context, order Order, paypalOrderID string) (PaymentResult, error) {
	if !order.Pending() {
		s.record(payments.ProviderPayPal, settlementOutcomeAlreadyDone)
		return PaymentResult{Status: ResultInfo, Message: paymentMessageAlreadyDone, Order: &order}, nil
	}
	owner, err := s.orders.FindByPayPalOrder(ctx, paypalOrderID)
	switch {
	case err == nil && owner.ID != order.ID:
		s.record(payments.ProviderPayPal, settlementOutcomeMismatch)
		s.logger(ctx, "payment.paypal.reused", map[string]any{"oid": order.OID, "ownerOID": owner.OID})
		return PaymentResult{Status: ResultError, Message: paymentMessageInvalidPayPal, Rejected: true}, nil
	case err != nil && !isRepoNotFound(err):
		return PaymentResult{}, s.translateRepoError(err)
	}

	verification, err := s.verify(ctx, payments.ProviderPayPal, order, paypalOrderID)
	if err != nil {
		return s.verificationFailure(payments.ProviderPayPal, err, paymentMessageInvalidPayPal), nil
	}
	return s.applyVerification(ctx, order, verification, domain.PaymentReferences{PayPalOrderID: paypalOrderID})
}

func (s *paymentService) confirmMidtrans(ctx context.Context, order Order, reference string) (PaymentResult, error) {
	if !order.Pending() {
		s.record(payments.ProviderMidtrans, settlementOutcomeAlreadyDone)
		return PaymentResult{Status: ResultInfo, Message: paymentMessageAlreadyDone, Order: &order}, nil
	}
	verification, err := s.verify(ctx, payments.ProviderMidtrans, order, reference)
	if err != nil {
		return s.verificationFailure(payments.ProviderMidtrans, err, paymentMessageVerifyFailed), nil
	}
	return s.applyVerification(ctx, order, verification, domain.PaymentReferences{MidtransOrderID: reference})
}

// confirmCOD moves a pending order to processing without gateway verification. The payment
// stays pending until the courier collects it.
func (s *paymentService) confirmCOD(ctx context.Context, order Order) (PaymentResult, error) {
	if !order.Pending() {
		s.record(payments.ProviderCOD, settlementOutcomeAlreadyDone)
		return PaymentResult{Status: ResultInfo, Message: paymentMessageAlreadyDone, Order: &order}, nil
	}
	if s.gateway.Has(payments.ProviderCOD) {
		if _, err := s.verify(ctx, payments.ProviderCOD, order, order.OID); err != nil {
			s.logger(ctx, "payment.cod.verify_failed", map[string]any{"oid": order.OID, "error": err.Error()})
		}
	}
	settled, ok, err := s.settle(ctx, order, domain.PaymentStatusPending, domain.OrderStatusProcessing, domain.PaymentReferences{})
	if err != nil {
		return PaymentResult{}, err
	}
	if !ok {
		s.record(payments.ProviderCOD, settlementOutcomeAlreadyDone)
		return PaymentResult{Status: ResultInfo, Message: paymentMessageAlreadyDone, Order: &settled}, nil
	}
	s.record(payments.ProviderCOD, "processing")
	s.afterSettle(ctx, settled, OrderEventConfirmed)
	return PaymentResult{Status: ResultSuccess, Message: paymentMessageCODPlaced, Order: &settled}, nil
}

// verificationFailure separates "not paid" from "could not determine". A reference created for
// another order or refused by the gateway is rejected; anything else leaves the order pending
// behind a warning so the buyer can retry.
func (s *paymentService) verificationFailure(provider string, err error, invalidMessage string) PaymentResult {
	switch {
	case errors.Is(err, payments.ErrReferenceMismatch):
		s.record(provider, settlementOutcomeMismatch)
		return PaymentResult{Status: ResultError, Message: invalidMessage, Rejected: true}
	case errors.Is(err, payments.ErrReferenceRejected):
		s.record(provider, settlementOutcomeVerifyFailed)
		return PaymentResult{Status: ResultError, Message: paymentMessageVerifyFailed, Rejected: true}
	default:
		s.record(provider, settlementOutcomeVerifyFailed)
		return PaymentResult{Status: ResultWarning, Message: paymentMessageUnverified}
	}
}

func (s *paymentService) applyVerification(ctx context.Context, order Order, verification payments.Verification, refs domain.PaymentReferences) (PaymentResult, error) {
	provider := verification.Provider
	switch verification.Outcome {
	case payments.OutcomePaid:
	case payments.OutcomeUnpaid:
		s.record(provider, string(payments.OutcomeUnpaid))
		return PaymentResult{Status: ResultWarning, Message: paymentMessagePending}, nil
	case payments.OutcomeCancelled:
		s.record(provider, string(payments.OutcomeCancelled))
		return PaymentResult{Status: ResultError, Message: paymentMessageCancelled}, nil
	default:
		s.record(provider, string(payments.OutcomeUnknown))
		return PaymentResult{Status: ResultError, Message: paymentMessageUnprocessable}, nil
	}

	settled, ok, err := s.settle(ctx, order, domain.PaymentStatusPaid, domain.OrderStatusProcessing, refs)
	if err != nil {
		return PaymentResult{}, err
	}
	if !ok {
		s.record(provider, settlementOutcomeAlreadyDone)
		return PaymentResult{Status: ResultInfo, Message: paymentMessageAlreadyDone, Order: &settled}, nil
	}
	s.record(provider, string(payments.OutcomePaid))
	s.afterSettle(ctx, settled, OrderEventPaid)
	return PaymentResult{Status: ResultSuccess, Message: paymentMessagePaid, Order: &settled}, nil
}

// HandleStripeWebhook settles the order of a completed and paid checkout session.
func (s *paymentService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (PaymentResult, error) {
	if s.webhooks == nil {
		return PaymentResult{}, ErrPaymentProviderUnavailable
	}
	event, err := s.webhooks.ParseWebhook(payload, signature)
	if err != nil {
		s.logger(ctx, "payment.webhook.rejected", map[string]any{"error": err.Error()})
		return PaymentResult{}, ErrPaymentInvalidWebhook
	}
	if event.SessionID == "" || event.Outcome != payments.OutcomePaid {
		return PaymentResult{Status: ResultInfo, Message: paymentMessageWebhookIgnored}, nil
	}

	order, err := s.orders.FindByStripeSession(ctx, event.SessionID)
	if err != nil {
		if !isRepoNotFound(err) || event.OrderID == "" {
			return PaymentResult{}, s.translateRepoError(err)
		}
		order, err = s.loadOrder(ctx, event.OrderID)
		if err != nil {
			return PaymentResult{}, err
		}
	}
	if !order.Pending() {
		s.record(payments.ProviderStripe, settlementOutcomeAlreadyDone)
		return PaymentResult{Status: ResultInfo, Message: paymentMessageAlreadyDone, Order: &order}, nil
	}

	s.logger(ctx, "payment.webhook.accepted", map[string]any{"eventID": event.ID, "oid": order.OID})
	result, err := s.applyVerification(ctx, order, payments.Verification{
		Provider:  payments.ProviderStripe,
		Reference: event.SessionID,
		Outcome:   payments.OutcomePaid,
	}, domain.PaymentReferences{StripeSessionID: event.SessionID})
	if err != nil {
		return PaymentResult{}, err
	}
	if result.Status == ResultSuccess {
		result.Message = paymentMessageWebhookHandled
	}
	return result, nil
}

// settle applies the transition at most once. ok is false when another confirmation settled the
// order first; the returned order is then the stored state. A version conflict on a still pending
// order (a coupon landed in between) is retried.
func (s *paymentService) settle(ctx context.Context, order Order, paymentStatus domain.PaymentStatus, orderStatus domain.OrderStatus, refs domain.PaymentReferences) (Order, bool, error) {
	for attempt := 0; attempt < settleAttempts; attempt++ {
		result, settled, conflict, err := s.trySettle(ctx, order.OID, paymentStatus, orderStatus, refs)
		if err != nil {
			return Order{}, false, s.translateRepoError(err)
		}
		if !conflict {
			if settled {
				s.logger(ctx, "payment.settled", map[string]any{
					"oid":           result.OID,
					"paymentStatus": string(result.PaymentStatus),
					"orderStatus":   string(result.OrderStatus),
				})
			}
			return result, settled, nil
		}
		s.logger(ctx, "payment.settle.retry", map[string]any{"oid": order.OID, "attempt": attempt + 1})
	}
	s.logger(ctx, "payment.settle.exhausted", map[string]any{"oid": order.OID})
	return Order{}, false, ErrPaymentUnavailable
}

// trySettle runs one versioned settlement. conflict reports a lost race against a write that left
// the order pending.
func (s *paymentService) trySettle(ctx context.Context, oid string, paymentStatus domain.PaymentStatus, orderStatus domain.OrderStatus, refs domain.PaymentReferences) (result Order, settled bool, conflict bool, err error) {
	err = s.uow.RunInTx(ctx, func(txCtx context.Context) error {
		current, findErr := s.orders.FindByOID(txCtx, oid)
		if findErr != nil {
			return findErr
		}
		if !current.Pending() {
			result = current
			return nil
		}
		updated, settleErr := s.orders.Settle(txCtx, repositories.SettleCommand{
			OrderID:         current.ID,
			ExpectedVersion: current.Version,
			PaymentStatus:   paymentStatus,
			OrderStatus:     orderStatus,
			References:      refs,
			SettledAt:       s.now(),
		})
		if settleErr != nil {
			if isRepoConflict(settleErr) {
				conflict = true
				return nil
			}
			return settleErr
		}
		result = updated
		settled = true
		return nil
	})
	return result, settled, conflict, err
}

// afterSettle runs the post-commit follow-ups. None of them can fail the confirmation.
func (s *paymentService) afterSettle(ctx context.Context, order Order, eventType string) {
	if order.CartID != "" {
		if removed, err := s.carts.DeleteCart(ctx, order.CartID); err != nil {
			s.logger(ctx, "payment.cart_clear_failed", map[string]any{"oid": order.OID, "error": err.Error()})
		} else {
			s.logger(ctx, "payment.cart_cleared", map[string]any{"oid": order.OID, "removed": removed})
		}
	}
	if s.notifier != nil {
		s.tasks.Go(ctx, "payment.notify_paid", func(ctx context.Context) {
			s.notifier.NotifyOrderPaid(ctx, order)
		})
	}
	if s.events != nil {
		s.tasks.Go(ctx, "payment.publish", func(ctx context.Context) {
			publishOrderEvent(ctx, s.events, s.logger, eventType, order, s.now())
		})
	}
}

func (s *paymentService) verify(ctx context.Context, provider string, order Order, reference string) (payments.Verification, error) {
	verification, err := s.gateway.Verify(ctx, payments.PaymentContext{PreferredProvider: provider}, payments.VerifyRequest{
		Reference: reference,
		OrderID:   order.OID,
	})
	if err != nil {
		s.logger(ctx, "payment.verify.failed", map[string]any{
			"provider": provider,
			"oid":      order.OID,
			"error":    err.Error(),
		})
		return payments.Verification{}, err
	}
	if verification.Provider == "" {
		verification.Provider = provider
	}
	return verification, nil
}

func (s *paymentService) loadOrder(ctx context.Context, oid string) (Order, error) {
	oid = strings.TrimSpace(oid)
	if oid == "" {
		return Order{}, ErrPaymentOrderRequired
	}
	order, err := s.orders.FindByOID(ctx, oid)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	return order, nil
}

func (s *paymentService) currencyCode(ctx context.Context) string {
	if s.settings == nil {
		return s.currency
	}
	settings, err := s.settings.Get(ctx)
	if err != nil || strings.TrimSpace(settings.CurrencyCode) == "" {
		return s.currency
	}
	return strings.ToUpper(settings.CurrencyCode)
}

func (s *paymentService) record(provider, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSettlement(provider, outcome)
	}
}

func (s *paymentService) translateRepoError(err error) error {
	if isRepoNotFound(err) {
		return ErrOrderNotFound
	}
	return ErrPaymentUnavailable
}
