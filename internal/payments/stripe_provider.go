package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Logger defines the logging contract for provider operations.
type Logger func(ctx context.Context, event string, fields map[string]any)

// ErrInvalidWebhook is returned when a webhook payload fails signature verification or decoding.
var ErrInvalidWebhook = errors.New("payments: invalid webhook")

const stripeEventCheckoutCompleted = "checkout.session.completed"

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	Logger        Logger
	Clock         func() time.Time
	Clients       *stripeClients
}

// StripeProvider implements card payments through Stripe Checkout.
type StripeProvider struct {
	api           stripeClients
	webhookSecret string
	clock         func() time.Time
	logger        Logger
}

// StripeWebhookEvent is the decoded subset of a Stripe webhook the marketplace acts on.
type StripeWebhookEvent struct {
	ID        string
	Type      string
	SessionID string
	OrderID   string
	Outcome   Outcome
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{sessions: sc.CheckoutSessions}
	}
	if clients.sessions == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api:           clients,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (p *StripeProvider) Name() string { return ProviderStripe }

// CreateCheckoutSession creates a Stripe Checkout session in payment mode.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if p == nil {
		return CheckoutSession{}, errors.New("stripe: provider is nil")
	}
	if len(req.Items) == 0 {
		return CheckoutSession{}, errors.New("stripe: at least one line item is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.OrderID != "" {
		params.ClientReferenceID = stripe.String(req.OrderID)
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		line := &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(max64(item.Quantity, 1)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(defaultString(item.Currency, req.Currency))),
				UnitAmount: stripe.Int64(item.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(defaultString(item.Name, "Order item")),
				},
			},
		}
		if item.Description != "" {
			line.PriceData.ProductData.Description = stripe.String(item.Description)
		}
		lineItems = append(lineItems, line)
	}
	params.LineItems = lineItems

	session, err := p.api.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId": session.ID,
		"orderId":   req.OrderID,
		"currency":  session.Currency,
	})

	expiresAt := p.clock().Add(24 * time.Hour)
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}

	return CheckoutSession{
		ID:          session.ID,
		Provider:    ProviderStripe,
		RedirectURL: session.URL,
		ExpiresAt:   expiresAt,
	}, nil
}

// Verify retrieves the checkout session and normalises its payment state.
func (p *StripeProvider) Verify(ctx context.Context, req VerifyRequest) (Verification, error) {
	if p == nil {
		return Verification{}, errors.New("stripe: provider is nil")
	}
	sessionID := strings.TrimSpace(req.Reference)
	if sessionID == "" {
		return Verification{}, errors.New("stripe: session id is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := p.api.sessions.Get(sessionID, params)
	if err != nil {
		if stripeRejected(err) {
			return Verification{}, fmt.Errorf("%w: %w", ErrReferenceRejected, err)
		}
		return Verification{}, fmt.Errorf("stripe: retrieve checkout session: %w", err)
	}
	if owner := stripeSessionOrder(session); req.OrderID != "" && owner != req.OrderID {
		p.logger(ctx, "payments.stripe.session.mismatch", map[string]any{
			"sessionId":    session.ID,
			"orderId":      req.OrderID,
			"sessionOrder": owner,
		})
		return Verification{}, fmt.Errorf("%w: stripe session %s", ErrReferenceMismatch, session.ID)
	}

	outcome := stripeSessionOutcome(session)
	p.logger(ctx, "payments.stripe.session.verified", map[string]any{
		"sessionId":     session.ID,
		"orderId":       req.OrderID,
		"status":        session.Status,
		"paymentStatus": session.PaymentStatus,
		"outcome":       outcome,
	})
	return Verification{
		Provider:  ProviderStripe,
		Reference: session.ID,
		Outcome:   outcome,
		RawStatus: string(session.PaymentStatus),
	}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout session events.
// Events of other types are returned with an empty SessionID.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (StripeWebhookEvent, error) {
	if p == nil {
		return StripeWebhookEvent{}, errors.New("stripe: provider is nil")
	}
	if p.webhookSecret == "" {
		return StripeWebhookEvent{}, fmt.Errorf("%w: webhook secret not configured", ErrInvalidWebhook)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return StripeWebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	result := StripeWebhookEvent{ID: event.ID, Type: string(event.Type), Outcome: OutcomeUnknown}
	if string(event.Type) != stripeEventCheckoutCompleted || event.Data == nil {
		return result, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return StripeWebhookEvent{}, fmt.Errorf("%w: decode checkout session: %v", ErrInvalidWebhook, err)
	}
	result.SessionID = session.ID
	result.OrderID = stripeSessionOrder(&session)
	result.Outcome = stripeSessionOutcome(&session)
	return result, nil
}

// stripeSessionOrder returns the marketplace order a checkout session was created for.
func stripeSessionOrder(session *stripe.CheckoutSession) string {
	if session == nil {
		return ""
	}
	if ref := strings.TrimSpace(session.ClientReferenceID); ref != "" {
		return ref
	}
	if session.Metadata != nil {
		return strings.TrimSpace(session.Metadata["order_oid"])
	}
	return ""
}

// stripeRejected reports API answers that settle the question: the session does not exist or the
// id is malformed. Auth, rate limit and 5xx errors leave the payment state undetermined.
func stripeRejected(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	if stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return true
	}
	return stripeErr.HTTPStatusCode == http.StatusBadRequest || stripeErr.HTTPStatusCode == http.StatusNotFound
}

func stripeSessionOutcome(session *stripe.CheckoutSession) Outcome {
	if session == nil {
		return OutcomeUnknown
	}
	if session.Status == stripe.CheckoutSessionStatusExpired {
		return OutcomeCancelled
	}
	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return OutcomePaid
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		return OutcomeUnpaid
	}
	return OutcomeUnknown
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
