package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/services"
)

const (
	maxPaymentBodySize = 8 * 1024
	maxWebhookBodySize = 256 * 1024

	stripeSignatureHeader = "Stripe-Signature"
)

// PaymentHandlers starts hosted checkouts and confirms payments.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	payments services.PaymentService
	limiter  func(http.Handler) http.Handler
}

// PaymentHandlersOption customises PaymentHandlers.
type PaymentHandlersOption func(*PaymentHandlers)

// WithConfirmationRateLimit throttles POST /payment-success per client address.
func WithConfirmationRateLimit(mw func(http.Handler) http.Handler) PaymentHandlersOption {
	return func(h *PaymentHandlers) {
		h.limiter = mw
	}
}

// NewPaymentHandlers constructs payment handlers.
func NewPaymentHandlers(authn *auth.Authenticator, payments services.PaymentService, opts ...PaymentHandlersOption) *PaymentHandlers {
	h := &PaymentHandlers{
		authn:    authn,
		payments: payments,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the storefront payment endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.OptionalAuth())
	}
	group = group.With(recoverResult)
	group.Post("/checkout/card/{order_oid}", h.startCardCheckout)
	group.Post("/order/cod/{order_oid}", h.confirmCOD)
	if h.limiter != nil {
		group.With(h.limiter).Post("/payment-success", h.confirmPayment)
		return
	}
	group.Post("/payment-success", h.confirmPayment)
}

// WebhookRoutes wires provider callbacks. They authenticate through signatures, not bearer tokens.
func (h *PaymentHandlers) WebhookRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripeWebhook)
}

type cardCheckoutResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

type confirmPaymentRequest struct {
	OrderOID        string `json:"order_oid" validate:"max=32"`
	SessionID       string `json:"session_id" validate:"max=255"`
	PayPalOrderID   string `json:"paypal_order_id" validate:"max=255"`
	MidtransOrderID string `json:"midtrans_order_id" validate:"max=255"`
}

func (h *PaymentHandlers) startCardCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeResultUnavailable(w, "payment")
		return
	}
	checkout, err := h.payments.StartCardCheckout(ctx, chi.URLParam(r, "order_oid"))
	if err != nil {
		writeResultError(w, err)
		return
	}
	w.Header().Set("Location", checkout.RedirectURL)
	httpx.WriteJSON(w, http.StatusSeeOther, cardCheckoutResponse{
		SessionID:   checkout.SessionID,
		RedirectURL: checkout.RedirectURL,
		ExpiresAt:   formatTime(checkout.ExpiresAt),
	})
}

func (h *PaymentHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeResultUnavailable(w, "payment")
		return
	}

	var req confirmPaymentRequest
	if apiErr, err := httpx.DecodeJSON(r, maxPaymentBodySize, &req); err != nil {
		writeResultRequestError(w, apiErr)
		return
	}

	result, err := h.payments.Confirm(ctx, services.ConfirmPaymentCommand{
		OrderOID:        req.OrderOID,
		SessionID:       req.SessionID,
		PayPalOrderID:   req.PayPalOrderID,
		MidtransOrderID: req.MidtransOrderID,
	})
	if err != nil {
		writeResultError(w, err)
		return
	}
	writePaymentResult(w, result)
}

func (h *PaymentHandlers) confirmCOD(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeResultUnavailable(w, "payment")
		return
	}
	result, err := h.payments.ConfirmCOD(ctx, chi.URLParam(r, "order_oid"))
	if err != nil {
		writeResultError(w, err)
		return
	}
	writePaymentResult(w, result)
}

func (h *PaymentHandlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeUnavailable(ctx, w, "payment")
		return
	}
	payload, err := httpx.ReadLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_webhook", "unable to read webhook body", http.StatusBadRequest))
		return
	}
	result, err := h.payments.HandleStripeWebhook(ctx, payload, r.Header.Get(stripeSignatureHeader))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	// Stripe only needs a 2xx; the envelope helps when replaying events by hand.
	httpx.WriteResult(w, http.StatusOK, resultFromPayment(result))
}

func writePaymentResult(w http.ResponseWriter, result services.PaymentResult) {
	status := http.StatusOK
	if result.Rejected {
		status = http.StatusBadRequest
	}
	httpx.WriteResult(w, status, resultFromPayment(result))
}
