package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/services"
)

const maxOrderBodySize = 16 * 1024

// OrderHandlers serves checkout order creation, order lookup and coupon application.
type OrderHandlers struct {
	authn         *auth.Authenticator
	orders        services.OrderService
	coupons       services.CouponService
	couponLimiter func(http.Handler) http.Handler
}

// OrderHandlersOption customises OrderHandlers.
type OrderHandlersOption func(*OrderHandlers)

// WithCouponService enables POST /coupon.
func WithCouponService(coupons services.CouponService) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.coupons = coupons
	}
}

// WithCouponRateLimit throttles coupon attempts per client address.
func WithCouponRateLimit(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.couponLimiter = mw
	}
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the order endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.OptionalAuth())
	}
	group.Post("/orders", h.createOrder)
	group.Get("/orders/{order_oid}", h.getOrder)
	if h.couponLimiter != nil {
		group.With(recoverResult, h.couponLimiter).Post("/coupon", h.applyCoupon)
		return
	}
	group.With(recoverResult).Post("/coupon", h.applyCoupon)
}

type createOrderRequest struct {
	CartID        string `json:"cart_id" validate:"required,max=64"`
	UserID        string `json:"user_id" validate:"max=128"`
	FullName      string `json:"full_name" validate:"required,max=100"`
	Email         string `json:"email" validate:"required,email,max=254"`
	Mobile        string `json:"mobile" validate:"required,max=100"`
	Address       string `json:"address" validate:"max=100"`
	City          string `json:"city" validate:"max=100"`
	State         string `json:"state" validate:"max=100"`
	Country       string `json:"country" validate:"max=100"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=card paypal midtrans cod"`
}

type createOrderResponse struct {
	Message  string `json:"message"`
	OrderOID string `json:"order_oid"`
}

type applyCouponRequest struct {
	OrderOID   string `json:"order_oid" validate:"required,max=32"`
	CouponCode string `json:"coupon_code" validate:"required,max=64"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}

	var req createOrderRequest
	if apiErr, err := httpx.DecodeJSON(r, maxOrderBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, apiErr)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if identity, ok := currentIdentity(ctx); ok {
		userID = identity.UID
	}

	order, err := h.orders.CreateFromCart(ctx, services.CreateOrderCommand{
		CartID:        req.CartID,
		UserID:        userID,
		FullName:      req.FullName,
		Email:         req.Email,
		Mobile:        req.Mobile,
		Address:       req.Address,
		City:          req.City,
		State:         req.State,
		Country:       req.Country,
		PaymentMethod: services.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, createOrderResponse{
		Message:  "Order Created Successfully",
		OrderOID: order.OID,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	order, err := h.orders.GetByOID(ctx, chi.URLParam(r, "order_oid"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrder(order))
}

func (h *OrderHandlers) applyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeResultUnavailable(w, "coupon")
		return
	}

	var req applyCouponRequest
	if apiErr, err := httpx.DecodeJSON(r, maxOrderBodySize, &req); err != nil {
		writeResultRequestError(w, apiErr)
		return
	}

	result, err := h.coupons.Apply(ctx, services.ApplyCouponCommand{
		OrderOID: req.OrderOID,
		Code:     req.CouponCode,
	})
	if err != nil {
		writeResultError(w, err)
		return
	}

	out := httpx.Result{Status: httpx.ResultStatus(result.Status), Message: result.Message}
	if result.Order != nil {
		out.Data = map[string]any{
			"discounted_items": result.DiscountedItems,
			"order":            buildOrder(*result.Order),
		}
	}
	httpx.WriteResult(w, http.StatusOK, out)
}
