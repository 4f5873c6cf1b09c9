package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/services"
)

const (
	maxCouponBodySize = 4 * 1024
	maxShopBodySize   = 8 * 1024
	maxReplyBodySize  = 8 * 1024
)

type vendorContextKey struct{}

// VendorHandlers serves the vendor dashboard. Every route is scoped to the caller's shop.
type VendorHandlers struct {
	authn         *auth.Authenticator
	vendors       services.VendorService
	coupons       services.CouponService
	notifications services.NotificationService
	reviews       services.ReviewService
}

// VendorHandlersOption customises VendorHandlers.
type VendorHandlersOption func(*VendorHandlers)

// WithVendorReviews enables the /vendor/reviews endpoints.
func WithVendorReviews(reviews services.ReviewService) VendorHandlersOption {
	return func(h *VendorHandlers) {
		h.reviews = reviews
	}
}

// NewVendorHandlers constructs vendor dashboard handlers.
func NewVendorHandlers(authn *auth.Authenticator, vendors services.VendorService, coupons services.CouponService, notifications services.NotificationService, opts ...VendorHandlersOption) *VendorHandlers {
	h := &VendorHandlers{
		authn:         authn,
		vendors:       vendors,
		coupons:       coupons,
		notifications: notifications,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /vendor endpoints onto the provided router.
func (h *VendorHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleVendor))
	}
	r.Use(h.resolveVendor)

	r.Get("/shop", h.getShop)
	r.Patch("/shop", h.updateShop)
	r.Get("/stats", h.stats)
	r.Get("/charts/orders", h.orderChart)
	r.Get("/charts/products", h.productChart)
	r.Get("/products", h.products)
	r.Get("/orders", h.orders)
	r.Get("/orders/{order_oid}", h.order)
	r.Get("/earnings", h.earnings)
	r.Get("/earnings/monthly", h.monthlyEarnings)

	r.Route("/coupons", func(rt chi.Router) {
		rt.Get("/", h.listCoupons)
		rt.Post("/", h.createCoupon)
		rt.Get("/stats", h.couponStats)
		rt.Get("/{coupon_id}", h.getCoupon)
		rt.Patch("/{coupon_id}", h.updateCoupon)
		rt.Delete("/{coupon_id}", h.deleteCoupon)
	})

	r.Get("/reviews", h.listReviews)
	r.Get("/reviews/{review_id}", h.getReview)
	r.Patch("/reviews/{review_id}", h.updateReview)

	r.Get("/notifications", h.listNotifications)
	r.Get("/notifications/summary", h.notificationSummary)
	r.Post("/notifications/{notification_id}/seen", h.markNotificationSeen)
}

// resolveVendor loads the caller's shop once per request.
func (h *VendorHandlers) resolveVendor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.vendors == nil {
			writeUnavailable(ctx, w, "vendor")
			return
		}
		identity, ok := currentIdentity(ctx)
		if !ok {
			writeUnauthenticated(ctx, w)
			return
		}
		vendor, err := h.vendors.ResolveVendor(ctx, identity.UID, identity.VendorID)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, vendorContextKey{}, vendor)))
	})
}

func vendorFromContext(ctx context.Context) domain.Vendor {
	vendor, _ := ctx.Value(vendorContextKey{}).(domain.Vendor)
	return vendor
}

type vendorStatsPayload struct {
	Products int64  `json:"products"`
	Orders   int64  `json:"orders"`
	Revenue  string `json:"revenue"`
}

type monthlyCountPayload struct {
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

type earningsPayload struct {
	MonthlyRevenue string `json:"monthly_revenue"`
	TotalRevenue   string `json:"total_revenue"`
}

type monthlyEarningPayload struct {
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	SalesCount   int64  `json:"sales_count"`
	TotalEarning string `json:"total_earning"`
}

type couponStatsPayload struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

type createCouponRequest struct {
	Code     string `json:"code" validate:"required,max=64"`
	Discount int    `json:"discount" validate:"gte=1,lte=100"`
	Active   *bool  `json:"active"`
}

type updateCouponRequest struct {
	Discount *int  `json:"discount" validate:"omitempty,gte=1,lte=100"`
	Active   *bool `json:"active"`
}

type updateShopRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=120"`
	Email       *string `json:"email" validate:"omitempty,email,max=254"`
	Mobile      *string `json:"mobile" validate:"omitempty,max=32"`
	Image       *string `json:"image" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type updateReviewRequest struct {
	Reply  *string `json:"reply"`
	Active *bool   `json:"active"`
}

type couponCreatedResponse struct {
	Message string        `json:"message"`
	Coupon  couponPayload `json:"coupon"`
}

func (h *VendorHandlers) getShop(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, buildVendor(vendorFromContext(r.Context()), true))
}

func (h *VendorHandlers) updateShop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateShopRequest
	if apiErr, err := httpx.DecodeJSON(r, maxShopBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, apiErr)
		return
	}
	vendor, err := h.vendors.UpdateShop(ctx, services.UpdateShopCommand{
		VendorID:    vendorFromContext(ctx).ID,
		Name:        req.Name,
		Email:       req.Email,
		Mobile:      req.Mobile,
		Image:       req.Image,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildVendor(vendor, true))
}

func (h *VendorHandlers) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.vendors.Stats(ctx, vendorFromContext(ctx).ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, vendorStatsPayload{
		Products: stats.Products,
		Orders:   stats.Orders,
		Revenue:  money(stats.Revenue),
	})
}

func (h *VendorHandlers) orderChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := h.vendors.OrderChart(ctx, vendorFromContext(ctx).ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildMonthlyCounts(counts))
}

func (h *VendorHandlers) productChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := h.vendors.ProductChart(ctx, vendorFromContext(ctx).ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildMonthlyCounts(counts))
}

func (h *VendorHandlers) products(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var status *services.ProductStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed := services.ProductStatus(strings.ToLower(raw))
		status = &parsed
	}
	products, err := h.vendors.Products(ctx, vendorFromContext(ctx).ID, status)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProducts(products))
}

func (h *VendorHandlers) orders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orders, err := h.vendors.Orders(ctx, vendorFromContext(ctx).ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrders(orders))
}

func (h *VendorHandlers) order(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.vendors.Order(ctx, vendorFromContext(ctx).ID, chi.URLParam(r, "order_oid"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrder(order))
}

func (h *VendorHandlers) earnings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	earnings, err := h.vendors.Earnings(ctx, vendorFromContext(ctx).ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, earningsPayload{
		MonthlyRevenue: money(earnings.MonthlyRevenue),
		TotalRevenue:   money(earnings.TotalRevenue),
	})
}

func (h *VendorHandlers) monthlyEarnings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rows, err := h.vendors.MonthlyEarnings(ctx, vendorFromContext(ctx).ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	out := make([]monthlyEarningPayload, 0, len(rows))
	for _, row := range rows {
		out = append(out, monthlyEarningPayload{
			Year:         row.Year,
			Month:        row.Month,
			SalesCount:   row.SalesCount,
			TotalEarning: money(row.TotalEarning),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *VendorHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon")
		return
	}
	coupons, err := h.coupons.ListVendorCoupons(ctx, vendorFromContext(ctx).ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	out := make([]couponPayload, 0, len(coupons))
	for _, c := range coupons {
		out = append(out, buildCoupon(c))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *VendorHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon")
		return
	}
	var req createCouponRequest
	if apiErr, err := httpx.DecodeJSON(r, maxCouponBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, apiErr)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	coupon, err := h.coupons.CreateVendorCoupon(ctx, services.CreateCouponCommand{
		VendorID: vendorFromContext(ctx).ID,
		Code:     req.Code,
		Discount: req.Discount,
		Active:   active,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, couponCreatedResponse{
		Message: "Coupon created successfully",
		Coupon:  buildCoupon(coupon),
	})
}

func (h *VendorHandlers) couponStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon")
		return
	}
	stats, err := h.coupons.VendorCouponStats(ctx, vendorFromContext(ctx).ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, couponStatsPayload{Total: stats.Total, Active: stats.Active})
}

func (h *VendorHandlers) getCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon")
		return
	}
	coupon, err := h.coupons.GetVendorCoupon(ctx, vendorFromContext(ctx).ID, chi.URLParam(r, "coupon_id"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCoupon(coupon))
}

func (h *VendorHandlers) updateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon")
		return
	}
	var req updateCouponRequest
	if apiErr, err := httpx.DecodeJSON(r, maxCouponBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, apiErr)
		return
	}
	coupon, err := h.coupons.UpdateVendorCoupon(ctx, services.UpdateCouponCommand{
		VendorID: vendorFromContext(ctx).ID,
		CouponID: chi.URLParam(r, "coupon_id"),
		Discount: req.Discount,
		Active:   req.Active,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCoupon(coupon))
}

func (h *VendorHandlers) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon")
		return
	}
	if err := h.coupons.DeleteVendorCoupon(ctx, vendorFromContext(ctx).ID, chi.URLParam(r, "coupon_id")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *VendorHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	reviews, err := h.reviews.ListForVendor(ctx, vendorFromContext(ctx).ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReviews(reviews, true))
}

func (h *VendorHandlers) getReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	review, err := h.reviews.GetForVendor(ctx, vendorFromContext(ctx).ID, chi.URLParam(r, "review_id"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReview(review, true))
}

func (h *VendorHandlers) updateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	var req updateReviewRequest
	if apiErr, err := httpx.DecodeJSON(r, maxReplyBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, apiErr)
		return
	}
	review, err := h.reviews.UpdateForVendor(ctx, services.UpdateReviewCommand{
		VendorID: vendorFromContext(ctx).ID,
		ReviewID: chi.URLParam(r, "review_id"),
		Reply:    req.Reply,
		Active:   req.Active,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReview(review, true))
}

func (h *VendorHandlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	listNotifications(w, r, h.notifications, domain.ForVendor(vendorFromContext(r.Context()).ID))
}

func (h *VendorHandlers) notificationSummary(w http.ResponseWriter, r *http.Request) {
	notificationSummary(w, r, h.notifications, domain.ForVendor(vendorFromContext(r.Context()).ID))
}

func (h *VendorHandlers) markNotificationSeen(w http.ResponseWriter, r *http.Request) {
	markNotificationSeen(w, r, h.notifications, domain.ForVendor(vendorFromContext(r.Context()).ID))
}

func buildMonthlyCounts(counts []domain.MonthlyCount) []monthlyCountPayload {
	out := make([]monthlyCountPayload, 0, len(counts))
	for _, c := range counts {
		out = append(out, monthlyCountPayload{Month: c.Month, Count: c.Count})
	}
	return out
}
