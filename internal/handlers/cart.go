package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/services"
)

const maxCartBodySize = 16 * 1024

var cartLineMessages = map[services.CartLineOutcome]string{
	services.CartLineCreated: "Cart created successfully",
	services.CartLineUpdated: "Cart updated successfully",
	services.CartLineRemoved: "Cart item removed",
}

// CartHandlers exposes the guest friendly cart endpoints.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs cart handlers. A bearer token is optional; when present it owns the cart.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart and /cart-detail endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.OptionalAuth())
	}
	group.Post("/cart", h.upsertLine)
	group.Get("/cart/{cart_id}", h.listLines)
	// The second segment is the user id for reads and the item id for deletes.
	group.Get("/cart/{cart_id}/{ref}", h.listLines)
	group.Delete("/cart/{cart_id}/{ref}", h.deleteLine)
	group.Delete("/cart/{cart_id}/{ref}/{user_id}", h.deleteLine)
	group.Get("/cart-detail/{cart_id}", h.totals)
	group.Get("/cart-detail/{cart_id}/{ref}", h.totals)
}

type upsertCartLineRequest struct {
	CartID         string           `json:"cart_id" validate:"required,max=64"`
	ProductID      string           `json:"product_id" validate:"required,max=64"`
	UserID         string           `json:"user_id" validate:"max=128"`
	Qty            *int             `json:"qty" validate:"required,gte=0,lte=1000"`
	Price          decimal.Decimal  `json:"price"`
	ShippingAmount *decimal.Decimal `json:"shipping_amount"`
	Country        string           `json:"country" validate:"max=64"`
	Size           string           `json:"size" validate:"max=100"`
	Color          string           `json:"color" validate:"max=100"`
}

type cartLineResponse struct {
	Message string           `json:"message"`
	Item    *cartItemPayload `json:"item,omitempty"`
}

type cartTotalsResponse struct {
	CartID    string `json:"cart_id"`
	ItemCount int    `json:"item_count"`
	amountsPayload
}

func (h *CartHandlers) upsertLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}

	var req upsertCartLineRequest
	if apiErr, err := httpx.DecodeJSON(r, maxCartBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, apiErr)
		return
	}

	result, err := h.carts.UpsertLine(ctx, services.UpsertCartLineCommand{
		CartID:         req.CartID,
		ProductID:      req.ProductID,
		UserID:         h.ownerID(r, req.UserID),
		Qty:            *req.Qty,
		Price:          req.Price,
		ShippingAmount: req.ShippingAmount,
		Country:        req.Country,
		Size:           req.Size,
		Color:          req.Color,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := cartLineResponse{Message: cartLineMessages[result.Outcome]}
	status := http.StatusOK
	if result.Outcome != services.CartLineRemoved {
		item := buildCartItem(result.Item)
		resp.Item = &item
	}
	if result.Outcome == services.CartLineCreated {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, resp)
}

func (h *CartHandlers) listLines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	lines, err := h.carts.ListLines(ctx, chi.URLParam(r, "cart_id"), h.ownerID(r, chi.URLParam(r, "ref")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]cartItemPayload, 0, len(lines))
	for _, line := range lines {
		items = append(items, buildCartItem(line))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *CartHandlers) totals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	totals, err := h.carts.Totals(ctx, chi.URLParam(r, "cart_id"), h.ownerID(r, chi.URLParam(r, "ref")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cartTotalsResponse{
		CartID:         totals.CartID,
		ItemCount:      totals.ItemCount,
		amountsPayload: buildAmounts(totals.Amounts),
	})
}

func (h *CartHandlers) deleteLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	err := h.carts.DeleteLine(ctx, chi.URLParam(r, "cart_id"), chi.URLParam(r, "ref"), h.ownerID(r, chi.URLParam(r, "user_id")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownerID prefers the authenticated user over the client supplied id.
func (h *CartHandlers) ownerID(r *http.Request, supplied string) string {
	if identity, ok := currentIdentity(r.Context()); ok {
		return identity.UID
	}
	return strings.TrimSpace(supplied)
}
