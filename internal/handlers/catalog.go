package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/platform/pagination"
	"github.com/upfront-market/api/internal/services"
)

// CatalogHandlers serves the unauthenticated catalog browsing endpoints.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs catalog handlers.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires the /public endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{slug}", h.getProduct)
	r.Get("/categories", h.listCategories)
	r.Get("/shops/{slug}", h.getShop)
	r.Get("/shops/{slug}/products", h.listShopProducts)
}

type categoryPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Image string `json:"image,omitempty"`
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}

	pager, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_pagination", err.Error(), http.StatusBadRequest))
		return
	}
	query := r.URL.Query()
	filter := services.ProductListFilter{
		CategoryID: strings.TrimSpace(query.Get("category")),
		VendorID:   strings.TrimSpace(query.Get("vendor")),
		Pagination: pager,
	}
	if raw := strings.TrimSpace(query.Get("featured")); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "featured must be a boolean", http.StatusBadRequest))
			return
		}
		filter.Featured = &featured
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProductPage(page))
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProduct(product))
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	out := make([]categoryPayload, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryPayload{ID: c.ID, Title: c.Title, Slug: c.Slug, Image: c.Image})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *CatalogHandlers) getShop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	shop, err := h.catalog.GetShop(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildVendor(shop, false))
}

func (h *CatalogHandlers) listShopProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	pager, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_pagination", err.Error(), http.StatusBadRequest))
		return
	}
	page, err := h.catalog.ListShopProducts(ctx, chi.URLParam(r, "slug"), pager)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProductPage(page))
}
