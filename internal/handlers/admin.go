package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/services"
)

const maxAdminBodySize = 4 * 1024

// AdminHandlers manages the marketplace settings and tax table.
type AdminHandlers struct {
	authn    *auth.Authenticator
	settings services.SettingsService
}

// NewAdminHandlers constructs admin handlers. All routes require the admin role.
func NewAdminHandlers(authn *auth.Authenticator, settings services.SettingsService) *AdminHandlers {
	return &AdminHandlers{
		authn:    authn,
		settings: settings,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleAdmin))
	}
	r.Get("/settings", h.getSettings)
	r.Put("/settings", h.updateSettings)
	r.Get("/taxes", h.listTaxes)
	r.Put("/taxes/{country}", h.upsertTax)
}

type settingsPayload struct {
	ServiceFeePercent string `json:"service_fee_percent"`
	CurrencyCode      string `json:"currency_code"`
	CurrencySymbol    string `json:"currency_symbol"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

type updateSettingsRequest struct {
	ServiceFeePercent *decimal.Decimal `json:"service_fee_percent"`
	CurrencyCode      *string          `json:"currency_code" validate:"omitempty,len=3"`
	CurrencySymbol    *string          `json:"currency_symbol" validate:"omitempty,max=8"`
}

type taxPayload struct {
	Country   string `json:"country"`
	Rate      string `json:"rate"`
	Active    bool   `json:"active"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type upsertTaxRequest struct {
	Rate   decimal.Decimal `json:"rate"`
	Active *bool           `json:"active"`
}

func buildSettings(s services.SiteSettings) settingsPayload {
	return settingsPayload{
		ServiceFeePercent: s.ServiceFeePercent.String(),
		CurrencyCode:      s.CurrencyCode,
		CurrencySymbol:    s.CurrencySymbol,
		UpdatedAt:         formatTime(s.UpdatedAt),
	}
}

func buildTax(t services.Tax) taxPayload {
	return taxPayload{
		Country:   t.Country,
		Rate:      t.Rate.String(),
		Active:    t.Active,
		UpdatedAt: formatTime(t.UpdatedAt),
	}
}

func (h *AdminHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		writeUnavailable(ctx, w, "settings")
		return
	}
	settings, err := h.settings.Get(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildSettings(settings))
}

func (h *AdminHandlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		writeUnavailable(ctx, w, "settings")
		return
	}
	var req updateSettingsRequest
	if apiErr, err := httpx.DecodeJSON(r, maxAdminBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, apiErr)
		return
	}
	settings, err := h.settings.Update(ctx, services.UpdateSettingsCommand{
		ServiceFeePercent: req.ServiceFeePercent,
		CurrencyCode:      req.CurrencyCode,
		CurrencySymbol:    req.CurrencySymbol,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildSettings(settings))
}

func (h *AdminHandlers) listTaxes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		writeUnavailable(ctx, w, "settings")
		return
	}
	taxes, err := h.settings.ListTaxes(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	out := make([]taxPayload, 0, len(taxes))
	for _, t := range taxes {
		out = append(out, buildTax(t))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *AdminHandlers) upsertTax(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		writeUnavailable(ctx, w, "settings")
		return
	}
	var req upsertTaxRequest
	if apiErr, err := httpx.DecodeJSON(r, maxAdminBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, apiErr)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	tax, err := h.settings.UpsertTax(ctx, services.UpsertTaxCommand{
		Country: chi.URLParam(r, "country"),
		Rate:    req.Rate,
		Active:  active,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildTax(tax))
}
