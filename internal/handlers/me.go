package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/services"
)

// MeHandlers exposes the signed in buyer's orders and notification inbox.
type MeHandlers struct {
	authn         *auth.Authenticator
	orders        services.OrderService
	notifications services.NotificationService
}

// NewMeHandlers constructs handlers that require an authenticated identity.
func NewMeHandlers(authn *auth.Authenticator, orders services.OrderService, notifications services.NotificationService) *MeHandlers {
	return &MeHandlers{
		authn:         authn,
		orders:        orders,
		notifications: notifications,
	}
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{order_oid}", h.getOrder)
	r.Get("/notifications", h.listNotifications)
	r.Get("/notifications/summary", h.notificationSummary)
	r.Post("/notifications/{notification_id}/seen", h.markNotificationSeen)
}

func (h *MeHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, ok := currentIdentity(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}
	orders, err := h.orders.ListForBuyer(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrders(orders))
}

func (h *MeHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, ok := currentIdentity(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}
	order, err := h.orders.GetForBuyer(ctx, identity.UID, chi.URLParam(r, "order_oid"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrder(order))
}

func (h *MeHandlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(r.Context())
	if !ok {
		writeUnauthenticated(r.Context(), w)
		return
	}
	listNotifications(w, r, h.notifications, domain.ForUser(identity.UID))
}

func (h *MeHandlers) notificationSummary(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(r.Context())
	if !ok {
		writeUnauthenticated(r.Context(), w)
		return
	}
	notificationSummary(w, r, h.notifications, domain.ForUser(identity.UID))
}

func (h *MeHandlers) markNotificationSeen(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(r.Context())
	if !ok {
		writeUnauthenticated(r.Context(), w)
		return
	}
	markNotificationSeen(w, r, h.notifications, domain.ForUser(identity.UID))
}

// The notification endpoints are shared by the buyer and vendor inboxes; only the target differs.

func listNotifications(w http.ResponseWriter, r *http.Request, svc services.NotificationService, target domain.NotificationTarget) {
	ctx := r.Context()
	if svc == nil {
		writeUnavailable(ctx, w, "notification")
		return
	}
	var seen *bool
	if raw := strings.TrimSpace(r.URL.Query().Get("seen")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "seen must be a boolean", http.StatusBadRequest))
			return
		}
		seen = &parsed
	}
	items, err := svc.List(ctx, target, seen)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildNotifications(items))
}

func notificationSummary(w http.ResponseWriter, r *http.Request, svc services.NotificationService, target domain.NotificationTarget) {
	ctx := r.Context()
	if svc == nil {
		writeUnavailable(ctx, w, "notification")
		return
	}
	summary, err := svc.Summary(ctx, target)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, notificationSummaryPayload{
		UnRead: summary.Unread,
		Read:   summary.Read,
		All:    summary.All,
	})
}

func markNotificationSeen(w http.ResponseWriter, r *http.Request, svc services.NotificationService, target domain.NotificationTarget) {
	ctx := r.Context()
	if svc == nil {
		writeUnavailable(ctx, w, "notification")
		return
	}
	notification, err := svc.MarkSeen(ctx, target, chi.URLParam(r, "notification_id"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildNotification(notification))
}
