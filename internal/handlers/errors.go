package handlers

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/platform/requestctx"
	"github.com/upfront-market/api/internal/services"
)

type serviceErrorMapping struct {
	target  error
	code    string
	message string
	status  int
}

// serviceErrors maps service sentinels to API errors. The first match wins.
var serviceErrors = []serviceErrorMapping{
	{services.ErrCartInvalidInput, "invalid_request", "", http.StatusBadRequest},
	{services.ErrCartItemNotFound, "cart_item_not_found", "Cart item not found", http.StatusNotFound},
	{services.ErrCartProductNotFound, "product_not_found", "Product not found", http.StatusNotFound},
	{services.ErrCartProductUnavailable, "product_unavailable", "Product is not available", http.StatusConflict},
	{services.ErrCartInsufficientStock, "insufficient_stock", "Insufficient stock for product", http.StatusConflict},
	{services.ErrCartConflict, "cart_conflict", "Cart was modified concurrently; retry", http.StatusConflict},
	{services.ErrCartUnavailable, "cart_unavailable", "Cart service is unavailable", http.StatusServiceUnavailable},

	{services.ErrOrderInvalidInput, "invalid_request", "", http.StatusBadRequest},
	{services.ErrOrderCartEmpty, "cart_empty", "Cart is empty", http.StatusBadRequest},
	{services.ErrOrderNotFound, "order_not_found", "Order not found", http.StatusNotFound},
	{services.ErrOrderConflict, "order_conflict", "Unable to allocate an order id; retry", http.StatusConflict},
	{services.ErrOrderUnavailable, "order_unavailable", "Order service is unavailable", http.StatusServiceUnavailable},

	{services.ErrCouponInvalidInput, "invalid_request", "", http.StatusBadRequest},
	{services.ErrCouponNotFound, "coupon_not_found", "Coupon not found", http.StatusNotFound},
	{services.ErrCouponCodeTaken, "coupon_code_taken", "Coupon code already exists", http.StatusConflict},
	{services.ErrCouponConflict, "coupon_conflict", "Order was modified concurrently; retry", http.StatusConflict},
	{services.ErrCouponUnavailable, "coupon_unavailable", "Coupon service is unavailable", http.StatusServiceUnavailable},

	{services.ErrPaymentOrderRequired, "order_required", "Order ID is required", http.StatusBadRequest},
	{services.ErrPaymentInvalidInput, "invalid_request", "Provide at most one payment reference", http.StatusBadRequest},
	{services.ErrPaymentOrderNotPending, "order_not_pending", "Payment has already been processed", http.StatusConflict},
	{services.ErrPaymentInvalidWebhook, "invalid_webhook", "Invalid webhook payload or signature", http.StatusBadRequest},
	{services.ErrPaymentProviderUnavailable, "payment_provider_unavailable", "Payment provider is unavailable", http.StatusServiceUnavailable},
	{services.ErrPaymentUnavailable, "payment_unavailable", unexpectedErrorMessage, http.StatusServiceUnavailable},

	{services.ErrNotificationInvalidInput, "invalid_request", "", http.StatusBadRequest},
	{services.ErrNotificationNotFound, "notification_not_found", "Notification not found", http.StatusNotFound},
	{services.ErrNotificationUnavailable, "notification_unavailable", "Notification service is unavailable", http.StatusServiceUnavailable},

	{services.ErrVendorInvalidInput, "invalid_request", "", http.StatusBadRequest},
	{services.ErrVendorNotFound, "vendor_not_found", "Vendor not found", http.StatusNotFound},
	{services.ErrVendorUnavailable, "vendor_unavailable", "Vendor service is unavailable", http.StatusServiceUnavailable},

	{services.ErrReviewInvalidInput, "invalid_request", "", http.StatusBadRequest},
	{services.ErrReviewNotFound, "review_not_found", "Review not found", http.StatusNotFound},
	{services.ErrReviewProductNotFound, "product_not_found", "Product not found", http.StatusNotFound},
	{services.ErrReviewUnavailable, "review_unavailable", "Review service is unavailable", http.StatusServiceUnavailable},

	{services.ErrCatalogInvalidInput, "invalid_request", "", http.StatusBadRequest},
	{services.ErrCatalogNotFound, "not_found", "Not found", http.StatusNotFound},
	{services.ErrCatalogUnavailable, "catalog_unavailable", "Catalog service is unavailable", http.StatusServiceUnavailable},

	{services.ErrSettingsInvalidInput, "invalid_request", "", http.StatusBadRequest},
	{services.ErrSettingsUnavailable, "settings_unavailable", "Settings service is unavailable", http.StatusServiceUnavailable},

	{services.ErrPricingInvalidInput, "invalid_request", "", http.StatusBadRequest},
	{services.ErrPricingProductNotFound, "product_not_found", "Product not found", http.StatusNotFound},
	{services.ErrPricingUnavailable, "pricing_unavailable", "Pricing is unavailable", http.StatusServiceUnavailable},
}

// unexpectedErrorMessage is the only text shown for failures the API does not classify.
const unexpectedErrorMessage = "An unexpected error occurred"

func lookupServiceError(err error) (code, message string, status int) {
	for _, m := range serviceErrors {
		if !errors.Is(err, m.target) {
			continue
		}
		message = m.message
		if message == "" {
			message = err.Error()
		}
		return m.code, message, m.status
	}
	return "internal_error", unexpectedErrorMessage, http.StatusInternalServerError
}

// writeServiceError writes the API error matching err. Unknown errors become 500 without leaking
// their text.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	code, message, status := lookupServiceError(err)
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}

// writeResultError renders failures of the checkout, coupon and payment endpoints as a Result
// tagged "error", keeping the mapped HTTP status.
func writeResultError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	_, message, status := lookupServiceError(err)
	httpx.WriteResult(w, status, httpx.Result{Status: httpx.ResultError, Message: message})
}

func writeResultRequestError(w http.ResponseWriter, apiErr httpx.Error) {
	httpx.WriteResult(w, apiErr.Status, httpx.Result{Status: httpx.ResultError, Message: apiErr.Message})
}

func writeResultUnavailable(w http.ResponseWriter, name string) {
	httpx.WriteResult(w, http.StatusServiceUnavailable, httpx.Result{Status: httpx.ResultError, Message: name + " service is unavailable"})
}

// recoverResult turns a panic on a Result endpoint into {status:"error"} so the storefront can
// still render the page. The global recovery middleware handles every other route.
func recoverResult(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			requestctx.Logger(r.Context()).Error("panic recovered",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			httpx.WriteResult(w, http.StatusInternalServerError, httpx.Result{Status: httpx.ResultError, Message: unexpectedErrorMessage})
		}()
		next.ServeHTTP(w, r)
	})
}

func writeUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_unavailable", name+" service is unavailable", http.StatusServiceUnavailable))
}

func writeUnauthenticated(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
}
