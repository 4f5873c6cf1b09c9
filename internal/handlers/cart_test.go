package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/services"
)

func newCartRouter(svc services.CartService) chi.Router {
	router := chi.NewRouter()
	NewCartHandlers(nil, svc).Routes(router)
	return router
}

func TestCartHandlersUpsertCreated(t *testing.T) {
	var captured services.UpsertCartLineCommand
	svc := &stubCartService{
		upsertFunc: func(_ context.Context, cmd services.UpsertCartLineCommand) (services.CartLineResult, error) {
			captured = cmd
			user := cmd.UserID
			return services.CartLineResult{
				Outcome: services.CartLineCreated,
				Item: services.CartItem{
					ID:        "line-1",
					CartID:    cmd.CartID,
					UserID:    &user,
					ProductID: cmd.ProductID,
					VendorID:  "vendor-1",
					Qty:       cmd.Qty,
					Amounts: services.LineAmounts{
						Price:    decimal.RequireFromString("10"),
						SubTotal: decimal.RequireFromString("20"),
						Shipping: decimal.RequireFromString("1"),
						TaxFee:   decimal.RequireFromString("2.1"),
						Total:    decimal.RequireFromString("23.1"),
					},
				},
			}, nil
		},
	}

	body := `{"cart_id":"cart-1","product_id":"prod-1","user_id":"someone-else","qty":2,"price":"10.00","country":"Indonesia","size":"L"}`
	req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	rr := httptest.NewRecorder()
	newCartRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-7" {
		t.Fatalf("expected authenticated user to own the line, got %q", captured.UserID)
	}
	if captured.Qty != 2 || !captured.Price.Equal(decimal.RequireFromString("10")) || captured.Size != "L" {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.ShippingAmount != nil {
		t.Fatalf("expected shipping amount to be omitted, got %v", captured.ShippingAmount)
	}

	var resp struct {
		Message string          `json:"message"`
		Item    cartItemPayload `json:"item"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != "Cart created successfully" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if resp.Item.Total != "23.10" || resp.Item.TaxFee != "2.10" || resp.Item.UserID != "user-7" {
		t.Fatalf("unexpected item %#v", resp.Item)
	}
}

func TestCartHandlersUpsertUpdatedAndRemoved(t *testing.T) {
	cases := []struct {
		name    string
		outcome services.CartLineOutcome
		message string
		hasItem bool
	}{
		{name: "updated", outcome: services.CartLineUpdated, message: "Cart updated successfully", hasItem: true},
		{name: "removed", outcome: services.CartLineRemoved, message: "Cart item removed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubCartService{
				upsertFunc: func(_ context.Context, cmd services.UpsertCartLineCommand) (services.CartLineResult, error) {
					if cmd.UserID != "guest-9" {
						t.Fatalf("expected body user id for guests, got %q", cmd.UserID)
					}
					return services.CartLineResult{Outcome: tc.outcome, Item: services.CartItem{ID: "line-1"}}, nil
				},
			}
			body := `{"cart_id":"cart-1","product_id":"prod-1","user_id":"guest-9","qty":0,"price":10}`
			req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(body))
			rr := httptest.NewRecorder()
			newCartRouter(svc).ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}
			var resp map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["message"] != tc.message {
				t.Fatalf("expected message %q, got %v", tc.message, resp["message"])
			}
			if _, ok := resp["item"]; ok != tc.hasItem {
				t.Fatalf("expected item presence %v, got %v", tc.hasItem, ok)
			}
		})
	}
}

func TestCartHandlersUpsertRejectsInvalidPayloads(t *testing.T) {
	cases := []struct {
		name string
		body string
		code string
	}{
		{name: "missing qty", body: `{"cart_id":"cart-1","product_id":"prod-1","price":10}`, code: "validation_failed"},
		{name: "qty too large", body: `{"cart_id":"cart-1","product_id":"prod-1","qty":1001,"price":10}`, code: "validation_failed"},
		{name: "missing cart", body: `{"product_id":"prod-1","qty":1,"price":10}`, code: "validation_failed"},
		{name: "unknown field", body: `{"cart_id":"cart-1","product_id":"prod-1","qty":1,"price":10,"coupon":"X"}`, code: "invalid_json"},
		{name: "empty body", body: ``, code: "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubCartService{
				upsertFunc: func(context.Context, services.UpsertCartLineCommand) (services.CartLineResult, error) {
					t.Fatalf("service must not be called")
					return services.CartLineResult{}, nil
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			newCartRouter(svc).ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rr.Code)
			}
			var resp map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["error"] != tc.code {
				t.Fatalf("expected error %q, got %v", tc.code, resp["error"])
			}
		})
	}
}

func TestCartHandlersUpsertMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{err: services.ErrCartInsufficientStock, status: http.StatusConflict, code: "insufficient_stock"},
		{err: services.ErrCartProductNotFound, status: http.StatusNotFound, code: "product_not_found"},
		{err: services.ErrCartUnavailable, status: http.StatusServiceUnavailable, code: "cart_unavailable"},
	}
	for _, tc := range cases {
		svc := &stubCartService{
			upsertFunc: func(context.Context, services.UpsertCartLineCommand) (services.CartLineResult, error) {
				return services.CartLineResult{}, tc.err
			},
		}
		req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(`{"cart_id":"c","product_id":"p","qty":1,"price":1}`))
		rr := httptest.NewRecorder()
		newCartRouter(svc).ServeHTTP(rr, req)
		if rr.Code != tc.status {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), tc.code) {
			t.Fatalf("%v: expected code %q in %s", tc.err, tc.code, rr.Body.String())
		}
	}
}

func TestCartHandlersListAndTotals(t *testing.T) {
	svc := &stubCartService{
		listFunc: func(_ context.Context, cartID, userID string) ([]services.CartItem, error) {
			if cartID != "cart-1" || userID != "user-3" {
				t.Fatalf("unexpected list args %q %q", cartID, userID)
			}
			return []services.CartItem{{ID: "line-1", CartID: cartID, Qty: 1}, {ID: "line-2", CartID: cartID, Qty: 3}}, nil
		},
		totalsFunc: func(_ context.Context, cartID, userID string) (services.CartTotals, error) {
			if userID != "" {
				t.Fatalf("expected no user for bare totals, got %q", userID)
			}
			return services.CartTotals{
				CartID:    cartID,
				ItemCount: 4,
				Amounts:   services.LineAmounts{SubTotal: decimal.RequireFromString("40"), Total: decimal.RequireFromString("44.5")},
			}, nil
		},
	}
	router := newCartRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cart/cart-1/user-3", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var items []cartItemPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to decode items: %v", err)
	}
	if len(items) != 2 || items[1].Qty != 3 {
		t.Fatalf("unexpected items %#v", items)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cart-detail/cart-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var totals map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &totals); err != nil {
		t.Fatalf("failed to decode totals: %v", err)
	}
	if totals["item_count"] != float64(4) || totals["sub_total"] != "40.00" || totals["total"] != "44.50" {
		t.Fatalf("unexpected totals %v", totals)
	}
}

func TestCartHandlersDeleteLine(t *testing.T) {
	type call struct{ cart, item, user string }
	var calls []call
	svc := &stubCartService{
		deleteFunc: func(_ context.Context, cartID, itemID, userID string) error {
			calls = append(calls, call{cartID, itemID, userID})
			if itemID == "missing" {
				return services.ErrCartItemNotFound
			}
			return nil
		},
	}
	router := newCartRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/cart/cart-1/line-1", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/cart/cart-1/line-2/user-4", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/cart/cart-1/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	want := []call{{"cart-1", "line-1", ""}, {"cart-1", "line-2", "user-4"}, {"cart-1", "missing", ""}}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(calls))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d: expected %#v, got %#v", i, want[i], calls[i])
		}
	}
}

func TestCartHandlersServiceUnavailable(t *testing.T) {
	rr := httptest.NewRecorder()
	newCartRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cart/cart-1", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
