package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const paypalTestOID = "20240501-ABC123"

// newPayPalServer serves the given PayPal order statuses. Orders carry paypalTestOID as custom_id
// unless the id is listed in owners.
func newPayPalServer(t *testing.T, orders map[string]string, owners ...map[string]string) (*httptest.Server, *int32) {
	t.Helper()
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/v2/checkout/orders/")
		status, ok := orders[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		unit := map[string]string{"reference_id": "default", "custom_id": paypalTestOID}
		for _, m := range owners {
			if owner, ok := m[id]; ok {
				unit = map[string]string{"reference_id": owner}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "status": status, "purchase_units": []map[string]string{unit}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func TestPayPalVerifyMapsStatuses(t *testing.T) {
	srv, tokenCalls := newPayPalServer(t, map[string]string{
		"PAY-COMPLETED": "COMPLETED",
		"PAY-APPROVED":  "APPROVED",
		"PAY-EMPTY":     "",
	})
	p, err := NewPayPalProvider(PayPalProviderConfig{ClientID: "client", Secret: "secret", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new paypal provider: %v", err)
	}

	cases := map[string]Outcome{
		"PAY-COMPLETED": OutcomePaid,
		"PAY-APPROVED":  OutcomeUnpaid,
		"PAY-EMPTY":     OutcomeUnknown,
	}
	for ref, want := range cases {
		result, err := p.Verify(context.Background(), VerifyRequest{Reference: ref, OrderID: paypalTestOID})
		if err != nil {
			t.Fatalf("verify %s: %v", ref, err)
		}
		if result.Outcome != want {
			t.Fatalf("verify %s: expected %s, got %s", ref, want, result.Outcome)
		}
	}
	if got := atomic.LoadInt32(tokenCalls); got != 1 {
		t.Fatalf("expected token to be reused, got %d token calls", got)
	}
}

func TestPayPalVerifyUnknownOrderErrors(t *testing.T) {
	srv, _ := newPayPalServer(t, map[string]string{})
	p, err := NewPayPalProvider(PayPalProviderConfig{ClientID: "client", Secret: "secret", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new paypal provider: %v", err)
	}
	_, err = p.Verify(context.Background(), VerifyRequest{Reference: "PAY-MISSING"})
	if !errors.Is(err, ErrReferenceRejected) {
		t.Fatalf("expected ErrReferenceRejected for 404 response, got %v", err)
	}
}

func TestPayPalVerifyRejectsOrderOfAnotherMarketplaceOrder(t *testing.T) {
	srv, _ := newPayPalServer(t,
		map[string]string{"PAY-OTHER": "COMPLETED", "PAY-BARE": "COMPLETED"},
		map[string]string{"PAY-OTHER": "20240101-OTHER1", "PAY-BARE": "default"},
	)
	p, err := NewPayPalProvider(PayPalProviderConfig{ClientID: "client", Secret: "secret", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new paypal provider: %v", err)
	}
	for _, ref := range []string{"PAY-OTHER", "PAY-BARE"} {
		if _, err := p.Verify(context.Background(), VerifyRequest{Reference: ref, OrderID: paypalTestOID}); !errors.Is(err, ErrReferenceMismatch) {
			t.Fatalf("verify %s: expected ErrReferenceMismatch, got %v", ref, err)
		}
	}
}

func TestPayPalVerifyBadCredentialsErrors(t *testing.T) {
	srv, _ := newPayPalServer(t, map[string]string{"PAY-1": "COMPLETED"})
	p, err := NewPayPalProvider(PayPalProviderConfig{ClientID: "client", Secret: "wrong", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new paypal provider: %v", err)
	}
	if _, err := p.Verify(context.Background(), VerifyRequest{Reference: "PAY-1"}); err == nil {
		t.Fatal("expected token exchange failure")
	}
}

func TestNewPayPalProviderRequiresCredentials(t *testing.T) {
	if _, err := NewPayPalProvider(PayPalProviderConfig{ClientID: "client"}); err == nil {
		t.Fatal("expected error for missing secret")
	}
}
