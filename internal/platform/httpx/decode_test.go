package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type couponPayload struct {
	OrderOID   string `json:"order_oid" validate:"required"`
	CouponCode string `json:"coupon_code" validate:"required,max=32"`
	Qty        int    `json:"qty" validate:"gte=0,lte=10"`
}

func TestDecodeJSONValid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"order_oid":"20240101-ABC123","coupon_code":"SAVE10","qty":2}`))
	var payload couponPayload
	if _, err := DecodeJSON(req, 1024, &payload); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if payload.CouponCode != "SAVE10" || payload.Qty != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestDecodeJSONReportsFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"coupon_code":"SAVE10","qty":11}`))
	var payload couponPayload
	apiErr, err := DecodeJSON(req, 1024, &payload)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != "validation_failed" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	fields, _ := apiErr.Details["fields"].(map[string]string)
	if fields["order_oid"] != "order_oid is required" {
		t.Fatalf("unexpected order_oid message %q", fields["order_oid"])
	}
	if fields["qty"] != "qty must be at most 10" {
		t.Fatalf("unexpected qty message %q", fields["qty"])
	}
}

func TestDecodeJSONRejectsUnknownFieldsAndLargeBodies(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"order_oid":"x","coupon_code":"y","extra":1}`))
	var payload couponPayload
	if apiErr, err := DecodeJSON(req, 1024, &payload); err == nil || apiErr.Code != "invalid_json" {
		t.Fatalf("expected invalid_json, got %+v (%v)", apiErr, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 32)))
	apiErr, err := DecodeJSON(req, 16, &payload)
	if !errors.Is(err, ErrBodyTooLarge) || apiErr.Status != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected payload too large, got %+v (%v)", apiErr, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("   "))
	if _, err := DecodeJSON(req, 16, &payload); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected empty body error, got %v", err)
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), rec, NewError("order_not_found", "Order not found", http.StatusNotFound).WithDetails(map[string]any{"status": 1, "oid": "X"}))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "order_not_found" || body["message"] != "Order not found" || body["oid"] != "X" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["status"] != float64(http.StatusNotFound) {
		t.Fatalf("details must not override status, got %v", body["status"])
	}
}
