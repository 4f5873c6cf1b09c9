package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	now := time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)
	token, err := SignToken("s3cret", TokenClaims{
		Subject:  "user-1",
		Email:    "buyer@example.com",
		Roles:    []string{RoleVendor},
		VendorID: "vendor-1",
		Issuer:   "upfront",
	}, now)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	verifier, err := NewJWTVerifier("s3cret", WithJWTIssuer("upfront"), WithJWTClock(func() time.Time { return now.Add(time.Minute) }))
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	decoded, err := verifier.VerifyIDToken(context.Background(), token)
	if err != nil {
		t.Fatalf("VerifyIDToken: %v", err)
	}
	if decoded.UID != "user-1" || decoded.Issuer != "upfront" {
		t.Fatalf("unexpected token %+v", decoded)
	}
	if roles := rolesFromClaims(decoded.Claims, defaultRoleClaim); len(roles) != 1 || roles[0] != RoleVendor {
		t.Fatalf("unexpected roles %v", roles)
	}
	if got := claimAsString(decoded.Claims, defaultVendorClaim); got != "vendor-1" {
		t.Fatalf("unexpected vendor claim %q", got)
	}
}

func TestJWTVerifierRejectsExpiredToken(t *testing.T) {
	now := time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)
	token, err := SignToken("s3cret", TokenClaims{Subject: "user-1", TTL: time.Minute}, now)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	verifier, _ := NewJWTVerifier("s3cret", WithJWTClock(func() time.Time { return now.Add(time.Hour) }))
	if _, err := verifier.VerifyIDToken(context.Background(), token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTVerifierRejectsWrongSecretAndIssuer(t *testing.T) {
	now := time.Now()
	token, err := SignToken("s3cret", TokenClaims{Subject: "user-1", Issuer: "someone-else"}, now)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	wrongSecret, _ := NewJWTVerifier("other")
	if _, err := wrongSecret.VerifyIDToken(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong secret, got %v", err)
	}

	wrongIssuer, _ := NewJWTVerifier("s3cret", WithJWTIssuer("upfront"))
	if _, err := wrongIssuer.VerifyIDToken(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong issuer, got %v", err)
	}
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	if _, err := NewJWTVerifier("  "); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
