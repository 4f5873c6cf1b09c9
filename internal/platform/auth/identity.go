package auth

import (
	"context"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/upfront-market/api/internal/platform/requestctx"
)

// Role constants checked by the route groups.
const (
	RoleUser   = "user"
	RoleVendor = "vendor"
	RoleAdmin  = "admin"
)

// Identity captures the authenticated principal extracted from a bearer token.
type Identity struct {
	UID   string
	Email string
	Roles []string
	// VendorID is set when the token carries the vendor_id claim.
	VendorID string

	token *firebaseauth.Token
}

// Token exposes the decoded token associated with this identity.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// HasRole reports whether the identity includes the requested role (case-insensitive).
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = normaliseRole(role)
	if role == "" {
		return false
	}
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity includes any of the provided roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

type contextKey struct{}

// WithIdentity stores the identity within the context for downstream handlers and annotates the
// request log with the principal.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if identity != nil {
		requestctx.Annotate(ctx, "user_id", identity.UID)
		requestctx.Annotate(ctx, "vendor_id", identity.VendorID)
		requestctx.Annotate(ctx, "roles", strings.Join(identity.Roles, ","))
	}
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(contextKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
