package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/upfront-market/api/internal/platform/httpx"
)

const (
	defaultRoleClaim     = "role"
	defaultEmailClaim    = "email"
	defaultVendorClaim   = "vendor_id"
	defaultFallbackRole  = RoleUser
	defaultVerifyTimeout = 5 * time.Second
)

var (
	// ErrTokenExpired signals that the provided bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided bearer token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: token invalid")
	// ErrTokenRevoked signals that the user's sessions were revoked or the account disabled.
	ErrTokenRevoked = errors.New("auth: token revoked")
)

// TokenVerifier verifies bearer tokens. Both the Firebase Admin SDK and the HS256 verifier return
// the Firebase token shape so claims are read the same way.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator wires token verification into HTTP middleware.
type Authenticator struct {
	verifier TokenVerifier

	roleClaim   string
	emailClaim  string
	vendorClaim string

	fallbackRole string
	timeout      time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRoleClaim overrides the custom claim used for role extraction.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		claim = strings.TrimSpace(claim)
		if claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithVendorClaim overrides the claim used to populate Identity.VendorID.
func WithVendorClaim(claim string) Option {
	return func(a *Authenticator) {
		claim = strings.TrimSpace(claim)
		if claim != "" {
			a.vendorClaim = claim
		}
	}
}

// WithFallbackRole sets the default role when no custom claim is present.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		role = normaliseRole(role)
		if role != "" {
			a.fallbackRole = role
		}
	}
}

// WithVerificationTimeout sets the timeout used when verifying tokens.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:     verifier,
		roleClaim:    defaultRoleClaim,
		emailClaim:   defaultEmailClaim,
		vendorClaim:  defaultVendorClaim,
		fallbackRole: defaultFallbackRole,
		timeout:      defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireAuth verifies the Authorization bearer token and ensures one of the allowed roles.
func (a *Authenticator) RequireAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}

			identity, status, code, message := a.authenticate(r.Context(), tokenStr)
			if identity == nil {
				respondAuthError(r.Context(), w, status, code, message)
				return
			}

			if len(allowed) > 0 && !hasAllowedRole(identity.Roles, allowed) {
				respondAuthError(r.Context(), w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// OptionalAuth attaches the identity when a bearer token is present. Requests without a token
// pass through as guests; a present but invalid token is rejected.
func (a *Authenticator) OptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
				next.ServeHTTP(w, r)
				return
			}
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			identity, status, code, message := a.authenticate(r.Context(), tokenStr)
			if identity == nil {
				respondAuthError(r.Context(), w, status, code, message)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func (a *Authenticator) authenticate(ctx context.Context, tokenStr string) (*Identity, int, string, string) {
	if a == nil || a.verifier == nil {
		return nil, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable"
	}

	ctx, cancel := a.contextWithTimeout(ctx)
	if cancel != nil {
		defer cancel()
	}

	token, err := a.verifier.VerifyIDToken(ctx, tokenStr)
	if err != nil {
		code, message := verificationError(err)
		return nil, http.StatusUnauthorized, code, message
	}
	if token == nil || strings.TrimSpace(token.UID) == "" {
		return nil, http.StatusUnauthorized, "invalid_token", "token subject missing"
	}

	identity := &Identity{
		UID:      token.UID,
		Email:    claimAsString(token.Claims, a.emailClaim),
		Roles:    rolesFromClaims(token.Claims, a.roleClaim),
		VendorID: claimAsString(token.Claims, a.vendorClaim),
		token:    token,
	}
	if identity.Email == "" {
		identity.Email = claimAsString(token.Claims, defaultEmailClaim)
	}
	if len(identity.Roles) == 0 && a.fallbackRole != "" {
		identity.Roles = []string{a.fallbackRole}
	}
	if len(identity.Roles) == 0 {
		return nil, http.StatusUnauthorized, "missing_role", "no roles associated with identity"
	}
	return identity, 0, "", ""
}

func (a *Authenticator) contextWithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a == nil || a.timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, a.timeout)
}

func hasAllowedRole(identityRoles []string, allowed map[string]struct{}) bool {
	for _, role := range identityRoles {
		if _, ok := allowed[normaliseRole(role)]; ok {
			return true
		}
	}
	return false
}

func rolesFromClaims(claims map[string]interface{}, key string) []string {
	raw, ok := claims[key]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case string:
		if role := normaliseRole(v); role != "" {
			return []string{role}
		}
		return nil
	case []interface{}:
		values := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				values = append(values, str)
			}
		}
		return uniqueRoles(values)
	case []string:
		return uniqueRoles(v)
	case map[string]interface{}:
		out := make([]string, 0, len(v))
		for key, value := range v {
			if enabled, ok := value.(bool); !ok || !enabled {
				continue
			}
			if role := normaliseRole(key); role != "" {
				out = append(out, role)
			}
		}
		return out
	default:
		return nil
	}
}

func uniqueRoles(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		role := normaliseRole(value)
		if role == "" {
			continue
		}
		if _, exists := seen[role]; exists {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

func claimAsString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func respondAuthError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}

func verificationError(err error) (string, string) {
	switch {
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		return "token_expired", "token expired"
	case errors.Is(err, ErrTokenRevoked):
		return "token_revoked", "token revoked"
	case errors.Is(err, ErrTokenInvalid), firebaseauth.IsIDTokenInvalid(err):
		return "invalid_token", "token invalid"
	default:
		return "invalid_token", "token verification failed"
	}
}
