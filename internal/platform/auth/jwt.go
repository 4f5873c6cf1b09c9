package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"
)

// JWTVerifier validates HS256 tokens issued by the marketplace itself. It is used when the API runs
// outside Firebase (API_AUTH_MODE=jwt).
type JWTVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// JWTOption customises the verifier.
type JWTOption func(*JWTVerifier)

// WithJWTIssuer requires the iss claim to match.
func WithJWTIssuer(issuer string) JWTOption {
	return func(v *JWTVerifier) {
		v.issuer = strings.TrimSpace(issuer)
	}
}

// WithJWTClock overrides the clock used for expiry checks.
func WithJWTClock(now func() time.Time) JWTOption {
	return func(v *JWTVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewJWTVerifier constructs a verifier for the shared secret.
func NewJWTVerifier(secret string, opts ...JWTOption) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	v := &JWTVerifier{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// VerifyIDToken implements TokenVerifier.
func (v *JWTVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	if v == nil {
		return nil, errors.New("auth: jwt verifier not initialised")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if _, err := parser.ParseWithClaims(idToken, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	now := v.now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return nil, ErrTokenExpired
	}
	if !claims.VerifyNotBefore(now, false) {
		return nil, fmt.Errorf("%w: token not yet valid", ErrTokenInvalid)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}

	subject, _ := claims["sub"].(string)
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrTokenInvalid)
	}

	token := &firebaseauth.Token{
		UID:    subject,
		Claims: map[string]interface{}(claims),
	}
	if iss, ok := claims["iss"].(string); ok {
		token.Issuer = iss
	}
	if exp, ok := claims["exp"].(float64); ok {
		token.Expires = int64(exp)
	}
	if iat, ok := claims["iat"].(float64); ok {
		token.IssuedAt = int64(iat)
	}
	return token, nil
}

// TokenClaims describes a token minted by SignToken.
type TokenClaims struct {
	Subject  string
	Email    string
	Roles    []string
	VendorID string
	Issuer   string
	TTL      time.Duration
}

// SignToken mints an HS256 token that JWTVerifier accepts. It backs the operator CLI and tests.
func SignToken(secret string, claims TokenClaims, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("auth: jwt secret is required")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("auth: subject is required")
	}
	ttl := claims.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	mapClaims := jwt.MapClaims{
		"sub": claims.Subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if claims.Email != "" {
		mapClaims[defaultEmailClaim] = claims.Email
	}
	if len(claims.Roles) > 0 {
		mapClaims[defaultRoleClaim] = claims.Roles
	}
	if claims.VendorID != "" {
		mapClaims[defaultVendorClaim] = claims.VendorID
	}
	if claims.Issuer != "" {
		mapClaims["iss"] = claims.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString([]byte(secret))
}
