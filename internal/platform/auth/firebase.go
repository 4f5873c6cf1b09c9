package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/upfront-market/api/internal/platform/config"
)

// firebaseClient is the part of the Admin SDK auth client the verifier uses.
type firebaseClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*firebaseauth.Token, error)
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
}

// FirebaseVerifier verifies Firebase ID tokens. Marketplace roles and the vendor id travel as
// custom claims ("role", "vendor_id") set through SetMarketplaceClaims.
type FirebaseVerifier struct {
	client       firebaseClient
	timeout      time.Duration
	checkRevoked bool
}

// FirebaseOption customises FirebaseVerifier instances.
type FirebaseOption func(*FirebaseVerifier)

// WithFirebaseTimeout bounds each Admin SDK call.
func WithFirebaseTimeout(d time.Duration) FirebaseOption {
	return func(v *FirebaseVerifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithRevocationCheck rejects tokens issued before the user's sessions were revoked, which is how
// a suspended vendor loses access before the token expires. It costs one Admin API call per request.
func WithRevocationCheck() FirebaseOption {
	return func(v *FirebaseVerifier) {
		v.checkRevoked = true
	}
}

// NewFirebaseVerifier initialises the Admin SDK for cfg.ProjectID.
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("firebase project id is required")
	}
	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}
	return newFirebaseVerifier(client, opts...), nil
}

func newFirebaseVerifier(client firebaseClient, opts ...FirebaseOption) *FirebaseVerifier {
	v := &FirebaseVerifier{client: client, timeout: defaultVerifyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// VerifyIDToken implements TokenVerifier.
func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("firebase verifier not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if !v.checkRevoked {
		return v.client.VerifyIDToken(ctx, idToken)
	}
	token, err := v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if firebaseauth.IsIDTokenRevoked(err) || firebaseauth.IsUserDisabled(err) {
		return nil, fmt.Errorf("%w: %v", ErrTokenRevoked, err)
	}
	return token, err
}

// SetMarketplaceClaims stores roles and the vendor id on the Firebase user so the next ID token
// carries them. An empty vendorID removes the claim.
func (v *FirebaseVerifier) SetMarketplaceClaims(ctx context.Context, uid string, roles []string, vendorID string) error {
	if v == nil || v.client == nil {
		return errors.New("firebase verifier not initialised")
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return errors.New("firebase: uid is required")
	}
	claims := map[string]interface{}{}
	if normalised := uniqueRoles(roles); len(normalised) > 0 {
		claims[defaultRoleClaim] = normalised
	}
	if vendorID = strings.TrimSpace(vendorID); vendorID != "" {
		claims[defaultVendorClaim] = vendorID
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	return v.client.SetCustomUserClaims(ctx, uid, claims)
}
