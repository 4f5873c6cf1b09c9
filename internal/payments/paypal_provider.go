package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	paypalSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	paypalStatusComplete = "COMPLETED"
	paypalMaxBody        = 1 << 20
)

// PayPalProviderConfig configures the PayPalProvider.
type PayPalProviderConfig struct {
	ClientID string
	Secret   string
	// BaseURL defaults to the sandbox API.
	BaseURL string
	// HTTPClient is the transport used for both the token exchange and API calls.
	HTTPClient *http.Client
	Logger     Logger
}

// PayPalProvider verifies PayPal orders captured by the storefront's PayPal buttons.
type PayPalProvider struct {
	baseURL string
	tokens  oauth2.TokenSource
	client  *http.Client
	logger  Logger
}

// paypalDefaultReference is what PayPal stores when the buttons did not set a reference_id.
const paypalDefaultReference = "default"

type paypalOrder struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

type paypalPurchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	CustomID    string `json:"custom_id"`
}

// marketplaceOrder returns the order oid the storefront attached to the first purchase unit.
func (o paypalOrder) marketplaceOrder() string {
	if len(o.PurchaseUnits) == 0 {
		return ""
	}
	unit := o.PurchaseUnits[0]
	if id := strings.TrimSpace(unit.CustomID); id != "" {
		return id
	}
	if ref := strings.TrimSpace(unit.ReferenceID); ref != paypalDefaultReference {
		return ref
	}
	return ""
}

// NewPayPalProvider builds a provider authenticating with the client-credentials grant.
func NewPayPalProvider(cfg PayPalProviderConfig) (*PayPalProvider, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.Secret)
	if clientID == "" || secret == "" {
		return nil, errors.New("paypal: client id and secret are required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = paypalSandboxBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("paypal: invalid base url: %w", err)
	}
	base := cfg.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}

	creds := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: secret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	tokens := oauth2.ReuseTokenSource(nil, creds.TokenSource(tokenCtx))

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &PayPalProvider{
		baseURL: baseURL,
		tokens:  tokens,
		client: &http.Client{
			Timeout: base.Timeout,
			Transport: &oauth2.Transport{
				Source: tokens,
				Base:   base.Transport,
			},
		},
		logger: logger,
	}, nil
}

func (p *PayPalProvider) Name() string { return ProviderPayPal }

func (p *PayPalProvider) CreateCheckoutSession(context.Context, CheckoutSessionRequest) (CheckoutSession, error) {
	return CheckoutSession{}, ErrUnsupportedOperation
}

// Verify looks the PayPal order up. Only COMPLETED counts as paid. The storefront buttons must put
// the marketplace oid in custom_id or reference_id of the first purchase unit.
func (p *PayPalProvider) Verify(ctx context.Context, req VerifyRequest) (Verification, error) {
	if p == nil {
		return Verification{}, errors.New("paypal: provider is nil")
	}
	orderID := strings.TrimSpace(req.Reference)
	if orderID == "" {
		return Verification{}, errors.New("paypal: order id is required")
	}

	endpoint := p.baseURL + "/v2/checkout/orders/" + url.PathEscape(orderID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Verification{}, fmt.Errorf("paypal: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Verification{}, fmt.Errorf("paypal: get order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, paypalMaxBody))
	if err != nil {
		return Verification{}, fmt.Errorf("paypal: read order: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return Verification{}, fmt.Errorf("%w: paypal order %s not found", ErrReferenceRejected, orderID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Verification{}, fmt.Errorf("paypal: get order: unexpected status %d", resp.StatusCode)
	}

	var order paypalOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return Verification{}, fmt.Errorf("paypal: decode order: %w", err)
	}
	if owner := order.marketplaceOrder(); req.OrderID != "" && owner != req.OrderID {
		p.logger(ctx, "payments.paypal.order.mismatch", map[string]any{
			"paypalOrderId": orderID,
			"orderId":       req.OrderID,
			"paypalOrder":   owner,
		})
		return Verification{}, fmt.Errorf("%w: paypal order %s", ErrReferenceMismatch, orderID)
	}

	status := strings.ToUpper(strings.TrimSpace(order.Status))
	outcome := OutcomeUnknown
	switch {
	case status == paypalStatusComplete:
		outcome = OutcomePaid
	case status != "":
		outcome = OutcomeUnpaid
	}

	p.logger(ctx, "payments.paypal.order.verified", map[string]any{
		"paypalOrderId": orderID,
		"orderId":       req.OrderID,
		"status":        status,
		"outcome":       outcome,
	})
	return Verification{
		Provider:  ProviderPayPal,
		Reference: defaultString(order.ID, orderID),
		Outcome:   outcome,
		RawStatus: status,
	}, nil
}
