package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome enumerates the normalised verification results shared across providers.
type Outcome string

const (
	// OutcomePaid indicates the gateway reports the payment as captured.
	OutcomePaid Outcome = "paid"
	// OutcomeUnpaid indicates the payment exists but has not completed yet.
	OutcomeUnpaid Outcome = "unpaid"
	// OutcomeCancelled indicates the payment was cancelled, denied or expired.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeUnknown indicates the gateway returned a status the adapters do not recognise.
	OutcomeUnknown Outcome = "unknown"
)

const (
	ProviderStripe   = "stripe"
	ProviderPayPal   = "paypal"
	ProviderMidtrans = "midtrans"
	ProviderCOD      = "cod"

	defaultVerifyTimeout = 5 * time.Second
)

// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// ErrUnsupportedOperation is returned by providers that do not implement an operation.
var ErrUnsupportedOperation = errors.New("payments: unsupported operation")

// ErrReferenceMismatch is returned by Verify when the gateway transaction was created for
// another marketplace order.
var ErrReferenceMismatch = errors.New("payments: reference belongs to another order")

// ErrReferenceRejected is returned by Verify when the gateway answered that the reference does
// not exist or is malformed. It means "not paid", unlike transport failures.
var ErrReferenceRejected = errors.New("payments: reference rejected by gateway")

// CheckoutLineItem describes a single line item to include in a hosted checkout session.
type CheckoutLineItem struct {
	Name        string
	Description string
	Quantity    int64
	// Amount is the unit amount in minor units.
	Amount   int64
	Currency string
}

// CheckoutSessionRequest captures the payload required to create a checkout session.
type CheckoutSessionRequest struct {
	OrderID        string
	Currency       string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
	Items          []CheckoutLineItem
}

// CheckoutSession represents the hosted checkout returned to the client.
type CheckoutSession struct {
	ID          string
	Provider    string
	RedirectURL string
	ExpiresAt   time.Time
}

// VerifyRequest identifies the gateway transaction to verify.
type VerifyRequest struct {
	// Reference is the gateway identifier: checkout session, PayPal order or Midtrans order id.
	Reference string
	// OrderID is the marketplace order being confirmed. Providers check that the gateway
	// transaction was created for it, and Midtrans uses it as the fallback reference.
	OrderID string
}

// Verification is the normalised gateway answer.
type Verification struct {
	Provider  string
	Reference string
	Outcome   Outcome
	RawStatus string
}

// Provider defines the contract for payment gateway adapters. Verify returns an error only when
// the status could not be determined.
type Provider interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	Verify(ctx context.Context, req VerifyRequest) (Verification, error)
}

// ToMinorUnits converts a decimal amount into the smallest currency unit, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Manager coordinates provider selection and bounds verification calls.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
	currencyRoutes  map[string]string
	verifyTimeout   time.Duration
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the default provider for currencies without explicit routing.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = provider
	}
}

// WithCurrencyRoutes configures static currency to provider mappings.
func WithCurrencyRoutes(routes map[string]string) ManagerOption {
	return func(m *Manager) {
		if len(routes) == 0 {
			return
		}
		if m.currencyRoutes == nil {
			m.currencyRoutes = make(map[string]string, len(routes))
		}
		for k, v := range routes {
			m.currencyRoutes[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
}

// WithVerifyTimeout bounds every outbound verification call.
func WithVerifyTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.verifyTimeout = timeout
		}
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{
		providers:     copyMap,
		verifyTimeout: defaultVerifyTimeout,
	}
	if _, ok := copyMap[ProviderStripe]; ok {
		m.defaultProvider = ProviderStripe
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Providers returns the registered provider names in sorted order.
func (m *Manager) Providers() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PaymentContext defines the hints available when selecting a provider.
type PaymentContext struct {
	PreferredProvider string
	Currency          string
}

func (m *Manager) resolveProvider(ctx PaymentContext) (string, Provider, error) {
	if m == nil {
		return "", nil, errors.New("payments: manager is nil")
	}
	if len(m.providers) == 0 {
		return "", nil, errors.New("payments: no providers registered")
	}
	if provider := strings.TrimSpace(strings.ToLower(ctx.PreferredProvider)); provider != "" {
		if p, ok := m.providers[provider]; ok {
			return provider, p, nil
		}
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	currency := strings.ToUpper(strings.TrimSpace(ctx.Currency))
	if currency != "" && m.currencyRoutes != nil {
		if providerKey, ok := m.currencyRoutes[currency]; ok {
			provider := strings.TrimSpace(strings.ToLower(providerKey))
			if p, ok := m.providers[provider]; ok {
				return provider, p, nil
			}
		}
	}
	if def := strings.TrimSpace(strings.ToLower(m.defaultProvider)); def != "" {
		if p, ok := m.providers[def]; ok {
			return def, p, nil
		}
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// Has reports whether a provider is registered under name.
func (m *Manager) Has(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.providers[strings.TrimSpace(strings.ToLower(name))]
	return ok
}

// CreateCheckoutSession delegates to the resolved provider.
func (m *Manager) CreateCheckoutSession(ctx context.Context, paymentCtx PaymentContext, req CheckoutSessionRequest) (CheckoutSession, error) {
	key, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return CheckoutSession{}, err
	}
	session, err := provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		return CheckoutSession{}, err
	}
	session.Provider = key
	return session, nil
}

// Verify delegates to the resolved provider under the configured timeout.
func (m *Manager) Verify(ctx context.Context, paymentCtx PaymentContext, req VerifyRequest) (Verification, error) {
	key, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return Verification{}, err
	}
	verifyCtx, cancel := context.WithTimeout(ctx, m.verifyTimeout)
	defer cancel()

	result, err := provider.Verify(verifyCtx, req)
	if err != nil {
		if verifyCtx.Err() != nil && ctx.Err() == nil {
			return Verification{}, fmt.Errorf("payments: %s verify: %w", key, context.DeadlineExceeded)
		}
		return Verification{}, err
	}
	result.Provider = key
	if result.Outcome == "" {
		result.Outcome = OutcomeUnknown
	}
	return result, nil
}
