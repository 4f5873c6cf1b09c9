package payments

import "context"

// CODProvider settles cash-on-delivery orders. Payment is collected on delivery, so there is
// nothing to verify: the order moves to processing while payment stays pending.
type CODProvider struct{}

// NewCODProvider constructs the cash-on-delivery provider.
func NewCODProvider() *CODProvider {
	return &CODProvider{}
}

func (p *CODProvider) Name() string { return ProviderCOD }

func (p *CODProvider) CreateCheckoutSession(context.Context, CheckoutSessionRequest) (CheckoutSession, error) {
	return CheckoutSession{}, ErrUnsupportedOperation
}

// Verify always reports the order as unpaid; collection happens at the door.
func (p *CODProvider) Verify(_ context.Context, req VerifyRequest) (Verification, error) {
	return Verification{
		Provider:  ProviderCOD,
		Reference: req.OrderID,
		Outcome:   OutcomeUnpaid,
		RawStatus: "cash_on_delivery",
	}, nil
}
