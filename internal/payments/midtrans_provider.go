package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
)

type midtransStatusAPI interface {
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

// MidtransProviderConfig configures the MidtransProvider.
type MidtransProviderConfig struct {
	ServerKey  string
	Production bool
	Logger     Logger
	Client     midtransStatusAPI
}

// MidtransProvider verifies Midtrans transactions through the Core API status endpoint.
type MidtransProvider struct {
	api    midtransStatusAPI
	logger Logger
}

type midtransResult struct {
	resp *coreapi.TransactionStatusResponse
	err  error
}

// NewMidtransProvider constructs the provider.
func NewMidtransProvider(cfg MidtransProviderConfig) (*MidtransProvider, error) {
	api := cfg.Client
	if api == nil {
		key := strings.TrimSpace(cfg.ServerKey)
		if key == "" {
			return nil, errors.New("midtrans: server key is required")
		}
		env := midtrans.Sandbox
		if cfg.Production {
			env = midtrans.Production
		}
		c := &coreapi.Client{}
		c.New(key, env)
		api = c
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &MidtransProvider{api: api, logger: logger}, nil
}

func (p *MidtransProvider) Name() string { return ProviderMidtrans }

func (p *MidtransProvider) CreateCheckoutSession(context.Context, CheckoutSessionRequest) (CheckoutSession, error) {
	return CheckoutSession{}, ErrUnsupportedOperation
}

// Verify queries the transaction status. The Core API client does not accept a context, so the
// call runs in its own goroutine and is abandoned when ctx ends.
func (p *MidtransProvider) Verify(ctx context.Context, req VerifyRequest) (Verification, error) {
	if p == nil {
		return Verification{}, errors.New("midtrans: provider is nil")
	}
	orderID := strings.TrimSpace(defaultString(req.Reference, req.OrderID))
	if orderID == "" {
		return Verification{}, errors.New("midtrans: order id is required")
	}

	done := make(chan midtransResult, 1)
	go func() {
		resp, mErr := p.api.CheckTransaction(orderID)
		res := midtransResult{resp: resp}
		if mErr != nil {
			res.err = midtransError(mErr)
		}
		done <- res
	}()

	var res midtransResult
	select {
	case <-ctx.Done():
		return Verification{}, fmt.Errorf("midtrans: check transaction: %w", ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return Verification{}, fmt.Errorf("midtrans: check transaction: %w", res.err)
	}
	if res.resp == nil {
		return Verification{}, errors.New("midtrans: empty status response")
	}
	if code := res.resp.StatusCode; code != "" && !strings.HasPrefix(code, "2") && !strings.HasPrefix(code, "4") {
		return Verification{}, fmt.Errorf("midtrans: check transaction: status code %s", code)
	}

	status := strings.ToLower(strings.TrimSpace(res.resp.TransactionStatus))
	outcome := midtransOutcome(status, strings.ToLower(strings.TrimSpace(res.resp.FraudStatus)))
	p.logger(ctx, "payments.midtrans.transaction.verified", map[string]any{
		"midtransOrderId": orderID,
		"orderId":         req.OrderID,
		"status":          status,
		"outcome":         outcome,
	})
	return Verification{
		Provider:  ProviderMidtrans,
		Reference: orderID,
		Outcome:   outcome,
		RawStatus: status,
	}, nil
}

func midtransOutcome(status, fraud string) Outcome {
	switch status {
	case "settlement":
		return OutcomePaid
	case "capture":
		if fraud == "" || fraud == "accept" {
			return OutcomePaid
		}
		return OutcomeUnpaid
	case "pending", "authorize":
		return OutcomeUnpaid
	case "cancel", "deny", "expire", "failure":
		return OutcomeCancelled
	}
	return OutcomeUnknown
}

// midtransError converts the client's concrete error pointer into a plain error. A typed nil
// *midtrans.Error must never escape as a non-nil error interface.
func midtransError(err *midtrans.Error) error {
	if err == nil {
		return nil
	}
	if err.RawError != nil {
		return err.RawError
	}
	return errors.New(err.Error())
}
