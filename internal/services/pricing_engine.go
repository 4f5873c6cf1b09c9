package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/repositories"
)

var (
	// ErrPricingInvalidInput indicates a line that cannot be priced.
	ErrPricingInvalidInput = errors.New("pricing engine: invalid input")
	// ErrPricingProductNotFound indicates the priced product does not exist.
	ErrPricingProductNotFound = errors.New("pricing engine: product not found")
	// ErrPricingUnavailable indicates settings or catalog lookups failed.
	ErrPricingUnavailable = errors.New("pricing engine: unavailable")
)

type settingsReader interface {
	Get(ctx context.Context) (SiteSettings, error)
	TaxRate(ctx context.Context, country string) (decimal.Decimal, error)
}

// PricingEngineDeps wires the catalog and settings lookups used to price lines.
type PricingEngineDeps struct {
	Products repositories.ProductRepository
	Settings settingsReader
}

type pricingEngine struct {
	products repositories.ProductRepository
	settings settingsReader
}

var _ PricingEngine = (*pricingEngine)(nil)

// NewPricingEngine constructs the line pricing engine.
func NewPricingEngine(deps PricingEngineDeps) (PricingEngine, error) {
	if deps.Products == nil {
		return nil, errors.New("pricing engine: product repository is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("pricing engine: settings reader is required")
	}
	return &pricingEngine{products: deps.Products, settings: deps.Settings}, nil
}

// Price computes sub_total, shipping, tax and service fee for one line. A known size variant
// overrides the client supplied unit price. Every component is rounded to cents before the
// total is summed.
func (e *pricingEngine) Price(ctx context.Context, input LineInput) (LineAmounts, error) {
	if input.Qty < 1 || input.ClientPrice.IsNegative() {
		return LineAmounts{}, ErrPricingInvalidInput
	}

	var product Product
	if input.Product != nil {
		product = *input.Product
	} else {
		productID := strings.TrimSpace(input.ProductID)
		if productID == "" {
			return LineAmounts{}, ErrPricingInvalidInput
		}
		found, err := e.products.FindByID(ctx, productID)
		if err != nil {
			if isRepoNotFound(err) {
				return LineAmounts{}, ErrPricingProductNotFound
			}
			return LineAmounts{}, ErrPricingUnavailable
		}
		product = found
	}

	unitPrice := input.ClientPrice
	if sized, ok := product.SizePrice(input.Size); ok {
		unitPrice = sized
	}
	shippingPerUnit := product.ShippingAmount
	if input.ShippingPerUnit != nil {
		shippingPerUnit = *input.ShippingPerUnit
	}
	if shippingPerUnit.IsNegative() {
		return LineAmounts{}, ErrPricingInvalidInput
	}

	settings, err := e.settings.Get(ctx)
	if err != nil {
		return LineAmounts{}, ErrPricingUnavailable
	}
	rate, err := e.settings.TaxRate(ctx, input.Country)
	if err != nil {
		return LineAmounts{}, ErrPricingUnavailable
	}

	return ComputeLine(unitPrice, shippingPerUnit, input.Qty, rate, settings.ServiceFeePercent), nil
}

// ComputeLine applies the pricing formula to explicit inputs.
func ComputeLine(unitPrice, shippingPerUnit decimal.Decimal, qty int, taxRate, serviceFeePercent decimal.Decimal) LineAmounts {
	quantity := decimal.NewFromInt(int64(qty))
	subTotal := domain.RoundMoney(unitPrice.Mul(quantity))
	amounts := LineAmounts{
		Price:      domain.RoundMoney(unitPrice),
		SubTotal:   subTotal,
		Shipping:   domain.RoundMoney(shippingPerUnit.Mul(quantity)),
		TaxFee:     domain.RoundMoney(domain.Percent(quantity, taxRate)),
		ServiceFee: domain.RoundMoney(domain.Percent(subTotal, serviceFeePercent)),
	}
	return amounts.Recompute()
}
