package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits stored for monetary values.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// LineAmounts is the monetary breakdown shared by cart lines, order items and orders.
// Total always equals SubTotal + Shipping + TaxFee + ServiceFee.
type LineAmounts struct {
	Price      decimal.Decimal
	SubTotal   decimal.Decimal
	Shipping   decimal.Decimal
	TaxFee     decimal.Decimal
	ServiceFee decimal.Decimal
	Total      decimal.Decimal
}

// RoundMoney rounds half away from zero to two decimal places.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(MoneyPlaces)
}

// Percent returns pct percent of v, unrounded.
func Percent(v, pct decimal.Decimal) decimal.Decimal {
	return v.Mul(pct).Div(hundred)
}

// Recompute sets Total from the other components.
func (a LineAmounts) Recompute() LineAmounts {
	a.Total = a.SubTotal.Add(a.Shipping).Add(a.TaxFee).Add(a.ServiceFee)
	return a
}

// Balanced reports whether Total matches the sum of its components.
func (a LineAmounts) Balanced() bool {
	return a.Total.Equal(a.SubTotal.Add(a.Shipping).Add(a.TaxFee).Add(a.ServiceFee))
}

// Add accumulates other into a. Price is not summed.
func (a LineAmounts) Add(other LineAmounts) LineAmounts {
	a.SubTotal = a.SubTotal.Add(other.SubTotal)
	a.Shipping = a.Shipping.Add(other.Shipping)
	a.TaxFee = a.TaxFee.Add(other.TaxFee)
	a.ServiceFee = a.ServiceFee.Add(other.ServiceFee)
	a.Total = a.Total.Add(other.Total)
	return a
}

// ApplyDiscount removes discount from SubTotal and Total, keeping the sum invariant.
func (a LineAmounts) ApplyDiscount(discount decimal.Decimal) LineAmounts {
	a.SubTotal = a.SubTotal.Sub(discount)
	a.Total = a.Total.Sub(discount)
	return a
}

func equalFoldTrim(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
