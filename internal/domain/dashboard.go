package domain

import "github.com/shopspring/decimal"

// VendorStats summarises a vendor's catalogue and paid sales.
type VendorStats struct {
	Products int64
	Orders   int64
	// Revenue is the sum of sub_total + shipping over the vendor's paid order items.
	Revenue decimal.Decimal
}

// MonthlyCount is a chart bucket keyed by calendar month (1-12), all years combined.
type MonthlyCount struct {
	Month int
	Count int64
}

// VendorEarnings compares the current month with all-time revenue.
type VendorEarnings struct {
	MonthlyRevenue decimal.Decimal
	TotalRevenue   decimal.Decimal
}

// MonthlyEarning is one row of the vendor earning tracker.
type MonthlyEarning struct {
	Year         int
	Month        int
	SalesCount   int64
	TotalEarning decimal.Decimal
}
