package sqlstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/platform/database"
	"github.com/upfront-market/api/internal/repositories"
)

// DashboardRepository computes vendor aggregates. Sums run in SQL; month bucketing runs in Go
// so the queries stay portable across mysql, postgres and sqlite.
type DashboardRepository struct {
	provider *database.Provider
}

var _ repositories.DashboardRepository = (*DashboardRepository)(nil)

// NewDashboardRepository constructs a SQL backed dashboard repository.
func NewDashboardRepository(provider *database.Provider) (*DashboardRepository, error) {
	if provider == nil {
		return nil, errors.New("dashboard repository requires database provider")
	}
	return &DashboardRepository{provider: provider}, nil
}

func (r *DashboardRepository) paidItems(ctx context.Context, vendorID string) *gorm.DB {
	return r.provider.DB(ctx).Table("order_items AS oi").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("oi.vendor_id = ? AND o.payment_status = ?", strings.TrimSpace(vendorID), string(domain.PaymentStatusPaid))
}

func (r *DashboardRepository) paidOrders(ctx context.Context, vendorID string) *gorm.DB {
	return r.provider.DB(ctx).Table("orders AS o").
		Joins("JOIN order_vendors ov ON ov.order_id = o.id").
		Where("ov.vendor_id = ? AND o.payment_status = ?", strings.TrimSpace(vendorID), string(domain.PaymentStatusPaid))
}

func (r *DashboardRepository) revenue(query *gorm.DB) (decimal.Decimal, error) {
	var revenue decimal.Decimal
	row := query.Select("COALESCE(SUM(oi.sub_total + oi.shipping_amount), 0)").Row()
	if err := row.Scan(&revenue); err != nil {
		return decimal.Zero, err
	}
	return domain.RoundMoney(revenue), nil
}

// VendorStats counts products and paid orders and sums paid revenue.
func (r *DashboardRepository) VendorStats(ctx context.Context, vendorID string) (domain.VendorStats, error) {
	var stats domain.VendorStats
	if err := r.provider.DB(ctx).Model(&productRow{}).Where("vendor_id = ?", strings.TrimSpace(vendorID)).Count(&stats.Products).Error; err != nil {
		return domain.VendorStats{}, database.WrapError("dashboard.stats", err)
	}
	if err := r.paidOrders(ctx, vendorID).Count(&stats.Orders).Error; err != nil {
		return domain.VendorStats{}, database.WrapError("dashboard.stats", err)
	}
	revenue, err := r.revenue(r.paidItems(ctx, vendorID))
	if err != nil {
		return domain.VendorStats{}, database.WrapError("dashboard.stats", err)
	}
	stats.Revenue = revenue
	return stats, nil
}

// MonthlyOrderCounts buckets the vendor's paid orders by calendar month.
func (r *DashboardRepository) MonthlyOrderCounts(ctx context.Context, vendorID string) ([]domain.MonthlyCount, error) {
	var created []time.Time
	if err := r.paidOrders(ctx, vendorID).Pluck("o.created_at", &created).Error; err != nil {
		return nil, database.WrapError("dashboard.monthly_orders", err)
	}
	return countByMonth(created), nil
}

// MonthlyProductCounts buckets the vendor's products by the month they were created.
func (r *DashboardRepository) MonthlyProductCounts(ctx context.Context, vendorID string) ([]domain.MonthlyCount, error) {
	var created []time.Time
	if err := r.provider.DB(ctx).Model(&productRow{}).Where("vendor_id = ?", strings.TrimSpace(vendorID)).Pluck("created_at", &created).Error; err != nil {
		return nil, database.WrapError("dashboard.monthly_products", err)
	}
	return countByMonth(created), nil
}

// Earnings sums paid revenue of items created since monthStart and over all time.
func (r *DashboardRepository) Earnings(ctx context.Context, vendorID string, monthStart time.Time) (domain.VendorEarnings, error) {
	monthly, err := r.revenue(r.paidItems(ctx, vendorID).Where("oi.created_at >= ?", monthStart.UTC()))
	if err != nil {
		return domain.VendorEarnings{}, database.WrapError("dashboard.earnings", err)
	}
	total, err := r.revenue(r.paidItems(ctx, vendorID))
	if err != nil {
		return domain.VendorEarnings{}, database.WrapError("dashboard.earnings", err)
	}
	return domain.VendorEarnings{MonthlyRevenue: monthly, TotalRevenue: total}, nil
}

// MonthlyEarnings groups paid items by year and month, oldest first.
func (r *DashboardRepository) MonthlyEarnings(ctx context.Context, vendorID string) ([]domain.MonthlyEarning, error) {
	var rows []struct {
		CreatedAt time.Time
		Qty       int64
		Amount    decimal.Decimal
	}
	err := r.paidItems(ctx, vendorID).
		Select("oi.created_at AS created_at, oi.qty AS qty, oi.sub_total + oi.shipping_amount AS amount").
		Scan(&rows).Error
	if err != nil {
		return nil, database.WrapError("dashboard.monthly_earnings", err)
	}

	type key struct{ year, month int }
	buckets := map[key]*domain.MonthlyEarning{}
	for _, row := range rows {
		t := row.CreatedAt.UTC()
		k := key{t.Year(), int(t.Month())}
		bucket, ok := buckets[k]
		if !ok {
			bucket = &domain.MonthlyEarning{Year: k.year, Month: k.month, TotalEarning: decimal.Zero}
			buckets[k] = bucket
		}
		bucket.SalesCount += row.Qty
		bucket.TotalEarning = bucket.TotalEarning.Add(row.Amount)
	}

	out := make([]domain.MonthlyEarning, 0, len(buckets))
	for _, bucket := range buckets {
		bucket.TotalEarning = domain.RoundMoney(bucket.TotalEarning)
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func countByMonth(times []time.Time) []domain.MonthlyCount {
	counts := map[int]int64{}
	for _, t := range times {
		counts[int(t.UTC().Month())]++
	}
	out := make([]domain.MonthlyCount, 0, len(counts))
	for month, count := range counts {
		out = append(out, domain.MonthlyCount{Month: month, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
