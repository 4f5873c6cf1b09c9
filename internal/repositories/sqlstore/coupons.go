package sqlstore

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/platform/database"
	"github.com/upfront-market/api/internal/repositories"
)

// CouponRepository persists vendor coupons. Codes are stored upper-cased under a unique index.
type CouponRepository struct {
	provider *database.Provider
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)

// NewCouponRepository constructs a SQL backed coupon repository.
func NewCouponRepository(provider *database.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires database provider")
	}
	return &CouponRepository{provider: provider}, nil
}

// FindActiveByCode looks up an active coupon by its code, case-insensitively.
func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string) (domain.Coupon, error) {
	var row couponRow
	err := r.provider.DB(ctx).Where("code = ? AND active = ?", normalizeCode(code), true).Take(&row).Error
	if err != nil {
		return domain.Coupon{}, database.WrapError("coupons.find_by_code", err)
	}
	return row.toDomain(), nil
}

// FindByID loads a coupon owned by the vendor.
func (r *CouponRepository) FindByID(ctx context.Context, vendorID, couponID string) (domain.Coupon, error) {
	var row couponRow
	err := r.provider.DB(ctx).Where("id = ? AND vendor_id = ?", strings.TrimSpace(couponID), strings.TrimSpace(vendorID)).Take(&row).Error
	if err != nil {
		return domain.Coupon{}, database.WrapError("coupons.find", err)
	}
	return row.toDomain(), nil
}

func (r *CouponRepository) ListByVendor(ctx context.Context, vendorID string) ([]domain.Coupon, error) {
	var rows []couponRow
	err := r.provider.DB(ctx).Where("vendor_id = ?", strings.TrimSpace(vendorID)).Order("created_at DESC").Order("id DESC").Find(&rows).Error
	if err != nil {
		return nil, database.WrapError("coupons.list", err)
	}
	out := make([]domain.Coupon, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Insert stores a new coupon. A code already in use yields a conflict error.
func (r *CouponRepository) Insert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	row := couponRow{
		ID:        strings.TrimSpace(coupon.ID),
		VendorID:  strings.TrimSpace(coupon.VendorID),
		Code:      normalizeCode(coupon.Code),
		Discount:  coupon.Discount,
		Active:    coupon.Active,
		CreatedAt: coupon.CreatedAt,
	}
	if row.ID == "" {
		row.ID = ulid.Make().String()
	}
	if err := r.provider.DB(ctx).Create(&row).Error; err != nil {
		return domain.Coupon{}, database.WrapError("coupons.insert", err)
	}
	return row.toDomain(), nil
}

// Update writes the discount and active flag of the vendor's coupon.
func (r *CouponRepository) Update(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	db := r.provider.DB(ctx)
	res := db.Model(&couponRow{}).
		Where("id = ? AND vendor_id = ?", coupon.ID, coupon.VendorID).
		Updates(map[string]any{"discount": coupon.Discount, "active": coupon.Active})
	if res.Error != nil {
		return domain.Coupon{}, database.WrapError("coupons.update", res.Error)
	}
	return r.FindByID(ctx, coupon.VendorID, coupon.ID)
}

// Delete removes the vendor's coupon.
func (r *CouponRepository) Delete(ctx context.Context, vendorID, couponID string) error {
	res := r.provider.DB(ctx).Where("id = ? AND vendor_id = ?", strings.TrimSpace(couponID), strings.TrimSpace(vendorID)).Delete(&couponRow{})
	if res.Error != nil {
		return database.WrapError("coupons.delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return database.NotFound("coupons.delete")
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (row couponRow) toDomain() domain.Coupon {
	return domain.Coupon{
		ID:        row.ID,
		VendorID:  row.VendorID,
		Code:      row.Code,
		Discount:  row.Discount,
		Active:    row.Active,
		CreatedAt: row.CreatedAt,
	}
}
