package sqlstore

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/platform/database"
	"github.com/upfront-market/api/internal/repositories"
)

// VendorRepository persists vendor shops.
type VendorRepository struct {
	provider *database.Provider
}

var _ repositories.VendorRepository = (*VendorRepository)(nil)

// NewVendorRepository constructs a SQL backed vendor repository.
func NewVendorRepository(provider *database.Provider) (*VendorRepository, error) {
	if provider == nil {
		return nil, errors.New("vendor repository requires database provider")
	}
	return &VendorRepository{provider: provider}, nil
}

func (r *VendorRepository) findOne(ctx context.Context, op string, query string, arg string) (domain.Vendor, error) {
	var row vendorRow
	if err := r.provider.DB(ctx).Where(query, strings.TrimSpace(arg)).Take(&row).Error; err != nil {
		return domain.Vendor{}, database.WrapError(op, err)
	}
	return row.toDomain(), nil
}

func (r *VendorRepository) FindByID(ctx context.Context, vendorID string) (domain.Vendor, error) {
	return r.findOne(ctx, "vendors.find", "id = ?", vendorID)
}

func (r *VendorRepository) FindBySlug(ctx context.Context, slug string) (domain.Vendor, error) {
	return r.findOne(ctx, "vendors.find_by_slug", "slug = ?", slug)
}

func (r *VendorRepository) FindByUserID(ctx context.Context, userID string) (domain.Vendor, error) {
	return r.findOne(ctx, "vendors.find_by_user", "user_id = ?", userID)
}

// ListByIDs returns the vendors matching vendorIDs. Unknown IDs are skipped.
func (r *VendorRepository) ListByIDs(ctx context.Context, vendorIDs []string) ([]domain.Vendor, error) {
	if len(vendorIDs) == 0 {
		return nil, nil
	}
	var rows []vendorRow
	if err := r.provider.DB(ctx).Where("id IN ?", vendorIDs).Order("id").Find(&rows).Error; err != nil {
		return nil, database.WrapError("vendors.list", err)
	}
	out := make([]domain.Vendor, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *VendorRepository) Save(ctx context.Context, vendor domain.Vendor) (domain.Vendor, error) {
	row := vendorRow{
		ID:          strings.TrimSpace(vendor.ID),
		UserID:      strings.TrimSpace(vendor.UserID),
		Name:        strings.TrimSpace(vendor.Name),
		Email:       strings.TrimSpace(vendor.Email),
		Slug:        strings.TrimSpace(vendor.Slug),
		Image:       strings.TrimSpace(vendor.Image),
		Mobile:      strings.TrimSpace(vendor.Mobile),
		Description: strings.TrimSpace(vendor.Description),
		Active:      vendor.Active,
		CreatedAt:   vendor.CreatedAt,
	}
	if row.ID == "" {
		row.ID = ulid.Make().String()
	}
	db := r.provider.DB(ctx)
	if row.CreatedAt.IsZero() {
		var existing vendorRow
		if err := db.Select("created_at").Where("id = ?", row.ID).Take(&existing).Error; err == nil {
			row.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Vendor{}, database.WrapError("vendors.save", err)
		}
	}
	if err := db.Save(&row).Error; err != nil {
		return domain.Vendor{}, database.WrapError("vendors.save", err)
	}
	return row.toDomain(), nil
}

func (row vendorRow) toDomain() domain.Vendor {
	return domain.Vendor{
		ID:          row.ID,
		UserID:      row.UserID,
		Name:        row.Name,
		Email:       row.Email,
		Slug:        row.Slug,
		Image:       row.Image,
		Mobile:      row.Mobile,
		Description: row.Description,
		Active:      row.Active,
		CreatedAt:   row.CreatedAt,
	}
}
