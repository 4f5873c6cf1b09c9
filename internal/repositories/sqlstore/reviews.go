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

// ReviewRepository persists product reviews. The owning vendor is read through the product row so
// a review follows its product.
type ReviewRepository struct {
	provider *database.Provider
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)

// NewReviewRepository constructs a SQL backed review repository.
func NewReviewRepository(provider *database.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires database provider")
	}
	return &ReviewRepository{provider: provider}, nil
}

type reviewWithVendor struct {
	reviewRow
	VendorID string
}

func (r *ReviewRepository) scoped(ctx context.Context) *gorm.DB {
	return r.provider.DB(ctx).
		Table("reviews").
		Select("reviews.*, products.vendor_id AS vendor_id").
		Joins("JOIN products ON products.id = reviews.product_id")
}

func (r *ReviewRepository) list(ctx context.Context, op string, query string, args ...any) ([]domain.Review, error) {
	var rows []reviewWithVendor
	err := r.scoped(ctx).Where(query, args...).Order("reviews.created_at DESC").Order("reviews.id DESC").Scan(&rows).Error
	if err != nil {
		return nil, database.WrapError(op, err)
	}
	out := make([]domain.Review, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Insert stores a new review of an existing product.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	row := reviewRow{
		ID:        strings.TrimSpace(review.ID),
		ProductID: strings.TrimSpace(review.ProductID),
		UserID:    strings.TrimSpace(review.UserID),
		Rating:    review.Rating,
		Comment:   truncate(review.Comment, 1000),
		Reply:     truncate(review.Reply, 1000),
		Active:    review.Active,
		CreatedAt: review.CreatedAt,
		UpdatedAt: review.UpdatedAt,
	}
	if row.ID == "" {
		row.ID = ulid.Make().String()
	}
	if err := r.provider.DB(ctx).Create(&row).Error; err != nil {
		return domain.Review{}, database.WrapError("reviews.insert", err)
	}
	return reviewWithVendor{reviewRow: row, VendorID: review.VendorID}.toDomain(), nil
}

func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string, activeOnly bool) ([]domain.Review, error) {
	productID = strings.TrimSpace(productID)
	if activeOnly {
		return r.list(ctx, "reviews.list_by_product", "reviews.product_id = ? AND reviews.active = ?", productID, true)
	}
	return r.list(ctx, "reviews.list_by_product", "reviews.product_id = ?", productID)
}

// ListForVendor returns every review of the vendor's products, hidden ones included.
func (r *ReviewRepository) ListForVendor(ctx context.Context, vendorID string) ([]domain.Review, error) {
	return r.list(ctx, "reviews.list_for_vendor", "products.vendor_id = ?", strings.TrimSpace(vendorID))
}

// FindForVendor loads a review only when it belongs to one of the vendor's products.
func (r *ReviewRepository) FindForVendor(ctx context.Context, vendorID, reviewID string) (domain.Review, error) {
	var row reviewWithVendor
	err := r.scoped(ctx).
		Where("reviews.id = ? AND products.vendor_id = ?", strings.TrimSpace(reviewID), strings.TrimSpace(vendorID)).
		Take(&row).Error
	if err != nil {
		return domain.Review{}, database.WrapError("reviews.find", err)
	}
	return row.toDomain(), nil
}

// UpdateModeration writes the reply and visibility of a review owned by review.VendorID.
func (r *ReviewRepository) UpdateModeration(ctx context.Context, review domain.Review) (domain.Review, error) {
	current, err := r.FindForVendor(ctx, review.VendorID, review.ID)
	if err != nil {
		return domain.Review{}, err
	}
	reply := truncate(strings.TrimSpace(review.Reply), 1000)
	updates := map[string]any{
		"reply":      reply,
		"active":     review.Active,
		"updated_at": review.UpdatedAt,
	}
	if err := r.provider.DB(ctx).Model(&reviewRow{}).Where("id = ?", current.ID).Updates(updates).Error; err != nil {
		return domain.Review{}, database.WrapError("reviews.update", err)
	}
	current.Reply = reply
	current.Active = review.Active
	current.UpdatedAt = review.UpdatedAt
	return current, nil
}

func (row reviewWithVendor) toDomain() domain.Review {
	return domain.Review{
		ID:        row.ID,
		ProductID: row.ProductID,
		VendorID:  row.VendorID,
		UserID:    row.UserID,
		Rating:    row.Rating,
		Comment:   row.Comment,
		Reply:     row.Reply,
		Active:    row.Active,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
