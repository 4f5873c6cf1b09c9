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

// CartRepository persists cart lines. A cart is the set of rows sharing a cart_id.
type CartRepository struct {
	provider *database.Provider
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a SQL backed cart repository.
func NewCartRepository(provider *database.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires database provider")
	}
	return &CartRepository{provider: provider}, nil
}

// FindLine returns the line holding productID in the cart.
func (r *CartRepository) FindLine(ctx context.Context, cartID, productID string) (domain.CartItem, error) {
	var row cartItemRow
	err := r.provider.DB(ctx).
		Where("cart_id = ? AND product_id = ?", strings.TrimSpace(cartID), strings.TrimSpace(productID)).
		Take(&row).Error
	if err != nil {
		return domain.CartItem{}, database.WrapError("cart.find_line", err)
	}
	return row.toDomain(), nil
}

// SaveLine inserts a new line or overwrites the line with the same ID.
func (r *CartRepository) SaveLine(ctx context.Context, item domain.CartItem) (domain.CartItem, error) {
	row := cartItemFromDomain(item)
	if row.CartID == "" || row.ProductID == "" {
		return domain.CartItem{}, errors.New("cart repository: cart id and product id are required")
	}

	db := r.provider.DB(ctx)
	var err error
	if row.ID == "" {
		row.ID = ulid.Make().String()
		err = db.Create(&row).Error
	} else {
		err = db.Model(&cartItemRow{}).Where("id = ?", row.ID).Select("*").Omit("id", "created_at").Updates(&row).Error
		if err == nil {
			err = db.Where("id = ?", row.ID).Take(&row).Error
		}
	}
	if err != nil {
		return domain.CartItem{}, database.WrapError("cart.save_line", err)
	}
	return row.toDomain(), nil
}

// DeleteLine removes one line by id within the cart, optionally restricted to the owning user.
func (r *CartRepository) DeleteLine(ctx context.Context, cartID, itemID string, userID *string) error {
	query := r.provider.DB(ctx).Where("cart_id = ? AND id = ?", strings.TrimSpace(cartID), strings.TrimSpace(itemID))
	if uid := optionalString(userID); uid != nil {
		query = query.Where("user_id = ?", *uid)
	}
	res := query.Delete(&cartItemRow{})
	if res.Error != nil {
		return database.WrapError("cart.delete_line", res.Error)
	}
	if res.RowsAffected == 0 {
		return database.NotFound("cart.delete_line")
	}
	return nil
}

// ListLines returns every line of the cart in insertion order.
func (r *CartRepository) ListLines(ctx context.Context, cartID string, userID *string) ([]domain.CartItem, error) {
	query := r.provider.DB(ctx).Where("cart_id = ?", strings.TrimSpace(cartID))
	if uid := optionalString(userID); uid != nil {
		query = query.Where("user_id = ?", *uid)
	}
	var rows []cartItemRow
	if err := query.Order("created_at").Order("id").Find(&rows).Error; err != nil {
		return nil, database.WrapError("cart.list_lines", err)
	}
	out := make([]domain.CartItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// DeleteCart removes every line of the cart and reports how many were deleted.
func (r *CartRepository) DeleteCart(ctx context.Context, cartID string) (int64, error) {
	res := r.provider.DB(ctx).Where("cart_id = ?", strings.TrimSpace(cartID)).Delete(&cartItemRow{})
	if res.Error != nil {
		return 0, database.WrapError("cart.delete", res.Error)
	}
	return res.RowsAffected, nil
}

func cartItemFromDomain(item domain.CartItem) cartItemRow {
	return cartItemRow{
		ID:             strings.TrimSpace(item.ID),
		CartID:         strings.TrimSpace(item.CartID),
		ProductID:      strings.TrimSpace(item.ProductID),
		UserID:         optionalString(item.UserID),
		VendorID:       strings.TrimSpace(item.VendorID),
		Qty:            item.Qty,
		Color:          strings.TrimSpace(item.Color),
		Size:           strings.TrimSpace(item.Size),
		Country:        strings.TrimSpace(item.Country),
		Price:          item.Amounts.Price,
		SubTotal:       item.Amounts.SubTotal,
		ShippingAmount: item.Amounts.Shipping,
		TaxFee:         item.Amounts.TaxFee,
		ServiceFee:     item.Amounts.ServiceFee,
		Total:          item.Amounts.Total,
		CreatedAt:      item.CreatedAt,
	}
}

func (row cartItemRow) toDomain() domain.CartItem {
	return domain.CartItem{
		ID:        row.ID,
		CartID:    row.CartID,
		UserID:    row.UserID,
		ProductID: row.ProductID,
		VendorID:  row.VendorID,
		Qty:       row.Qty,
		Color:     row.Color,
		Size:      row.Size,
		Country:   row.Country,
		Amounts: domain.LineAmounts{
			Price:      row.Price,
			SubTotal:   row.SubTotal,
			Shipping:   row.ShippingAmount,
			TaxFee:     row.TaxFee,
			ServiceFee: row.ServiceFee,
			Total:      row.Total,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
