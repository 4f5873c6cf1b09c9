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

// ProductRepository persists products and their child records.
type ProductRepository struct {
	provider *database.Provider
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a SQL backed product repository.
func NewProductRepository(provider *database.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires database provider")
	}
	return &ProductRepository{provider: provider}, nil
}

func (r *ProductRepository) withChildren(db *gorm.DB) *gorm.DB {
	return db.Preload("Sizes", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		Preload("Colors", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		Preload("Specifications", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		Preload("Gallery", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") })
}

// FindByID loads a product regardless of status.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	var row productRow
	err := r.withChildren(r.provider.DB(ctx)).Where("id = ?", strings.TrimSpace(productID)).Take(&row).Error
	if err != nil {
		return domain.Product{}, database.WrapError("products.find", err)
	}
	return row.toDomain(), nil
}

// FindPublishedBySlug loads a published product by its slug.
func (r *ProductRepository) FindPublishedBySlug(ctx context.Context, slug string) (domain.Product, error) {
	var row productRow
	err := r.withChildren(r.provider.DB(ctx)).
		Where("slug = ? AND status = ?", strings.TrimSpace(slug), string(domain.ProductStatusPublished)).
		Take(&row).Error
	if err != nil {
		return domain.Product{}, database.WrapError("products.find_by_slug", err)
	}
	return row.toDomain(), nil
}

// ListPublished returns one page of published products, newest first.
func (r *ProductRepository) ListPublished(ctx context.Context, filter repositories.ProductFilter) (domain.Page[domain.Product], error) {
	page, size := normalizePage(filter.Pagination)
	query := r.provider.DB(ctx).Model(&productRow{}).Where("status = ?", string(domain.ProductStatusPublished))
	if id := strings.TrimSpace(filter.CategoryID); id != "" {
		query = query.Where("category_id = ?", id)
	}
	if id := strings.TrimSpace(filter.VendorID); id != "" {
		query = query.Where("vendor_id = ?", id)
	}
	if filter.Featured != nil {
		query = query.Where("featured = ?", *filter.Featured)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return domain.Page[domain.Product]{}, database.WrapError("products.count", err)
	}

	var rows []productRow
	err := r.withChildren(query).Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * size).Limit(size).Find(&rows).Error
	if err != nil {
		return domain.Page[domain.Product]{}, database.WrapError("products.list", err)
	}

	items := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return domain.Page[domain.Product]{Items: items, Page: page, PageSize: size, Total: total}, nil
}

// ListByVendor returns the vendor's products, optionally narrowed to one status.
func (r *ProductRepository) ListByVendor(ctx context.Context, vendorID string, status *domain.ProductStatus) ([]domain.Product, error) {
	query := r.withChildren(r.provider.DB(ctx)).Where("vendor_id = ?", strings.TrimSpace(vendorID))
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}
	var rows []productRow
	if err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, database.WrapError("products.list_by_vendor", err)
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Save inserts or updates the product and replaces its child records.
func (r *ProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	row := productFromDomain(product)
	if row.ID == "" {
		row.ID = ulid.Make().String()
	}

	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		db := r.provider.DB(ctx)
		if row.CreatedAt.IsZero() {
			var existing productRow
			err := db.Select("created_at").Where("id = ?", row.ID).Take(&existing).Error
			switch {
			case err == nil:
				row.CreatedAt = existing.CreatedAt
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}
		if err := db.Omit("Sizes", "Colors", "Specifications", "Gallery").Save(&row).Error; err != nil {
			return err
		}
		for _, model := range []any{&productSizeRow{}, &productColorRow{}, &productSpecificationRow{}, &productGalleryRow{}} {
			if err := db.Where("product_id = ?", row.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		for i := range row.Sizes {
			row.Sizes[i].ProductID = row.ID
		}
		for i := range row.Colors {
			row.Colors[i].ProductID = row.ID
		}
		for i := range row.Specifications {
			row.Specifications[i].ProductID = row.ID
		}
		for i := range row.Gallery {
			row.Gallery[i].ProductID = row.ID
		}
		if len(row.Sizes) > 0 {
			if err := db.Create(&row.Sizes).Error; err != nil {
				return err
			}
		}
		if len(row.Colors) > 0 {
			if err := db.Create(&row.Colors).Error; err != nil {
				return err
			}
		}
		if len(row.Specifications) > 0 {
			if err := db.Create(&row.Specifications).Error; err != nil {
				return err
			}
		}
		if len(row.Gallery) > 0 {
			if err := db.Create(&row.Gallery).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Product{}, database.WrapError("products.save", err)
	}
	return r.FindByID(ctx, row.ID)
}

// ListCategories returns active categories ordered by title.
func (r *ProductRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var rows []categoryRow
	if err := r.provider.DB(ctx).Where("active = ?", true).Order("title").Find(&rows).Error; err != nil {
		return nil, database.WrapError("categories.list", err)
	}
	out := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Category{ID: row.ID, Title: row.Title, Slug: row.Slug, Image: row.Image, Active: row.Active})
	}
	return out, nil
}

// SaveCategory inserts or updates a category.
func (r *ProductRepository) SaveCategory(ctx context.Context, category domain.Category) (domain.Category, error) {
	row := categoryRow{
		ID:     strings.TrimSpace(category.ID),
		Title:  strings.TrimSpace(category.Title),
		Slug:   strings.TrimSpace(category.Slug),
		Image:  strings.TrimSpace(category.Image),
		Active: category.Active,
	}
	if row.ID == "" {
		row.ID = ulid.Make().String()
	}
	if err := r.provider.DB(ctx).Save(&row).Error; err != nil {
		return domain.Category{}, database.WrapError("categories.save", err)
	}
	category.ID = row.ID
	return category, nil
}

func productFromDomain(p domain.Product) productRow {
	row := productRow{
		ID:             strings.TrimSpace(p.ID),
		VendorID:       strings.TrimSpace(p.VendorID),
		CategoryID:     strings.TrimSpace(p.CategoryID),
		Title:          truncate(strings.TrimSpace(p.Title), 90),
		Slug:           truncate(strings.TrimSpace(p.Slug), 40),
		Description:    p.Description,
		Image:          strings.TrimSpace(p.Image),
		Price:          domain.RoundMoney(p.Price),
		RegularPrice:   domain.RoundMoney(p.RegularPrice),
		ShippingAmount: domain.RoundMoney(p.ShippingAmount),
		Stock:          p.Stock,
		Status:         string(p.Status),
		Featured:       p.Featured,
		CreatedAt:      p.CreatedAt,
	}
	if row.Status == "" {
		row.Status = string(domain.ProductStatusDraft)
	}
	for _, s := range p.Sizes {
		row.Sizes = append(row.Sizes, productSizeRow{Name: strings.TrimSpace(s.Name), Price: domain.RoundMoney(s.Price)})
	}
	for _, c := range p.Colors {
		row.Colors = append(row.Colors, productColorRow{Name: strings.TrimSpace(c.Name), Code: strings.TrimSpace(c.Code)})
	}
	for _, s := range p.Specifications {
		row.Specifications = append(row.Specifications, productSpecificationRow{Title: strings.TrimSpace(s.Title), Content: s.Content})
	}
	for i, image := range p.Gallery {
		row.Gallery = append(row.Gallery, productGalleryRow{Image: strings.TrimSpace(image), Position: i})
	}
	return row
}

func (row productRow) toDomain() domain.Product {
	p := domain.Product{
		ID:             row.ID,
		VendorID:       row.VendorID,
		CategoryID:     row.CategoryID,
		Title:          row.Title,
		Slug:           row.Slug,
		Description:    row.Description,
		Image:          row.Image,
		Price:          row.Price,
		RegularPrice:   row.RegularPrice,
		ShippingAmount: row.ShippingAmount,
		Stock:          row.Stock,
		Status:         domain.ProductStatus(row.Status),
		Featured:       row.Featured,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	for _, s := range row.Sizes {
		p.Sizes = append(p.Sizes, domain.ProductSize{Name: s.Name, Price: s.Price})
	}
	for _, c := range row.Colors {
		p.Colors = append(p.Colors, domain.ProductColor{Name: c.Name, Code: c.Code})
	}
	for _, s := range row.Specifications {
		p.Specifications = append(p.Specifications, domain.ProductSpecification{Title: s.Title, Content: s.Content})
	}
	for _, g := range row.Gallery {
		p.Gallery = append(p.Gallery, g.Image)
	}
	return p
}
