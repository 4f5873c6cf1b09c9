package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/platform/pagination"
	"github.com/upfront-market/api/internal/repositories"
)

const (
	maxProductTitleLength = 90
	maxProductSlugLength  = 40
)

var (
	// ErrCatalogNotFound indicates the product, shop or category does not exist.
	ErrCatalogNotFound = errors.New("catalog service: not found")
	// ErrCatalogInvalidInput indicates an invalid product or category payload.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogUnavailable indicates backend failures.
	ErrCatalogUnavailable = errors.New("catalog service: unavailable")
)

// CatalogServiceDeps wires catalog persistence.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Vendors     repositories.VendorRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type catalogService struct {
	products repositories.ProductRepository
	vendors  repositories.VendorRepository
	now      func() time.Time
	newID    func() string
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs the catalog service.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Vendors == nil {
		return nil, errors.New("catalog service: vendor repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = defaultIDGenerator
	}
	return &catalogService{
		products: deps.Products,
		vendors:  deps.Vendors,
		now:      func() time.Time { return clock().UTC() },
		newID:    idGen,
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.Page[Product], error) {
	page, err := s.products.ListPublished(ctx, repositories.ProductFilter{
		CategoryID: strings.TrimSpace(filter.CategoryID),
		VendorID:   strings.TrimSpace(filter.VendorID),
		Featured:   filter.Featured,
		Pagination: normalisePager(filter.Pagination),
	})
	if err != nil {
		return domain.Page[Product]{}, s.translateRepoError(err)
	}
	return page, nil
}

func (s *catalogService) GetProduct(ctx context.Context, slug string) (Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Product{}, ErrCatalogInvalidInput
	}
	product, err := s.products.FindPublishedBySlug(ctx, slug)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	return product, nil
}

func (s *catalogService) GetShop(ctx context.Context, slug string) (Vendor, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Vendor{}, ErrCatalogInvalidInput
	}
	vendor, err := s.vendors.FindBySlug(ctx, slug)
	if err != nil {
		return Vendor{}, s.translateRepoError(err)
	}
	if !vendor.Active {
		return Vendor{}, ErrCatalogNotFound
	}
	return vendor, nil
}

func (s *catalogService) ListShopProducts(ctx context.Context, slug string, pager Pagination) (domain.Page[Product], error) {
	vendor, err := s.GetShop(ctx, slug)
	if err != nil {
		return domain.Page[Product]{}, err
	}
	return s.ListProducts(ctx, ProductListFilter{VendorID: vendor.ID, Pagination: pager})
}

func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.products.ListCategories(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return categories, nil
}

// SaveProduct validates and stores a product. Titles and slugs longer than the storefront
// limits are truncated.
func (s *catalogService) SaveProduct(ctx context.Context, product Product) (Product, error) {
	product.Title = truncateRunes(strings.TrimSpace(product.Title), maxProductTitleLength)
	product.Slug = truncateRunes(strings.ToLower(strings.TrimSpace(product.Slug)), maxProductSlugLength)
	product.VendorID = strings.TrimSpace(product.VendorID)
	if product.Title == "" || product.Slug == "" || product.VendorID == "" {
		return Product{}, ErrCatalogInvalidInput
	}
	if product.Price.IsNegative() || product.ShippingAmount.IsNegative() || product.Stock < 0 {
		return Product{}, ErrCatalogInvalidInput
	}
	if product.Status == "" {
		product.Status = domain.ProductStatusDraft
	}
	if !product.Status.Valid() {
		return Product{}, ErrCatalogInvalidInput
	}
	for _, size := range product.Sizes {
		if strings.TrimSpace(size.Name) == "" || size.Price.IsNegative() {
			return Product{}, ErrCatalogInvalidInput
		}
	}
	if _, err := s.vendors.FindByID(ctx, product.VendorID); err != nil {
		if isRepoNotFound(err) {
			return Product{}, ErrCatalogInvalidInput
		}
		return Product{}, ErrCatalogUnavailable
	}

	now := s.now()
	if strings.TrimSpace(product.ID) == "" {
		product.ID = s.newID()
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	saved, err := s.products.Save(ctx, product)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	return saved, nil
}

func (s *catalogService) SaveCategory(ctx context.Context, category Category) (Category, error) {
	category.Title = strings.TrimSpace(category.Title)
	category.Slug = strings.ToLower(strings.TrimSpace(category.Slug))
	if category.Title == "" || category.Slug == "" {
		return Category{}, ErrCatalogInvalidInput
	}
	if strings.TrimSpace(category.ID) == "" {
		category.ID = s.newID()
	}
	saved, err := s.products.SaveCategory(ctx, category)
	if err != nil {
		return Category{}, s.translateRepoError(err)
	}
	return saved, nil
}

func (s *catalogService) translateRepoError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCatalogNotFound
		case repoErr.IsConflict():
			return ErrCatalogInvalidInput
		}
	}
	return ErrCatalogUnavailable
}

func normalisePager(p Pagination) Pagination {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = pagination.DefaultPageSize
	}
	if p.PageSize > pagination.DefaultMaxPageSize {
		p.PageSize = pagination.DefaultMaxPageSize
	}
	return p
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
