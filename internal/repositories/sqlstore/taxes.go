package sqlstore

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm/clause"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/platform/database"
	"github.com/upfront-market/api/internal/repositories"
)

// TaxRepository persists per-country tax rates keyed by upper-cased country.
type TaxRepository struct {
	provider *database.Provider
}

var _ repositories.TaxRepository = (*TaxRepository)(nil)

// NewTaxRepository constructs a SQL backed tax repository.
func NewTaxRepository(provider *database.Provider) (*TaxRepository, error) {
	if provider == nil {
		return nil, errors.New("tax repository requires database provider")
	}
	return &TaxRepository{provider: provider}, nil
}

func (r *TaxRepository) FindByCountry(ctx context.Context, country string) (domain.Tax, error) {
	var row taxRow
	if err := r.provider.DB(ctx).Where("country = ?", normalizeCountry(country)).Take(&row).Error; err != nil {
		return domain.Tax{}, database.WrapError("taxes.find", err)
	}
	return row.toDomain(), nil
}

func (r *TaxRepository) List(ctx context.Context) ([]domain.Tax, error) {
	var rows []taxRow
	if err := r.provider.DB(ctx).Order("country").Find(&rows).Error; err != nil {
		return nil, database.WrapError("taxes.list", err)
	}
	out := make([]domain.Tax, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Upsert inserts or replaces the rate of a country.
func (r *TaxRepository) Upsert(ctx context.Context, tax domain.Tax) (domain.Tax, error) {
	row := taxRow{
		Country:   normalizeCountry(tax.Country),
		Rate:      tax.Rate.Round(2),
		Active:    tax.Active,
		UpdatedAt: tax.UpdatedAt,
	}
	if row.Country == "" {
		return domain.Tax{}, errors.New("tax repository: country is required")
	}
	err := r.provider.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "country"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate", "active", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return domain.Tax{}, database.WrapError("taxes.upsert", err)
	}
	return row.toDomain(), nil
}

func normalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

func (row taxRow) toDomain() domain.Tax {
	return domain.Tax{Country: row.Country, Rate: row.Rate, Active: row.Active, UpdatedAt: row.UpdatedAt}
}
