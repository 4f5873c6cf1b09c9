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

// SettingsRepository stores the site settings singleton. The fixed primary key makes a second
// instance impossible; there is no delete operation.
type SettingsRepository struct {
	provider *database.Provider
}

var _ repositories.SettingsRepository = (*SettingsRepository)(nil)

// NewSettingsRepository constructs a SQL backed settings repository.
func NewSettingsRepository(provider *database.Provider) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository requires database provider")
	}
	return &SettingsRepository{provider: provider}, nil
}

// Get returns the stored settings or a not-found error when none were saved yet.
func (r *SettingsRepository) Get(ctx context.Context) (domain.SiteSettings, error) {
	var row siteSettingsRow
	if err := r.provider.DB(ctx).Where("setting_key = ?", domain.SiteSettingsKey).Take(&row).Error; err != nil {
		return domain.SiteSettings{}, database.WrapError("settings.get", err)
	}
	return domain.SiteSettings{
		ServiceFeePercent: row.ServiceFeePercent,
		CurrencyCode:      row.CurrencyCode,
		CurrencySymbol:    row.CurrencySymbol,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

// Save creates the singleton or overwrites it.
func (r *SettingsRepository) Save(ctx context.Context, settings domain.SiteSettings) (domain.SiteSettings, error) {
	row := siteSettingsRow{
		Key:               domain.SiteSettingsKey,
		ServiceFeePercent: settings.ServiceFeePercent.Round(2),
		CurrencyCode:      strings.ToUpper(strings.TrimSpace(settings.CurrencyCode)),
		CurrencySymbol:    strings.TrimSpace(settings.CurrencySymbol),
		UpdatedAt:         settings.UpdatedAt,
	}
	err := r.provider.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"service_fee_percent", "currency_code", "currency_symbol", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return domain.SiteSettings{}, database.WrapError("settings.save", err)
	}
	return domain.SiteSettings{
		ServiceFeePercent: row.ServiceFeePercent,
		CurrencyCode:      row.CurrencyCode,
		CurrencySymbol:    row.CurrencySymbol,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}
