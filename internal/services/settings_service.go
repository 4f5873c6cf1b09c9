package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/repositories"
)

const (
	settingsCacheKey        = "upfront:settings:" + domain.SiteSettingsKey
	defaultSettingsCacheTTL = time.Minute
	maxCountryLength        = 64
	maxCurrencySymbolLength = 8
)

var (
	// ErrSettingsInvalidInput indicates an invalid settings or tax payload.
	ErrSettingsInvalidInput = errors.New("settings service: invalid input")
	// ErrSettingsUnavailable indicates the settings store failed.
	ErrSettingsUnavailable = errors.New("settings service: unavailable")
)

// SettingsServiceDeps wires settings persistence and the optional shared cache.
type SettingsServiceDeps struct {
	Settings repositories.SettingsRepository
	Taxes    repositories.TaxRepository
	// Cache is optional. Without it settings are cached in process.
	Cache    redis.UniversalClient
	CacheTTL time.Duration
	Clock    func() time.Time
	Logger   func(context.Context, string, map[string]any)
}

type settingsService struct {
	settings repositories.SettingsRepository
	taxes    repositories.TaxRepository
	cache    redis.UniversalClient
	ttl      time.Duration
	now      func() time.Time
	logger   eventLogger

	mu       sync.Mutex
	local    *SiteSettings
	localExp time.Time
}

var _ SettingsService = (*settingsService)(nil)

// NewSettingsService constructs the settings service.
func NewSettingsService(deps SettingsServiceDeps) (SettingsService, error) {
	if deps.Settings == nil {
		return nil, errors.New("settings service: settings repository is required")
	}
	if deps.Taxes == nil {
		return nil, errors.New("settings service: tax repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultSettingsCacheTTL
	}
	return &settingsService{
		settings: deps.Settings,
		taxes:    deps.Taxes,
		cache:    deps.Cache,
		ttl:      ttl,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

type cachedSettings struct {
	ServiceFeePercent string    `json:"serviceFeePercent"`
	CurrencyCode      string    `json:"currencyCode"`
	CurrencySymbol    string    `json:"currencySymbol"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (s *settingsService) Get(ctx context.Context) (SiteSettings, error) {
	if cached, ok := s.readCache(ctx); ok {
		return cached, nil
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		if !isRepoNotFound(err) {
			return SiteSettings{}, s.translateRepoError(err)
		}
		settings = domain.DefaultSiteSettings()
	}
	s.writeCache(ctx, settings)
	return settings, nil
}

func (s *settingsService) Update(ctx context.Context, cmd UpdateSettingsCommand) (SiteSettings, error) {
	if cmd.ServiceFeePercent == nil && cmd.CurrencyCode == nil && cmd.CurrencySymbol == nil {
		return SiteSettings{}, ErrSettingsInvalidInput
	}

	current, err := s.settings.Get(ctx)
	if err != nil {
		if !isRepoNotFound(err) {
			return SiteSettings{}, s.translateRepoError(err)
		}
		current = domain.DefaultSiteSettings()
	}

	if cmd.ServiceFeePercent != nil {
		fee := *cmd.ServiceFeePercent
		if fee.IsNegative() || fee.GreaterThan(decimal.NewFromInt(100)) {
			return SiteSettings{}, ErrSettingsInvalidInput
		}
		current.ServiceFeePercent = fee
	}
	if cmd.CurrencyCode != nil {
		unit, err := currency.ParseISO(strings.TrimSpace(*cmd.CurrencyCode))
		if err != nil {
			return SiteSettings{}, ErrSettingsInvalidInput
		}
		current.CurrencyCode = unit.String()
	}
	if cmd.CurrencySymbol != nil {
		symbol := strings.TrimSpace(*cmd.CurrencySymbol)
		if symbol == "" || len([]rune(symbol)) > maxCurrencySymbolLength {
			return SiteSettings{}, ErrSettingsInvalidInput
		}
		current.CurrencySymbol = symbol
	}
	current.UpdatedAt = s.now()

	saved, err := s.settings.Save(ctx, current)
	if err != nil {
		return SiteSettings{}, s.translateRepoError(err)
	}
	s.invalidate(ctx)
	s.logger(ctx, "settings.updated", map[string]any{
		"serviceFeePercent": saved.ServiceFeePercent.String(),
		"currency":          saved.CurrencyCode,
	})
	return saved, nil
}

func (s *settingsService) TaxRate(ctx context.Context, country string) (decimal.Decimal, error) {
	country = normaliseCountry(country)
	if country == "" {
		return decimal.Zero, nil
	}
	tax, err := s.taxes.FindByCountry(ctx, country)
	if err != nil {
		if isRepoNotFound(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, s.translateRepoError(err)
	}
	if !tax.Active {
		return decimal.Zero, nil
	}
	return tax.Rate, nil
}

func (s *settingsService) ListTaxes(ctx context.Context) ([]Tax, error) {
	taxes, err := s.taxes.List(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return taxes, nil
}

func (s *settingsService) UpsertTax(ctx context.Context, cmd UpsertTaxCommand) (Tax, error) {
	country := normaliseCountry(cmd.Country)
	if country == "" || len(country) > maxCountryLength {
		return Tax{}, ErrSettingsInvalidInput
	}
	if cmd.Rate.IsNegative() || cmd.Rate.GreaterThan(decimal.NewFromInt(100)) {
		return Tax{}, ErrSettingsInvalidInput
	}
	saved, err := s.taxes.Upsert(ctx, Tax{
		Country:   country,
		Rate:      cmd.Rate,
		Active:    cmd.Active,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return Tax{}, s.translateRepoError(err)
	}
	return saved, nil
}

func (s *settingsService) readCache(ctx context.Context) (SiteSettings, bool) {
	if s.cache == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.local != nil && s.now().Before(s.localExp) {
			return *s.local, true
		}
		return SiteSettings{}, false
	}

	raw, err := s.cache.Get(ctx, settingsCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger(ctx, "settings.cache.read_failed", map[string]any{"error": err.Error()})
		}
		return SiteSettings{}, false
	}
	var payload cachedSettings
	if err := json.Unmarshal(raw, &payload); err != nil {
		return SiteSettings{}, false
	}
	fee, err := decimal.NewFromString(payload.ServiceFeePercent)
	if err != nil {
		return SiteSettings{}, false
	}
	return SiteSettings{
		ServiceFeePercent: fee,
		CurrencyCode:      payload.CurrencyCode,
		CurrencySymbol:    payload.CurrencySymbol,
		UpdatedAt:         payload.UpdatedAt,
	}, true
}

func (s *settingsService) writeCache(ctx context.Context, settings SiteSettings) {
	if s.cache == nil {
		s.mu.Lock()
		snapshot := settings
		s.local = &snapshot
		s.localExp = s.now().Add(s.ttl)
		s.mu.Unlock()
		return
	}
	raw, err := json.Marshal(cachedSettings{
		ServiceFeePercent: settings.ServiceFeePercent.String(),
		CurrencyCode:      settings.CurrencyCode,
		CurrencySymbol:    settings.CurrencySymbol,
		UpdatedAt:         settings.UpdatedAt,
	})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, settingsCacheKey, raw, s.ttl).Err(); err != nil {
		s.logger(ctx, "settings.cache.write_failed", map[string]any{"error": err.Error()})
	}
}

func (s *settingsService) invalidate(ctx context.Context) {
	if s.cache == nil {
		s.mu.Lock()
		s.local = nil
		s.mu.Unlock()
		return
	}
	if err := s.cache.Del(ctx, settingsCacheKey).Err(); err != nil {
		s.logger(ctx, "settings.cache.invalidate_failed", map[string]any{"error": err.Error()})
	}
}

func (s *settingsService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsConflict() {
		return ErrSettingsInvalidInput
	}
	return ErrSettingsUnavailable
}

func normaliseCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}
