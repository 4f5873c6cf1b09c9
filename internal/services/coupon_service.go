package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/repositories"
)

const (
	couponApplyAttempts = 3
	maxCouponCodeLength = 40

	couponMessageActivated        = "Coupon Successfully Activated"
	couponMessageAlreadyActivated = "Coupon Already Activated"
	couponMessageNoItems          = "Order Item Does not Exists"
	couponMessageUnknown          = "Coupon Does not Exists"
)

var (
	// ErrCouponInvalidInput indicates an invalid coupon payload.
	ErrCouponInvalidInput = errors.New("coupon service: invalid input")
	// ErrCouponNotFound indicates the vendor coupon does not exist.
	ErrCouponNotFound = errors.New("coupon service: not found")
	// ErrCouponCodeTaken indicates another coupon already uses the code.
	ErrCouponCodeTaken = errors.New("coupon service: code already in use")
	// ErrCouponConflict indicates the order kept changing while the coupon was applied.
	ErrCouponConflict = errors.New("coupon service: conflict")
	// ErrCouponUnavailable indicates backend failures.
	ErrCouponUnavailable = errors.New("coupon service: unavailable")
)

// CouponServiceDeps wires coupon and order persistence.
type CouponServiceDeps struct {
	Coupons     repositories.CouponRepository
	Orders      repositories.OrderRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type couponService struct {
	coupons repositories.CouponRepository
	orders  repositories.OrderRepository
	uow     repositories.UnitOfWork
	now     func() time.Time
	logger  eventLogger
	newID   func() string
}

var _ CouponService = (*couponService)(nil)

// NewCouponService constructs the coupon engine.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("coupon service: order repository is required")
	}
	if deps.UnitOfWork == nil {
		return nil, errors.New("coupon service: unit of work is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = defaultIDGenerator
	}
	return &couponService{
		coupons: deps.Coupons,
		orders:  deps.Orders,
		uow:     deps.UnitOfWork,
		now:     func() time.Time { return clock().UTC() },
		logger:  logger,
		newID:   idGen,
	}, nil
}

// Apply discounts every item of the coupon's vendor that does not carry the coupon yet. Item and
// order totals move together in one transaction guarded by the order version.
func (s *couponService) Apply(ctx context.Context, cmd ApplyCouponCommand) (CouponResult, error) {
	oid := strings.TrimSpace(cmd.OrderOID)
	code := normaliseCouponCode(cmd.Code)
	if oid == "" || code == "" {
		return CouponResult{}, ErrCouponInvalidInput
	}

	var result CouponResult
	var err error
	for attempt := 0; attempt < couponApplyAttempts; attempt++ {
		err = s.uow.RunInTx(ctx, func(txCtx context.Context) error {
			var innerErr error
			result, innerErr = s.apply(txCtx, oid, code)
			return innerErr
		})
		if err == nil || !isRepoConflict(err) {
			break
		}
		s.logger(ctx, "coupon.apply.retry", map[string]any{"oid": oid, "attempt": attempt + 1})
	}
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return CouponResult{}, ErrOrderNotFound
		}
		if isRepoConflict(err) {
			return CouponResult{}, ErrCouponConflict
		}
		return CouponResult{}, ErrCouponUnavailable
	}

	if result.Status == ResultSuccess {
		s.logger(ctx, "coupon.applied", map[string]any{
			"oid":   oid,
			"code":  code,
			"items": result.DiscountedItems,
		})
	}
	return result, nil
}

func (s *couponService) apply(ctx context.Context, oid, code string) (CouponResult, error) {
	order, err := s.orders.FindByOID(ctx, oid)
	if err != nil {
		if isRepoNotFound(err) {
			return CouponResult{}, ErrOrderNotFound
		}
		return CouponResult{}, err
	}

	coupon, err := s.coupons.FindActiveByCode(ctx, code)
	if err != nil {
		if isRepoNotFound(err) {
			return CouponResult{Status: ResultError, Message: couponMessageUnknown}, nil
		}
		return CouponResult{}, err
	}

	vendorItems := order.ItemsForVendor(coupon.VendorID)
	if len(vendorItems) == 0 {
		return CouponResult{Status: ResultError, Message: couponMessageNoItems}, nil
	}

	pct := decimal.NewFromInt(int64(coupon.Discount))
	discounted := 0
	for i := range order.Items {
		item := &order.Items[i]
		if item.VendorID != coupon.VendorID || item.HasCoupon(coupon.ID) {
			continue
		}
		discount := domain.RoundMoney(domain.Percent(item.Amounts.Total, pct))
		item.Amounts = item.Amounts.ApplyDiscount(discount)
		item.Saved = item.Saved.Add(discount)
		item.CouponIDs = append(item.CouponIDs, coupon.ID)
		if err := s.orders.UpdateItemAmounts(ctx, *item); err != nil {
			return CouponResult{}, err
		}
		if err := s.orders.AttachCoupon(ctx, item.ID, coupon.ID); err != nil {
			return CouponResult{}, err
		}
		order.Amounts = order.Amounts.ApplyDiscount(discount)
		order.Saved = order.Saved.Add(discount)
		discounted++
	}
	if discounted == 0 {
		return CouponResult{Status: ResultWarning, Message: couponMessageAlreadyActivated, Order: &order}, nil
	}

	updated, err := s.orders.UpdateAmounts(ctx, order, order.Version)
	if err != nil {
		return CouponResult{}, err
	}
	return CouponResult{
		Status:          ResultSuccess,
		Message:         couponMessageActivated,
		DiscountedItems: discounted,
		Order:           &updated,
	}, nil
}

func (s *couponService) ListVendorCoupons(ctx context.Context, vendorID string) ([]Coupon, error) {
	vendorID = strings.TrimSpace(vendorID)
	if vendorID == "" {
		return nil, ErrCouponInvalidInput
	}
	coupons, err := s.coupons.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return coupons, nil
}

func (s *couponService) CreateVendorCoupon(ctx context.Context, cmd CreateCouponCommand) (Coupon, error) {
	vendorID := strings.TrimSpace(cmd.VendorID)
	code := normaliseCouponCode(cmd.Code)
	if vendorID == "" || code == "" || len(code) > maxCouponCodeLength || !validDiscount(cmd.Discount) {
		return Coupon{}, ErrCouponInvalidInput
	}
	created, err := s.coupons.Insert(ctx, Coupon{
		ID:        s.newID(),
		VendorID:  vendorID,
		Code:      code,
		Discount:  cmd.Discount,
		Active:    cmd.Active,
		CreatedAt: s.now(),
	})
	if err != nil {
		if isRepoConflict(err) {
			return Coupon{}, ErrCouponCodeTaken
		}
		return Coupon{}, s.translateRepoError(err)
	}
	s.logger(ctx, "coupon.created", map[string]any{"vendorID": vendorID, "couponID": created.ID})
	return created, nil
}

func (s *couponService) GetVendorCoupon(ctx context.Context, vendorID string, couponID string) (Coupon, error) {
	vendorID = strings.TrimSpace(vendorID)
	couponID = strings.TrimSpace(couponID)
	if vendorID == "" || couponID == "" {
		return Coupon{}, ErrCouponInvalidInput
	}
	coupon, err := s.coupons.FindByID(ctx, vendorID, couponID)
	if err != nil {
		return Coupon{}, s.translateRepoError(err)
	}
	return coupon, nil
}

func (s *couponService) UpdateVendorCoupon(ctx context.Context, cmd UpdateCouponCommand) (Coupon, error) {
	if cmd.Discount == nil && cmd.Active == nil {
		return Coupon{}, ErrCouponInvalidInput
	}
	if cmd.Discount != nil && !validDiscount(*cmd.Discount) {
		return Coupon{}, ErrCouponInvalidInput
	}
	coupon, err := s.GetVendorCoupon(ctx, cmd.VendorID, cmd.CouponID)
	if err != nil {
		return Coupon{}, err
	}
	if cmd.Discount != nil {
		coupon.Discount = *cmd.Discount
	}
	if cmd.Active != nil {
		coupon.Active = *cmd.Active
	}
	updated, err := s.coupons.Update(ctx, coupon)
	if err != nil {
		return Coupon{}, s.translateRepoError(err)
	}
	return updated, nil
}

func (s *couponService) DeleteVendorCoupon(ctx context.Context, vendorID string, couponID string) error {
	vendorID = strings.TrimSpace(vendorID)
	couponID = strings.TrimSpace(couponID)
	if vendorID == "" || couponID == "" {
		return ErrCouponInvalidInput
	}
	if err := s.coupons.Delete(ctx, vendorID, couponID); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *couponService) VendorCouponStats(ctx context.Context, vendorID string) (CouponStats, error) {
	coupons, err := s.ListVendorCoupons(ctx, vendorID)
	if err != nil {
		return CouponStats{}, err
	}
	stats := CouponStats{Total: len(coupons)}
	for _, coupon := range coupons {
		if coupon.Active {
			stats.Active++
		}
	}
	return stats, nil
}

func (s *couponService) translateRepoError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCouponNotFound
		case repoErr.IsConflict():
			return ErrCouponCodeTaken
		}
	}
	return ErrCouponUnavailable
}

func normaliseCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validDiscount(pct int) bool {
	return pct >= 1 && pct <= 100
}
