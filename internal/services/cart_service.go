package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/repositories"
)

const (
	maxCartLineQty = 1000
	maxCartLabel   = 100
)

var (
	// ErrCartInvalidInput indicates the caller supplied invalid input.
	ErrCartInvalidInput = errors.New("cart service: invalid input")
	// ErrCartUnavailable indicates backend failures.
	ErrCartUnavailable = errors.New("cart service: unavailable")
	// ErrCartItemNotFound indicates the cart line does not exist.
	ErrCartItemNotFound = errors.New("cart service: item not found")
	// ErrCartProductNotFound indicates the referenced product does not exist.
	ErrCartProductNotFound = errors.New("cart service: product not found")
	// ErrCartProductUnavailable indicates the product is not published.
	ErrCartProductUnavailable = errors.New("cart service: product unavailable")
	// ErrCartInsufficientStock indicates the requested quantity exceeds stock.
	ErrCartInsufficientStock = errors.New("cart service: insufficient stock")
	// ErrCartConflict indicates concurrent writers kept colliding on the same line.
	ErrCartConflict = errors.New("cart service: conflict")
)

// CartServiceDeps wires the repositories and pricing engine used by cart operations.
type CartServiceDeps struct {
	Carts      repositories.CartRepository
	Products   repositories.ProductRepository
	Pricer     PricingEngine
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	pricer   PricingEngine
	uow      repositories.UnitOfWork
	now      func() time.Time
	logger   eventLogger
}

var _ CartService = (*cartService)(nil)

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	if deps.Pricer == nil {
		return nil, errors.New("cart service: pricing engine is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		pricer:   deps.Pricer,
		uow:      deps.UnitOfWork,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

// UpsertLine adds, updates or removes the line of cmd.ProductID in the cart. Lines are unique
// per (cart, product); a concurrent insert of the same pair is retried once as an update.
func (s *cartService) UpsertLine(ctx context.Context, cmd UpsertCartLineCommand) (CartLineResult, error) {
	cmd.CartID = strings.TrimSpace(cmd.CartID)
	cmd.ProductID = strings.TrimSpace(cmd.ProductID)
	cmd.Country = strings.TrimSpace(cmd.Country)
	cmd.Size = strings.TrimSpace(cmd.Size)
	cmd.Color = strings.TrimSpace(cmd.Color)
	if err := validateCartLine(cmd); err != nil {
		return CartLineResult{}, err
	}

	var result CartLineResult
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = s.runInTx(ctx, func(txCtx context.Context) error {
			var innerErr error
			result, innerErr = s.upsert(txCtx, cmd)
			return innerErr
		})
		if err == nil || !isRepoConflict(err) {
			break
		}
	}
	if err != nil {
		return CartLineResult{}, s.translateRepoError(err)
	}

	s.logger(ctx, "cart.line."+string(result.Outcome), map[string]any{
		"cartID":    cmd.CartID,
		"productID": cmd.ProductID,
		"qty":       cmd.Qty,
	})
	return result, nil
}

func (s *cartService) upsert(ctx context.Context, cmd UpsertCartLineCommand) (CartLineResult, error) {
	existing, err := s.carts.FindLine(ctx, cmd.CartID, cmd.ProductID)
	found := err == nil
	if err != nil && !isRepoNotFound(err) {
		return CartLineResult{}, err
	}

	if cmd.Qty == 0 {
		if !found {
			return CartLineResult{}, ErrCartItemNotFound
		}
		if err := s.carts.DeleteLine(ctx, cmd.CartID, existing.ID, nil); err != nil {
			return CartLineResult{}, err
		}
		return CartLineResult{Outcome: CartLineRemoved}, nil
	}

	product, err := s.products.FindByID(ctx, cmd.ProductID)
	if err != nil {
		if isRepoNotFound(err) {
			return CartLineResult{}, ErrCartProductNotFound
		}
		return CartLineResult{}, err
	}
	if product.Status != domain.ProductStatusPublished {
		return CartLineResult{}, ErrCartProductUnavailable
	}
	if cmd.Qty > product.Stock {
		return CartLineResult{}, ErrCartInsufficientStock
	}

	amounts, err := s.pricer.Price(ctx, LineInput{
		Product:         &product,
		Size:            cmd.Size,
		ClientPrice:     cmd.Price,
		Qty:             cmd.Qty,
		ShippingPerUnit: cmd.ShippingAmount,
		Country:         cmd.Country,
	})
	if err != nil {
		return CartLineResult{}, translatePricingError(err)
	}

	item := CartItem{CartID: cmd.CartID, ProductID: product.ID, CreatedAt: s.now()}
	outcome := CartLineCreated
	if found {
		item = existing
		outcome = CartLineUpdated
	}
	item.UserID = normaliseUserID(cmd.UserID)
	item.VendorID = product.VendorID
	item.Qty = cmd.Qty
	item.Size = cmd.Size
	item.Color = cmd.Color
	item.Country = cmd.Country
	item.Amounts = amounts
	item.UpdatedAt = s.now()

	saved, err := s.carts.SaveLine(ctx, item)
	if err != nil {
		return CartLineResult{}, err
	}
	return CartLineResult{Outcome: outcome, Item: saved}, nil
}

func (s *cartService) ListLines(ctx context.Context, cartID string, userID string) ([]CartItem, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return nil, ErrCartInvalidInput
	}
	lines, err := s.carts.ListLines(ctx, cartID, normaliseUserID(userID))
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return lines, nil
}

// Totals sums the monetary fields of every line in the cart.
func (s *cartService) Totals(ctx context.Context, cartID string, userID string) (CartTotals, error) {
	lines, err := s.ListLines(ctx, cartID, userID)
	if err != nil {
		return CartTotals{}, err
	}
	totals := CartTotals{CartID: strings.TrimSpace(cartID), ItemCount: len(lines)}
	for _, line := range lines {
		totals.Amounts = totals.Amounts.Add(line.Amounts)
	}
	return totals, nil
}

func (s *cartService) DeleteLine(ctx context.Context, cartID string, itemID string, userID string) error {
	cartID = strings.TrimSpace(cartID)
	itemID = strings.TrimSpace(itemID)
	if cartID == "" || itemID == "" {
		return ErrCartInvalidInput
	}
	if err := s.carts.DeleteLine(ctx, cartID, itemID, normaliseUserID(userID)); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

// Clear removes every line of the cart and reports how many were deleted.
func (s *cartService) Clear(ctx context.Context, cartID string) (int64, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return 0, ErrCartInvalidInput
	}
	removed, err := s.carts.DeleteCart(ctx, cartID)
	if err != nil {
		return 0, s.translateRepoError(err)
	}
	return removed, nil
}

func (s *cartService) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.uow == nil {
		return fn(ctx)
	}
	return s.uow.RunInTx(ctx, fn)
}

func validateCartLine(cmd UpsertCartLineCommand) error {
	switch {
	case cmd.CartID == "", cmd.ProductID == "":
		return ErrCartInvalidInput
	case cmd.Qty < 0, cmd.Qty > maxCartLineQty:
		return ErrCartInvalidInput
	case cmd.Price.IsNegative():
		return ErrCartInvalidInput
	case cmd.ShippingAmount != nil && cmd.ShippingAmount.IsNegative():
		return ErrCartInvalidInput
	case len(cmd.Country) > maxCountryLength:
		return ErrCartInvalidInput
	case len(cmd.Size) > maxCartLabel, len(cmd.Color) > maxCartLabel:
		return ErrCartInvalidInput
	}
	return nil
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrCartInvalidInput),
		errors.Is(err, ErrCartItemNotFound),
		errors.Is(err, ErrCartProductNotFound),
		errors.Is(err, ErrCartProductUnavailable),
		errors.Is(err, ErrCartInsufficientStock),
		errors.Is(err, ErrCartUnavailable):
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartItemNotFound
		case repoErr.IsConflict():
			return ErrCartConflict
		}
	}
	return ErrCartUnavailable
}

func translatePricingError(err error) error {
	switch {
	case errors.Is(err, ErrPricingInvalidInput):
		return ErrCartInvalidInput
	case errors.Is(err, ErrPricingProductNotFound):
		return ErrCartProductNotFound
	}
	return ErrCartUnavailable
}
