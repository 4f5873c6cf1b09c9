package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/repositories"
)

const maxReviewLength = 1000

var (
	// ErrReviewInvalidInput indicates validation failures for review operations.
	ErrReviewInvalidInput = errors.New("review service: invalid input")
	// ErrReviewNotFound indicates the review does not exist or belongs to another vendor's product.
	ErrReviewNotFound = errors.New("review service: not found")
	// ErrReviewProductNotFound indicates the reviewed product is missing or not published.
	ErrReviewProductNotFound = errors.New("review service: product not found")
	// ErrReviewUnavailable indicates backend failures.
	ErrReviewUnavailable = errors.New("review service: unavailable")
)

// ReviewServiceDeps bundles collaborators required to construct a ReviewService.
type ReviewServiceDeps struct {
	Reviews          repositories.ReviewRepository
	Products         repositories.ProductRepository
	Clock            func() time.Time
	IDGenerator      func() string
	Sanitizer        func(string) string
	ProfanityChecker func(string) bool
	Logger           func(context.Context, string, map[string]any)
}

type reviewService struct {
	reviews   repositories.ReviewRepository
	products  repositories.ProductRepository
	now       func() time.Time
	newID     func() string
	sanitize  func(string) string
	isProfane func(string) bool
	logger    eventLogger
}

var _ ReviewService = (*reviewService)(nil)

// NewReviewService wires dependencies into a concrete ReviewService implementation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("review service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = defaultIDGenerator
	}
	sanitize := deps.Sanitizer
	if sanitize == nil {
		sanitize = sanitizeReviewText
	}
	profanity := deps.ProfanityChecker
	if profanity == nil {
		profanity = basicProfanityChecker
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &reviewService{
		reviews:   deps.Reviews,
		products:  deps.Products,
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		sanitize:  sanitize,
		isProfane: profanity,
		logger:    logger,
	}, nil
}

// ListForProduct returns the published reviews of a product, newest first.
func (s *reviewService) ListForProduct(ctx context.Context, productID string) ([]Review, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrReviewInvalidInput)
	}
	reviews, err := s.reviews.ListByProduct(ctx, productID, true)
	if err != nil {
		return nil, s.mapReviewError(err)
	}
	return reviews, nil
}

// Create stores a hidden review of a published product. The vendor decides when it is shown.
func (s *reviewService) Create(ctx context.Context, cmd CreateReviewCommand) (Review, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	userID := strings.TrimSpace(cmd.UserID)
	if productID == "" {
		return Review{}, fmt.Errorf("%w: product id is required", ErrReviewInvalidInput)
	}
	if userID == "" {
		return Review{}, fmt.Errorf("%w: user id is required", ErrReviewInvalidInput)
	}
	if cmd.Rating < 1 || cmd.Rating > domain.ReviewMaxRating {
		return Review{}, fmt.Errorf("%w: rating must be between 1 and %d", ErrReviewInvalidInput, domain.ReviewMaxRating)
	}
	comment, err := s.cleanText(cmd.Comment, "review")
	if err != nil {
		return Review{}, err
	}
	if comment == "" {
		return Review{}, fmt.Errorf("%w: review is required", ErrReviewInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Review{}, ErrReviewProductNotFound
		}
		return Review{}, ErrReviewUnavailable
	}
	if product.Status != domain.ProductStatusPublished {
		return Review{}, ErrReviewProductNotFound
	}

	now := s.now()
	created, err := s.reviews.Insert(ctx, Review{
		ID:        s.newID(),
		ProductID: product.ID,
		VendorID:  product.VendorID,
		UserID:    userID,
		Rating:    cmd.Rating,
		Comment:   comment,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Review{}, s.mapReviewError(err)
	}
	s.logger(ctx, "review.created", map[string]any{
		"reviewId":  created.ID,
		"productId": created.ProductID,
		"vendorId":  created.VendorID,
		"rating":    created.Rating,
	})
	return created, nil
}

// ListForVendor returns every review of the vendor's products, hidden ones included.
func (s *reviewService) ListForVendor(ctx context.Context, vendorID string) ([]Review, error) {
	vendorID = strings.TrimSpace(vendorID)
	if vendorID == "" {
		return nil, fmt.Errorf("%w: vendor id is required", ErrReviewInvalidInput)
	}
	reviews, err := s.reviews.ListForVendor(ctx, vendorID)
	if err != nil {
		return nil, s.mapReviewError(err)
	}
	return reviews, nil
}

func (s *reviewService) GetForVendor(ctx context.Context, vendorID string, reviewID string) (Review, error) {
	vendorID = strings.TrimSpace(vendorID)
	reviewID = strings.TrimSpace(reviewID)
	if vendorID == "" || reviewID == "" {
		return Review{}, fmt.Errorf("%w: vendor id and review id are required", ErrReviewInvalidInput)
	}
	review, err := s.reviews.FindForVendor(ctx, vendorID, reviewID)
	if err != nil {
		return Review{}, s.mapReviewError(err)
	}
	return review, nil
}

// UpdateForVendor applies the provided reply and visibility. An empty reply clears it.
func (s *reviewService) UpdateForVendor(ctx context.Context, cmd UpdateReviewCommand) (Review, error) {
	if cmd.Reply == nil && cmd.Active == nil {
		return Review{}, fmt.Errorf("%w: reply or active is required", ErrReviewInvalidInput)
	}
	review, err := s.GetForVendor(ctx, cmd.VendorID, cmd.ReviewID)
	if err != nil {
		return Review{}, err
	}
	if cmd.Reply != nil {
		reply, err := s.cleanText(*cmd.Reply, "reply")
		if err != nil {
			return Review{}, err
		}
		review.Reply = reply
	}
	if cmd.Active != nil {
		review.Active = *cmd.Active
	}
	review.UpdatedAt = s.now()

	updated, err := s.reviews.UpdateModeration(ctx, review)
	if err != nil {
		return Review{}, s.mapReviewError(err)
	}
	s.logger(ctx, "review.moderated", map[string]any{
		"reviewId": updated.ID,
		"vendorId": updated.VendorID,
		"active":   updated.Active,
		"replied":  updated.Reply != "",
	})
	return updated, nil
}

func (s *reviewService) cleanText(input string, field string) (string, error) {
	text := s.sanitize(input)
	if len([]rune(text)) > maxReviewLength {
		return "", fmt.Errorf("%w: %s must be at most %d characters", ErrReviewInvalidInput, field, maxReviewLength)
	}
	if text != "" && s.isProfane(text) {
		return "", fmt.Errorf("%w: %s contains profanity", ErrReviewInvalidInput, field)
	}
	return text, nil
}

func (s *reviewService) mapReviewError(err error) error {
	switch {
	case isRepoNotFound(err):
		return ErrReviewNotFound
	case isRepoConflict(err):
		return fmt.Errorf("%w: review already exists", ErrReviewInvalidInput)
	default:
		return ErrReviewUnavailable
	}
}

var defaultProfanityTerms = map[string]struct{}{
	"asshole": {},
	"bastard": {},
	"bitch":   {},
	"fuck":    {},
	"fucker":  {},
	"fucking": {},
	"shit":    {},
	"shitty":  {},
	"slut":    {},
	"whore":   {},
}

func basicProfanityChecker(input string) bool {
	if input == "" {
		return false
	}
	words := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsNumber(r))
	})
	for _, word := range words {
		if _, ok := defaultProfanityTerms[word]; ok {
			return true
		}
	}
	return false
}

// sanitizeReviewText trims whitespace, strips control characters and collapses spacing while
// keeping intentional newlines.
func sanitizeReviewText(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(strings.ReplaceAll(trimmed, "\r\n", "\n"), "\r", "\n")
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		line = strings.Map(func(r rune) rune {
			if unicode.IsControl(r) {
				return -1
			}
			return r
		}, line)
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
