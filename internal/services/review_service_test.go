package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/upfront-market/api/internal/domain"
)

func newReviewFixture(t *testing.T) (ReviewService, *fakeReviews) {
	t.Helper()
	products := newFakeProducts(
		domain.Product{ID: "p1", VendorID: "v1", Status: domain.ProductStatusPublished},
		domain.Product{ID: "p2", VendorID: "v1", Status: domain.ProductStatusDraft},
		domain.Product{ID: "p3", VendorID: "v2", Status: domain.ProductStatusPublished},
	)
	reviews := newFakeReviews(products,
		domain.Review{ID: "r1", ProductID: "p1", UserID: "buyer-1", Rating: 5, Comment: "Lovely", Active: true},
		domain.Review{ID: "r2", ProductID: "p1", UserID: "buyer-2", Rating: 2, Comment: "Chipped"},
		domain.Review{ID: "r3", ProductID: "p3", UserID: "buyer-1", Rating: 4, Comment: "Bright", Active: true},
	)
	svc, err := NewReviewService(ReviewServiceDeps{
		Reviews:     reviews,
		Products:    products,
		Clock:       fixedClock,
		IDGenerator: func() string { return "r-new" },
	})
	if err != nil {
		t.Fatalf("NewReviewService: %v", err)
	}
	return svc, reviews
}

func TestReviewServiceCreateStoresHiddenReview(t *testing.T) {
	svc, reviews := newReviewFixture(t)

	review, err := svc.Create(context.Background(), CreateReviewCommand{
		ProductID: " p1 ",
		UserID:    " buyer-3 ",
		Rating:    4,
		Comment:   "  Solid\r\n  mug \x07 ",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if review.ID != "r-new" || review.VendorID != "v1" || review.UserID != "buyer-3" {
		t.Fatalf("unexpected review %+v", review)
	}
	if review.Comment != "Solid\nmug" {
		t.Fatalf("expected sanitized comment, got %q", review.Comment)
	}
	if review.Active {
		t.Fatalf("expected new review hidden until the vendor publishes it")
	}
	if !review.CreatedAt.Equal(testNow) {
		t.Fatalf("expected created at %s, got %s", testNow, review.CreatedAt)
	}
	if _, ok := reviews.items["r-new"]; !ok {
		t.Fatalf("expected review stored")
	}
}

func TestReviewServiceCreateValidation(t *testing.T) {
	svc, _ := newReviewFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  CreateReviewCommand
		want error
	}{
		{"missing user", CreateReviewCommand{ProductID: "p1", Rating: 3, Comment: "ok"}, ErrReviewInvalidInput},
		{"rating too low", CreateReviewCommand{ProductID: "p1", UserID: "u", Rating: 0, Comment: "ok"}, ErrReviewInvalidInput},
		{"rating too high", CreateReviewCommand{ProductID: "p1", UserID: "u", Rating: 6, Comment: "ok"}, ErrReviewInvalidInput},
		{"blank comment", CreateReviewCommand{ProductID: "p1", UserID: "u", Rating: 3, Comment: " \n "}, ErrReviewInvalidInput},
		{"profanity", CreateReviewCommand{ProductID: "p1", UserID: "u", Rating: 1, Comment: "this is shit"}, ErrReviewInvalidInput},
		{"too long", CreateReviewCommand{ProductID: "p1", UserID: "u", Rating: 3, Comment: strings.Repeat("a", maxReviewLength+1)}, ErrReviewInvalidInput},
		{"draft product", CreateReviewCommand{ProductID: "p2", UserID: "u", Rating: 3, Comment: "ok"}, ErrReviewProductNotFound},
		{"unknown product", CreateReviewCommand{ProductID: "nope", UserID: "u", Rating: 3, Comment: "ok"}, ErrReviewProductNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestReviewServiceListForProductShowsActiveOnly(t *testing.T) {
	svc, _ := newReviewFixture(t)

	reviews, err := svc.ListForProduct(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ListForProduct: %v", err)
	}
	if len(reviews) != 1 || reviews[0].ID != "r1" {
		t.Fatalf("expected only the active review, got %+v", reviews)
	}
}

func TestReviewServiceVendorScope(t *testing.T) {
	svc, _ := newReviewFixture(t)
	ctx := context.Background()

	reviews, err := svc.ListForVendor(ctx, "v1")
	if err != nil {
		t.Fatalf("ListForVendor: %v", err)
	}
	if len(reviews) != 2 || reviews[0].ID != "r1" || reviews[1].ID != "r2" {
		t.Fatalf("expected both reviews of v1 products, got %+v", reviews)
	}

	if _, err := svc.GetForVendor(ctx, "v1", "r3"); !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("expected review of another vendor's product hidden, got %v", err)
	}
	if _, err := svc.UpdateForVendor(ctx, UpdateReviewCommand{VendorID: "v1", ReviewID: "r3", Active: boolPtr(false)}); !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("expected foreign review update refused, got %v", err)
	}
}

func TestReviewServiceUpdateForVendor(t *testing.T) {
	svc, reviews := newReviewFixture(t)
	ctx := context.Background()

	updated, err := svc.UpdateForVendor(ctx, UpdateReviewCommand{
		VendorID: "v1",
		ReviewID: "r2",
		Reply:    strPtr("  Sorry, a replacement is on its way  "),
		Active:   boolPtr(true),
	})
	if err != nil {
		t.Fatalf("UpdateForVendor: %v", err)
	}
	if updated.Reply != "Sorry, a replacement is on its way" || !updated.Active {
		t.Fatalf("unexpected review %+v", updated)
	}
	if stored := reviews.items["r2"]; !stored.Active || !stored.UpdatedAt.Equal(testNow) {
		t.Fatalf("expected moderation persisted, got %+v", stored)
	}

	cleared, err := svc.UpdateForVendor(ctx, UpdateReviewCommand{VendorID: "v1", ReviewID: "r2", Reply: strPtr("")})
	if err != nil {
		t.Fatalf("UpdateForVendor clear: %v", err)
	}
	if cleared.Reply != "" || !cleared.Active {
		t.Fatalf("expected reply cleared and visibility kept, got %+v", cleared)
	}

	if _, err := svc.UpdateForVendor(ctx, UpdateReviewCommand{VendorID: "v1", ReviewID: "r2"}); !errors.Is(err, ErrReviewInvalidInput) {
		t.Fatalf("expected empty update rejected, got %v", err)
	}
	if _, err := svc.UpdateForVendor(ctx, UpdateReviewCommand{VendorID: "v1", ReviewID: "r2", Reply: strPtr("fucking great")}); !errors.Is(err, ErrReviewInvalidInput) {
		t.Fatalf("expected profane reply rejected, got %v", err)
	}
}

func TestReviewServiceMapsRepositoryFailures(t *testing.T) {
	svc, reviews := newReviewFixture(t)
	reviews.err = errBoom

	if _, err := svc.ListForVendor(context.Background(), "v1"); !errors.Is(err, ErrReviewUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := svc.ListForProduct(context.Background(), " "); !errors.Is(err, ErrReviewInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
