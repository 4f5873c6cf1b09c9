package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/services"
)

func newReviewRouter(reviews services.ReviewService) chi.Router {
	router := chi.NewRouter()
	router.Group(NewReviewHandlers(nil, reviews).Routes)
	return router
}

func TestReviewHandlersCreateSuccess(t *testing.T) {
	now := time.Date(2024, 7, 15, 10, 30, 0, 0, time.UTC)
	var captured services.CreateReviewCommand
	reviews := &stubReviewService{
		createFunc: func(_ context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
			captured = cmd
			return services.Review{ID: "rev-1", ProductID: cmd.ProductID, UserID: cmd.UserID, Rating: cmd.Rating, Comment: cmd.Comment, CreatedAt: now}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/reviews/prod-1", strings.NewReader(`{"rating":5,"review":"Great mug"}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "buyer-1"}))
	rr := httptest.NewRecorder()
	newReviewRouter(reviews).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ProductID != "prod-1" || captured.UserID != "buyer-1" || captured.Rating != 5 || captured.Comment != "Great mug" {
		t.Fatalf("unexpected command %+v", captured)
	}
	var payload reviewCreatedResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Review.ID != "rev-1" || payload.Review.CreatedAt != formatTime(now) {
		t.Fatalf("unexpected review payload %#v", payload.Review)
	}
	if payload.Review.UserID != "" {
		t.Fatalf("expected buyer id omitted from storefront payload, got %q", payload.Review.UserID)
	}
}

func TestReviewHandlersCreateRequiresIdentityAndValidBody(t *testing.T) {
	reviews := &stubReviewService{
		createFunc: func(context.Context, services.CreateReviewCommand) (services.Review, error) {
			t.Fatalf("service must not be called")
			return services.Review{}, nil
		},
	}
	router := newReviewRouter(reviews)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/reviews/prod-1", strings.NewReader(`{"rating":5,"review":"ok"}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}

	for _, body := range []string{`{"rating":9,"review":"ok"}`, `{"rating":3}`, `{"rating":3,"review":"ok","stars":4}`} {
		req := httptest.NewRequest(http.MethodPost, "/reviews/prod-1", strings.NewReader(body))
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "buyer-1"}))
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400 for %s, got %d", body, rr.Code)
		}
	}
}

func TestReviewHandlersListAndErrors(t *testing.T) {
	reviews := &stubReviewService{
		listProductFunc: func(_ context.Context, productID string) ([]services.Review, error) {
			if productID != "prod-1" {
				t.Fatalf("unexpected product %q", productID)
			}
			return []services.Review{{ID: "rev-1", ProductID: productID, UserID: "buyer-1", Rating: 4, Comment: "Nice", Reply: "Thanks", Active: true}}, nil
		},
		createFunc: func(context.Context, services.CreateReviewCommand) (services.Review, error) {
			return services.Review{}, services.ErrReviewProductNotFound
		},
	}
	router := newReviewRouter(reviews)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reviews/prod-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var listed []reviewPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("failed to decode reviews: %v", err)
	}
	if len(listed) != 1 || listed[0].Reply != "Thanks" || listed[0].UserID != "" {
		t.Fatalf("unexpected reviews %#v", listed)
	}

	req := httptest.NewRequest(http.MethodPost, "/reviews/draft-1", strings.NewReader(`{"rating":3,"review":"ok"}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "buyer-1"}))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	newReviewRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reviews/prod-1", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
