package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/platform/httpx"
	"github.com/upfront-market/api/internal/services"
)

const maxReviewBodySize = 8 * 1024

// ReviewHandlers serves the storefront product review endpoints.
type ReviewHandlers struct {
	authn   *auth.Authenticator
	reviews services.ReviewService
}

// NewReviewHandlers constructs a new ReviewHandlers instance.
func NewReviewHandlers(authn *auth.Authenticator, reviews services.ReviewService) *ReviewHandlers {
	return &ReviewHandlers{
		authn:   authn,
		reviews: reviews,
	}
}

// Routes registers the /reviews endpoints. Reading is public, writing needs a signed in buyer.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/reviews/{product_id}", h.listReviews)
	write := r
	if h.authn != nil {
		write = write.With(h.authn.RequireAuth())
	}
	write.Post("/reviews/{product_id}", h.createReview)
}

type createReviewRequest struct {
	Rating int    `json:"rating" validate:"gte=1,lte=5"`
	Review string `json:"review" validate:"required,max=1000"`
}

type reviewCreatedResponse struct {
	Message string        `json:"message"`
	Review  reviewPayload `json:"review"`
}

func (h *ReviewHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	reviews, err := h.reviews.ListForProduct(ctx, chi.URLParam(r, "product_id"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReviews(reviews, false))
}

func (h *ReviewHandlers) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	identity, ok := currentIdentity(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}
	var req createReviewRequest
	if apiErr, err := httpx.DecodeJSON(r, maxReviewBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, apiErr)
		return
	}
	review, err := h.reviews.Create(ctx, services.CreateReviewCommand{
		ProductID: chi.URLParam(r, "product_id"),
		UserID:    identity.UID,
		Rating:    req.Rating,
		Comment:   req.Review,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, reviewCreatedResponse{
		Message: "Review created successfully",
		Review:  buildReview(review, false),
	})
}
