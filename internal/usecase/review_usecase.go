package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type ReviewUsecase struct {
	reviewRepo  repo.ReviewRepository
	productRepo repo.ProductRepository
}

func NewReviewUsecase(reviewRepo repo.ReviewRepository, productRepo repo.ProductRepository) *ReviewUsecase {
	return &ReviewUsecase{reviewRepo: reviewRepo, productRepo: productRepo}
}

type PostReviewInput struct {
	Rating  int
	Comment string
}

type ReviewListOutput struct {
	Items         []model.Review `json:"items"`
	AverageRating float64        `json:"average_rating"`
	ReviewCount   int64          `json:"review_count"`
}

// 投稿（1ユーザー1商品1件。再投稿は上書き）。
func (u *ReviewUsecase) Post(ctx context.Context, userID int64, productID int64, in PostReviewInput) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return NewHTTPError(http.StatusBadRequest, "rating must be 1-5")
	}
	if len(in.Comment) > 2000 {
		return NewHTTPError(http.StatusBadRequest, "comment too long")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if err == repo.ErrNotFound {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsActive {
		return NewHTTPError(http.StatusNotFound, "not found")
	}

	now := time.Now()
	err = u.reviewRepo.Upsert(ctx, model.Review{
		UserID:    userID,
		ProductID: productID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

// 商品のレビュー一覧と平均点。
func (u *ReviewUsecase) ListForProduct(ctx context.Context, productID int64) (ReviewListOutput, error) {
	if productID <= 0 {
		return ReviewListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}

	items, err := u.reviewRepo.ListByProductID(ctx, productID)
	if err != nil {
		return ReviewListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	avg, count, err := u.reviewRepo.AverageRating(ctx, productID)
	if err != nil {
		return ReviewListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return ReviewListOutput{
		Items:         items,
		AverageRating: avg,
		ReviewCount:   count,
	}, nil
}
