package repository

import (
	"context"

	"app/internal/domain/model"
)

type ReviewRepository interface {
	//1ユーザー1商品1件。既にあれば上書き。
	Upsert(ctx context.Context, r model.Review) error
	ListByProductID(ctx context.Context, productID int64) ([]model.Review, error)
	AverageRating(ctx context.Context, productID int64) (float64, int64, error)
}
