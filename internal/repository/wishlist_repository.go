package repository

import (
	"context"

	"app/internal/domain/model"
)

type WishlistRepository interface {
	//二重追加はno-op
	Add(ctx context.Context, userID int64, productID int64) error
	//無ければno-op
	Remove(ctx context.Context, userID int64, productID int64) error
	ListByUserID(ctx context.Context, userID int64) ([]model.WishlistItem, error)
}
