package repository

import (
	"context"

	"app/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	// 同一商品は数量プラス。スナップショットは初回追加時点のまま。
	UpsertByCartAndProduct(ctx context.Context, cartID int64, item model.CartItem) error
	//加算ではなく数量を直接セット
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	//無ければno-op
	DeleteByCartAndProduct(ctx context.Context, cartID int64, productID int64) error
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	FindByCartAndProduct(ctx context.Context, cartID int64, productID int64) (model.CartItem, error)
	IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error)
}
