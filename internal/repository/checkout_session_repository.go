package repository

import (
	"context"

	"app/internal/domain/model"
)

type CheckoutSessionRepository interface {
	Create(ctx context.Context, s model.CheckoutSession) error
	FindByID(ctx context.Context, sessionID string) (model.CheckoutSession, error)
	//行ロック付き取得。決済の確定（settle）で必ずこちらを使う。
	FindByIDForUpdate(ctx context.Context, sessionID string) (model.CheckoutSession, error)
	//終端に達していない一番新しいセッション。ログイン時の「続きから」に使う。
	FindOpenByUserID(ctx context.Context, userID int64) (model.CheckoutSession, bool, error)
	Save(ctx context.Context, s model.CheckoutSession) error

	//明細スナップショットの全置き換え（METHOD_SELECT入場時）
	ReplaceItems(ctx context.Context, sessionID string, items []model.CheckoutItem) error
	ListItems(ctx context.Context, sessionID string) ([]model.CheckoutItem, error)
}
