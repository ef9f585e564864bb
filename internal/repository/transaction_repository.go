package repository

import (
	"context"

	"app/internal/domain/model"
)

// 決済台帳。追記のみで削除はしない。
type TransactionRepository interface {
	Create(ctx context.Context, t model.Transaction) (int64, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Transaction, int64, error)
	ListBySessionID(ctx context.Context, sessionID string) ([]model.Transaction, error)
}
