package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CheckoutSessionGormRepository struct {
	db *gorm.DB
}

func NewCheckoutSessionGormRepository(db *gorm.DB) *CheckoutSessionGormRepository {
	return &CheckoutSessionGormRepository{db: db}
}

func (r *CheckoutSessionGormRepository) Create(ctx context.Context, s model.CheckoutSession) error {
	return r.db.WithContext(ctx).Create(&s).Error
}

func (r *CheckoutSessionGormRepository) FindByID(ctx context.Context, sessionID string) (model.CheckoutSession, error) {
	var s model.CheckoutSession
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CheckoutSession{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CheckoutSession{}, err
	}
	return s, nil
}

// 行ロック付き取得。settleの競合（古い実行結果との競り合い）はここで直列化する。
func (r *CheckoutSessionGormRepository) FindByIDForUpdate(ctx context.Context, sessionID string) (model.CheckoutSession, error) {
	var s model.CheckoutSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", sessionID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CheckoutSession{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CheckoutSession{}, err
	}
	return s, nil
}

// 終端（CONFIRMED/CANCELLED）以外で一番新しいセッション
func (r *CheckoutSessionGormRepository) FindOpenByUserID(ctx context.Context, userID int64) (model.CheckoutSession, bool, error) {
	var s model.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND state NOT IN ?", userID, []model.CheckoutState{
			model.CheckoutStateConfirmed,
			model.CheckoutStateCancelled,
		}).
		Order("created_at DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CheckoutSession{}, false, nil
	}
	if err != nil {
		return model.CheckoutSession{}, false, err
	}
	return s, true, nil
}

func (r *CheckoutSessionGormRepository) Save(ctx context.Context, s model.CheckoutSession) error {
	res := r.db.WithContext(ctx).Model(&model.CheckoutSession{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"state":                s.State,
			"shipping_full_name":   s.ShippingFullName,
			"shipping_email":       s.ShippingEmail,
			"shipping_phone":       s.ShippingPhone,
			"shipping_address":     s.ShippingAddress,
			"shipping_city":        s.ShippingCity,
			"shipping_state":       s.ShippingState,
			"shipping_postal_code": s.ShippingPostalCode,
			"shipping_country":     s.ShippingCountry,
			"amount_snapshot":      s.AmountSnapshot,
			"payment_method":       s.PaymentMethod,
			"attempt_seq":          s.AttemptSeq,
			"last_error_message":   s.LastErrorMessage,
			"order_id":             s.OrderID,
			"updated_at":           s.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細スナップショットを丸ごと置き換える
func (r *CheckoutSessionGormRepository) ReplaceItems(ctx context.Context, sessionID string, items []model.CheckoutItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.CheckoutItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].SessionID = sessionID
		}
		return tx.Create(&items).Error
	})
}

func (r *CheckoutSessionGormRepository) ListItems(ctx context.Context, sessionID string) ([]model.CheckoutItem, error) {
	var items []model.CheckoutItem
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return []model.CheckoutItem{}, err
	}
	return items, nil
}
