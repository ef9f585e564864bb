package model

import "time"

// 決済結果の台帳。成功も失敗も1試行1件で残す。
type Transaction struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID     string        `gorm:"type:uuid;not null;index" json:"session_id"`
	UserID        int64         `gorm:"not null;index" json:"user_id"`
	OrderID       int64         `gorm:"not null;default:0;index" json:"order_id,omitempty"`
	TransactionID string        `gorm:"type:varchar(255)" json:"transaction_id"`
	Method        PaymentMethod `gorm:"type:varchar(30);not null" json:"method"`
	Amount        int64         `gorm:"not null" json:"amount"`
	Success       bool          `gorm:"not null" json:"success"`
	//資金は確保できたが注文を確定できなかったもの。返金オペの対象。
	RefundRequired bool      `gorm:"not null;default:false;index" json:"refund_required,omitempty"`
	ErrorMessage   string    `gorm:"type:varchar(255)" json:"error_message,omitempty"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
