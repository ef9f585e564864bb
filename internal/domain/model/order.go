package model

import "time"

type OrderStatus string

const (
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// 注文。成功したPaymentResultが観測されたときだけ作られる。
// 作成後に変わるのはStatusだけ。削除はしない。
type Order struct {
	ID         int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64       `gorm:"not null;index" json:"user_id"`
	Status     OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalPrice int64       `gorm:"not null" json:"total_price"`

	//配送先スナップショット（セッションからコピー）
	ShippingFullName   string `gorm:"type:varchar(255);not null" json:"shipping_full_name"`
	ShippingEmail      string `gorm:"type:varchar(255);not null" json:"shipping_email"`
	ShippingPhone      string `gorm:"type:varchar(30);not null" json:"shipping_phone"`
	ShippingAddress    string `gorm:"type:varchar(255);not null" json:"shipping_address"`
	ShippingCity       string `gorm:"type:varchar(255);not null" json:"shipping_city"`
	ShippingState      string `gorm:"type:varchar(255)" json:"shipping_state"`
	ShippingPostalCode string `gorm:"type:varchar(20);not null" json:"shipping_postal_code"`
	ShippingCountry    string `gorm:"type:varchar(100)" json:"shipping_country"`

	PaymentMethod PaymentMethod `gorm:"type:varchar(30);not null" json:"payment_method"`
	TransactionID string        `gorm:"type:varchar(255);not null" json:"transaction_id"`

	//二重作成防止キー（チェックアウトセッションID）。unique制約がラッチの実体。
	IdempotencyKey string `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`

	EstimatedDelivery time.Time `gorm:"not null" json:"estimated_delivery"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
