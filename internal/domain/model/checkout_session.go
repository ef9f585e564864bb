package model

import "time"

// チェックアウトの状態遷移
type CheckoutState string

const (
	//配送先入力中
	CheckoutStateShipping CheckoutState = "SHIPPING"
	//支払い方法選択中（ここに入った時点で金額を確定する）
	CheckoutStateMethodSelect CheckoutState = "METHOD_SELECT"
	//決済実行中
	CheckoutStateExecuting CheckoutState = "EXECUTING"
	//注文確定（終端）
	CheckoutStateConfirmed CheckoutState = "CONFIRMED"
	//キャンセル（終端）
	CheckoutStateCancelled CheckoutState = "CANCELLED"
)

func (s CheckoutState) Terminal() bool {
	return s == CheckoutStateConfirmed || s == CheckoutStateCancelled
}

// チェックアウトの起点
type CheckoutSource string

const (
	//ACTIVEカートから
	CheckoutSourceCart CheckoutSource = "CART"
	//商品詳細からの即時購入（カートは触らない）
	CheckoutSourceBuyNow CheckoutSource = "BUY_NOW"
)

// 1回のチェックアウト試行。
// AttemptSeqは決済実行のフェンシングトークン。方法の再選択・キャンセルで
// 必ずインクリメントし、古い実行結果はseq不一致で破棄する。
type CheckoutSession struct {
	ID     string         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID int64          `gorm:"not null;index" json:"user_id"`
	Source CheckoutSource `gorm:"type:varchar(20);not null" json:"source"`
	State  CheckoutState  `gorm:"type:varchar(20);not null;index" json:"state"`

	//BUY_NOWのときだけ使う
	BuyNowProductID int64 `gorm:"not null;default:0" json:"-"`
	BuyNowQuantity  int64 `gorm:"not null;default:0" json:"-"`

	//配送先スナップショット（SubmitShippingで丸ごと置き換え）
	ShippingFullName   string `gorm:"type:varchar(255)" json:"shipping_full_name"`
	ShippingEmail      string `gorm:"type:varchar(255)" json:"shipping_email"`
	ShippingPhone      string `gorm:"type:varchar(30)" json:"shipping_phone"`
	ShippingAddress    string `gorm:"type:varchar(255)" json:"shipping_address"`
	ShippingCity       string `gorm:"type:varchar(255)" json:"shipping_city"`
	ShippingState      string `gorm:"type:varchar(255)" json:"shipping_state"`
	ShippingPostalCode string `gorm:"type:varchar(20)" json:"shipping_postal_code"`
	ShippingCountry    string `gorm:"type:varchar(100)" json:"shipping_country"`

	//METHOD_SELECT入場時に確定した請求額。以後のカート変更の影響を受けない。
	AmountSnapshot int64 `gorm:"not null;default:0" json:"amount_snapshot"`

	PaymentMethod PaymentMethod `gorm:"type:varchar(30)" json:"payment_method"`
	AttemptSeq    int64         `gorm:"not null;default:0" json:"-"`

	//直近の決済失敗メッセージ（METHOD_SELECTに戻ったとき表示する）
	LastErrorMessage string `gorm:"type:varchar(255)" json:"last_error_message,omitempty"`

	//確定した注文のID（CONFIRMED後のみ）
	OrderID int64 `gorm:"not null;default:0" json:"order_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// METHOD_SELECT入場時に確定した明細スナップショット
type CheckoutItem struct {
	ID                   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID            string `gorm:"type:uuid;not null;index" json:"session_id"`
	ProductID            int64  `gorm:"not null" json:"product_id"`
	ProductNameSnapshot  string `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	ProductImageSnapshot string `gorm:"type:varchar(512)" json:"product_image_snapshot"`
	UnitPriceSnapshot    int64  `gorm:"not null" json:"unit_price_snapshot"`
	Quantity             int64  `gorm:"not null" json:"quantity"`
}
