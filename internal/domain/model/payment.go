package model

import "time"

// 支払い方法（クローズドな列挙）
type PaymentMethod string

const (
	//銀行直接振込
	PaymentMethodDirectTransfer PaymentMethod = "DIRECT_TRANSFER"
	//外部決済ゲートウェイ経由
	PaymentMethodGatewayTransfer PaymentMethod = "GATEWAY_TRANSFER"
	//代金引換（注文時点では実行リスクなし）
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

// 有効なPaymentMethodかどうか
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodDirectTransfer, PaymentMethodGatewayTransfer, PaymentMethodCashOnDelivery:
		return true
	}
	return false
}

// 決済結果。アダプタごとの差異はここに正規化する。
// 失敗も必ずこの形（Success=false + ErrorMessage）になる。
type PaymentResult struct {
	Success       bool          `json:"success"`
	TransactionID string        `json:"transaction_id"`
	Method        PaymentMethod `json:"method"`
	Amount        int64         `json:"amount"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
