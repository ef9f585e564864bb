package gateway

import (
	"context"
	"errors"

	"app/internal/domain/model"
)

// ゲートウェイに到達できなかった（ネットワーク・タイムアウト）。
// 決済拒否とは区別する。リトライするかはorchestrator側が決める。
var ErrGatewayUnavailable = errors.New("gateway unavailable")

// 決済実行の入力。金額はスナップショット済みの確定値。
type PaymentRequest struct {
	Amount        int64
	OrderRef      string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// 決済手段1つにつきアダプタ1つ。
// 拒否・キャンセルはResult.Success=false + ErrorMessageに正規化して返す。
// エラーを返すのは到達できなかったときだけ。内部でのリトライはしない。
type Gateway interface {
	Method() model.PaymentMethod
	Execute(ctx context.Context, req PaymentRequest) (model.PaymentResult, error)
}
