package usecase

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/gateway"
	"app/internal/metrics"
	repo "app/internal/repository"

	"github.com/google/uuid"
)

// 配送目安
const estimatedDeliveryDays = 5

// 配送先フォームのフィールド単位エラー。
// ShippingInfoCaptureの外には出さない（stateは進めない）。
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation error"
}

func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// usecaseがValidatorInterfaceに依存する約束
type ShippingValidator interface {
	//問題なければ空のmapを返す
	ValidateShipping(in ShippingInput) map[string]string
}

type ShippingInput struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type StartCheckoutInput struct {
	Source    string
	ProductID int64
	Quantity  int64
}

type CheckoutItemView struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type CheckoutView struct {
	ID               string             `json:"id"`
	State            string             `json:"state"`
	Source           string             `json:"source"`
	Amount           int64              `json:"amount"`
	PaymentMethod    string             `json:"payment_method,omitempty"`
	LastErrorMessage string             `json:"last_error_message,omitempty"`
	OrderID          int64              `json:"order_id,omitempty"`
	Items            []CheckoutItemView `json:"items"`
}

// CheckoutUsecase はチェックアウトの状態機械。
// SHIPPING → METHOD_SELECT → EXECUTING → CONFIRMED を管理し、
// 注文作成はidempotency keyのラッチで必ず1回にする。
type CheckoutUsecase struct {
	tx        repo.TransactionManager
	gateways  map[model.PaymentMethod]gateway.Gateway
	validator ShippingValidator
	cfg       config.CheckoutConfig
	metrics   *metrics.CheckoutMetrics
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	gateways map[model.PaymentMethod]gateway.Gateway,
	validator ShippingValidator,
	cfg config.CheckoutConfig,
	m *metrics.CheckoutMetrics,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:        tx,
		gateways:  gateways,
		validator: validator,
		cfg:       cfg,
		metrics:   m,
	}
}

// チェックアウト開始。カート起点か商品直接（buy now）起点か。
func (u *CheckoutUsecase) StartCheckout(ctx context.Context, userID int64, in StartCheckoutInput) (CheckoutView, error) {
	if userID <= 0 {
		return CheckoutView{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	source := model.CheckoutSource(in.Source)
	if source != model.CheckoutSourceCart && source != model.CheckoutSourceBuyNow {
		return CheckoutView{}, NewHTTPError(http.StatusBadRequest, "invalid source")
	}

	var view CheckoutView

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s := model.CheckoutSession{
			ID:        uuid.NewString(),
			UserID:    userID,
			Source:    source,
			State:     model.CheckoutStateShipping,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		switch source {
		case model.CheckoutSourceCart:
			//空カートでは始めない
			cart, err := r.Carts().FindActiveByUserID(ctx, userID)
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusBadRequest, "cart empty")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			items, err := r.CartItems().ListByCartID(ctx, cart.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if len(items) == 0 {
				return NewHTTPError(http.StatusBadRequest, "cart empty")
			}

		case model.CheckoutSourceBuyNow:
			if in.ProductID <= 0 {
				return NewHTTPError(http.StatusBadRequest, "invalid product_id")
			}
			qty := in.Quantity
			if qty < 1 {
				qty = 1
			}
			p, err := r.Products().FindByID(ctx, in.ProductID)
			if err == repo.ErrNotFound || (err == nil && !p.IsActive) {
				return NewHTTPError(http.StatusBadRequest, "invalid")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if qty > p.Stock {
				return NewHTTPError(http.StatusBadRequest, "stock exceeded")
			}
			s.BuyNowProductID = in.ProductID
			s.BuyNowQuantity = qty
		}

		if err := r.CheckoutSessions().Create(ctx, s); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		view = toCheckoutView(s, nil)
		return nil
	})

	if err != nil {
		return CheckoutView{}, err
	}
	return view, nil
}

// 配送先の送信。全項目のバリデーションを通ったときだけ
// METHOD_SELECTへ進み、そこで明細と金額を確定する。
// 失敗してもstateは変えず、フィールド単位エラーを返す。
func (u *CheckoutUsecase) SubmitShipping(ctx context.Context, userID int64, sessionID string, in ShippingInput) (CheckoutView, error) {
	if userID <= 0 {
		return CheckoutView{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	//部分的な送信は受け付けない（全項目そろって初めて遷移）
	if fields := u.validator.ValidateShipping(in); len(fields) > 0 {
		return CheckoutView{}, &ValidationError{Fields: fields}
	}

	var view CheckoutView

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s, err := u.loadOwnedSession(ctx, r, userID, sessionID)
		if err != nil {
			return err
		}

		//EXECUTING中と終端では受け付けない。
		//METHOD_SELECTからの再入場は丸ごと置き換え＋再スナップショット。
		if s.State != model.CheckoutStateShipping && s.State != model.CheckoutStateMethodSelect {
			return NewHTTPError(http.StatusConflict, "invalid state")
		}

		s.ShippingFullName = in.FullName
		s.ShippingEmail = in.Email
		s.ShippingPhone = in.Phone
		s.ShippingAddress = in.Address
		s.ShippingCity = in.City
		s.ShippingState = in.State
		s.ShippingPostalCode = in.PostalCode
		s.ShippingCountry = in.Country

		//METHOD_SELECT入場時点の明細・金額を確定する。
		//以降カートが（不正に）変わっても請求額は動かない。
		items, err := u.snapshotItems(ctx, r, s)
		if err != nil {
			return err
		}

		var total int64 = 0
		for _, it := range items {
			total += it.UnitPriceSnapshot * it.Quantity
		}

		if err := r.CheckoutSessions().ReplaceItems(ctx, s.ID, items); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		s.AmountSnapshot = total
		s.State = model.CheckoutStateMethodSelect
		s.UpdatedAt = time.Now()
		if err := r.CheckoutSessions().Save(ctx, s); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		view = toCheckoutView(s, items)
		return nil
	})

	if err != nil {
		return CheckoutView{}, err
	}
	return view, nil
}

// 選択できる支払い方法。代引きは上限金額の設定で外れることがある。
func (u *CheckoutUsecase) AvailableMethods(ctx context.Context, userID int64, sessionID string) ([]model.PaymentMethod, error) {
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var methods []model.PaymentMethod

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s, err := u.loadOwnedSession(ctx, r, userID, sessionID)
		if err != nil {
			return err
		}
		if s.State != model.CheckoutStateMethodSelect {
			return NewHTTPError(http.StatusConflict, "invalid state")
		}
		methods = u.methodsFor(s.AmountSnapshot)
		return nil
	})

	if err != nil {
		return nil, err
	}
	return methods, nil
}

func (u *CheckoutUsecase) methodsFor(amount int64) []model.PaymentMethod {
	methods := []model.PaymentMethod{
		model.PaymentMethodDirectTransfer,
		model.PaymentMethodGatewayTransfer,
	}
	if u.cfg.CODMaxAmount <= 0 || amount <= u.cfg.CODMaxAmount {
		methods = append(methods, model.PaymentMethodCashOnDelivery)
	}
	return methods
}

// 支払い方法の選択。支払い自体は行わない。
// 再選択はattempt_seqを進め、前の方法で走っていた実行結果を無効にする。
func (u *CheckoutUsecase) SelectMethod(ctx context.Context, userID int64, sessionID string, method model.PaymentMethod) (CheckoutView, error) {
	if userID <= 0 {
		return CheckoutView{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !method.Valid() {
		return CheckoutView{}, NewHTTPError(http.StatusBadRequest, "invalid method")
	}

	var view CheckoutView

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s, err := u.loadOwnedSession(ctx, r, userID, sessionID)
		if err != nil {
			return err
		}

		//EXECUTING中の再選択は「実行中の試行を破棄して選び直す」扱い
		if s.State != model.CheckoutStateMethodSelect && s.State != model.CheckoutStateExecuting {
			return NewHTTPError(http.StatusConflict, "invalid state")
		}

		allowed := false
		for _, m := range u.methodsFor(s.AmountSnapshot) {
			if m == method {
				allowed = true
				break
			}
		}
		if !allowed {
			return NewHTTPError(http.StatusBadRequest, "method not available")
		}

		s.PaymentMethod = method
		s.AttemptSeq++ //古い実行結果はseq不一致で捨てられる
		s.State = model.CheckoutStateMethodSelect
		s.LastErrorMessage = ""
		s.UpdatedAt = time.Now()
		if err := r.CheckoutSessions().Save(ctx, s); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.CheckoutSessions().ListItems(ctx, s.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		view = toCheckoutView(s, items)
		return nil
	})

	if err != nil {
		return CheckoutView{}, err
	}
	return view, nil
}

// 決済実行。代引きはアダプタを通さず即時に成功結果を合成する。
// それ以外はタイムアウト付きでアダプタを呼び、到達不能のときだけ1回リトライする。
func (u *CheckoutUsecase) ExecutePayment(ctx context.Context, userID int64, sessionID string) (CheckoutView, error) {
	if userID <= 0 {
		return CheckoutView{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	//実行の印をつけて入力を取り出す
	var (
		attempt int64
		req     gateway.PaymentRequest
		method  model.PaymentMethod
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s, err := u.loadOwnedSessionForUpdate(ctx, r, userID, sessionID)
		if err != nil {
			return err
		}
		if s.State != model.CheckoutStateMethodSelect {
			return NewHTTPError(http.StatusConflict, "invalid state")
		}
		if s.PaymentMethod == "" {
			return NewHTTPError(http.StatusBadRequest, "payment method not selected")
		}

		s.AttemptSeq++
		attempt = s.AttemptSeq
		method = s.PaymentMethod
		s.State = model.CheckoutStateExecuting
		s.UpdatedAt = time.Now()
		if err := r.CheckoutSessions().Save(ctx, s); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		req = gateway.PaymentRequest{
			Amount:        s.AmountSnapshot,
			OrderRef:      s.ID,
			CustomerName:  s.ShippingFullName,
			CustomerEmail: s.ShippingEmail,
			CustomerPhone: s.ShippingPhone,
		}
		return nil
	})
	if err != nil {
		return CheckoutView{}, err
	}

	result := u.executeWithMethod(ctx, method, req)

	return u.Settle(ctx, sessionID, attempt, result)
}

// 方法ごとの実行。失敗はすべてSuccess=false + メッセージに正規化して返す。
func (u *CheckoutUsecase) executeWithMethod(ctx context.Context, method model.PaymentMethod, req gateway.PaymentRequest) model.PaymentResult {
	//代引きは注文時点で実行リスクが無いので即時成功
	if method == model.PaymentMethodCashOnDelivery {
		return model.PaymentResult{
			Success:       true,
			TransactionID: "COD-" + uuid.NewString(),
			Method:        method,
			Amount:        req.Amount,
			CreatedAt:     time.Now(),
		}
	}

	g, ok := u.gateways[method]
	if !ok {
		return model.PaymentResult{
			Success:      false,
			Method:       method,
			Amount:       req.Amount,
			ErrorMessage: "payment method unavailable",
			CreatedAt:    time.Now(),
		}
	}

	timeout := u.cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	//到達不能（GatewayUnavailable）だけ1回リトライ。拒否はリトライしない。
	var (
		result model.PaymentResult
		err    error
	)
	for i := 0; i < 2; i++ {
		execCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err = g.Execute(execCtx, req)
		cancel()

		if err == nil {
			return result
		}
		//呼び出し元のcontextが終わっているなら、期限切れに見えても再試行しない
		if ctx.Err() != nil {
			break
		}
		if !errors.Is(err, gateway.ErrGatewayUnavailable) && !errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}

	return model.PaymentResult{
		Success:      false,
		Method:       method,
		Amount:       req.Amount,
		ErrorMessage: "payment service unavailable",
		CreatedAt:    time.Now(),
	}
}

// Settle は決済結果の確定。attemptが現在のattempt_seqと一致し、
// かつEXECUTING中のときだけ反映する。古い結果は黙って捨てる（注文は作らない）。
// 成功時の注文作成＋カートクリアは1トランザクションで行い、
// idempotency keyのラッチで二重作成を防ぐ。
func (u *CheckoutUsecase) Settle(ctx context.Context, sessionID string, attempt int64, result model.PaymentResult) (CheckoutView, error) {
	var view CheckoutView

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s, err := r.CheckoutSessions().FindByIDForUpdate(ctx, sessionID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//フェンシング：途中で方法を選び直した・キャンセルした試行の結果は捨てる
		if s.State != model.CheckoutStateExecuting || s.AttemptSeq != attempt || s.PaymentMethod != result.Method {
			u.metrics.StaleSettleDiscarded()
			return NewHTTPError(http.StatusConflict, "attempt superseded")
		}

		items, err := r.CheckoutSessions().ListItems(ctx, s.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//失敗：METHOD_SELECTに戻してメッセージを出す。注文は作らない。
		if !result.Success {
			if _, err := r.Transactions().Create(ctx, model.Transaction{
				SessionID:     s.ID,
				UserID:        s.UserID,
				TransactionID: result.TransactionID,
				Method:        result.Method,
				Amount:        result.Amount,
				Success:       false,
				ErrorMessage:  result.ErrorMessage,
				CreatedAt:     time.Now(),
			}); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			s.State = model.CheckoutStateMethodSelect
			s.LastErrorMessage = result.ErrorMessage
			s.UpdatedAt = time.Now()
			if err := r.CheckoutSessions().Save(ctx, s); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			u.metrics.PaymentFailed(string(result.Method))
			view = toCheckoutView(s, items)
			return nil
		}

		//ラッチ：同じセッションの注文が既にあれば絶対に2つ目を作らない
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, s.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if found {
			s.State = model.CheckoutStateConfirmed
			s.OrderID = existing.ID
			s.UpdatedAt = time.Now()
			if err := r.CheckoutSessions().Save(ctx, s); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			view = toCheckoutView(s, items)
			return nil
		}

		//在庫を確定時に再チェックして減らす
		orderItems := make([]model.OrderItem, 0, len(items))
		taken := make([]model.CheckoutItem, 0, len(items))
		now := time.Now()
		outOfStock := false
		for _, it := range items {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				outOfStock = true
				break
			}
			taken = append(taken, it)
			orderItems = append(orderItems, model.OrderItem{
				ProductID:            it.ProductID,
				ProductNameSnapshot:  it.ProductNameSnapshot,
				ProductImageSnapshot: it.ProductImageSnapshot,
				UnitPriceSnapshot:    it.UnitPriceSnapshot,
				Quantity:             it.Quantity,
				CreatedAt:            now,
			})
		}

		//決済は通っているのに在庫が確保できなかった。
		//ここでtxを巻き戻すと「請求だけ残る」ので、失敗確定として扱う：
		//減らした分を戻し、台帳に返金対象の印をつけてMETHOD_SELECTへ返す。
		if outOfStock {
			for _, it := range taken {
				if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}

			if _, err := r.Transactions().Create(ctx, model.Transaction{
				SessionID:      s.ID,
				UserID:         s.UserID,
				TransactionID:  result.TransactionID,
				Method:         result.Method,
				Amount:         result.Amount,
				Success:        true,
				RefundRequired: true,
				ErrorMessage:   "out of stock",
				CreatedAt:      now,
			}); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			log.Printf("checkout: refund required for session %s (tx %s): out of stock", s.ID, result.TransactionID)

			s.State = model.CheckoutStateMethodSelect
			s.LastErrorMessage = "out of stock"
			s.UpdatedAt = now
			if err := r.CheckoutSessions().Save(ctx, s); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			u.metrics.RefundFlagged()
			view = toCheckoutView(s, items)
			return nil
		}

		//注文作成。合計はスナップショット済みの確定額。
		orderID, err := r.Orders().Create(ctx, model.Order{
			UserID:             s.UserID,
			Status:             model.OrderStatusConfirmed,
			TotalPrice:         s.AmountSnapshot,
			ShippingFullName:   s.ShippingFullName,
			ShippingEmail:      s.ShippingEmail,
			ShippingPhone:      s.ShippingPhone,
			ShippingAddress:    s.ShippingAddress,
			ShippingCity:       s.ShippingCity,
			ShippingState:      s.ShippingState,
			ShippingPostalCode: s.ShippingPostalCode,
			ShippingCountry:    s.ShippingCountry,
			PaymentMethod:      result.Method,
			TransactionID:      result.TransactionID,
			IdempotencyKey:     s.ID,
			EstimatedDelivery:  now.AddDate(0, 0, estimatedDeliveryDays),
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		if err == repo.ErrDuplicateOrder {
			//ラッチを通ったのにunique違反＝整合性の事故。黙殺せず記録する。
			log.Printf("checkout: duplicate order for session %s despite latch", s.ID)
			return NewHTTPError(http.StatusInternalServerError, "integrity error")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//決済台帳
		if _, err := r.Transactions().Create(ctx, model.Transaction{
			SessionID:     s.ID,
			UserID:        s.UserID,
			OrderID:       orderID,
			TransactionID: result.TransactionID,
			Method:        result.Method,
			Amount:        result.Amount,
			Success:       true,
			CreatedAt:     now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//カートを空にするのはカート起点のときだけ。
		//buy nowでは既存カートに触らない。
		if s.Source == model.CheckoutSourceCart {
			cart, err := r.Carts().FindActiveByUserID(ctx, s.UserID)
			if err != nil && err != repo.ErrNotFound {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if err == nil {
				if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusCheckedOut); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				if err := r.Carts().Clear(ctx, cart.ID); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}
		}

		s.State = model.CheckoutStateConfirmed
		s.OrderID = orderID
		s.LastErrorMessage = ""
		s.UpdatedAt = now
		if err := r.CheckoutSessions().Save(ctx, s); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		u.metrics.OrderPlaced(string(result.Method), string(s.Source))
		view = toCheckoutView(s, items)
		return nil
	})

	if err != nil {
		return CheckoutView{}, err
	}
	return view, nil
}

// 明示的なキャンセル（戻る操作）。終端以外のどこからでも可能。
// EXECUTING中でもattempt_seqを進めるので、あとから届く結果は捨てられる。
func (u *CheckoutUsecase) Cancel(ctx context.Context, userID int64, sessionID string) (CheckoutView, error) {
	if userID <= 0 {
		return CheckoutView{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var view CheckoutView

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s, err := u.loadOwnedSessionForUpdate(ctx, r, userID, sessionID)
		if err != nil {
			return err
		}
		if s.State.Terminal() {
			return NewHTTPError(http.StatusConflict, "already finished")
		}

		s.State = model.CheckoutStateCancelled
		s.AttemptSeq++
		s.UpdatedAt = time.Now()
		if err := r.CheckoutSessions().Save(ctx, s); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.CheckoutSessions().ListItems(ctx, s.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		view = toCheckoutView(s, items)
		return nil
	})

	if err != nil {
		return CheckoutView{}, err
	}
	return view, nil
}

func (u *CheckoutUsecase) GetCheckout(ctx context.Context, userID int64, sessionID string) (CheckoutView, error) {
	if userID <= 0 {
		return CheckoutView{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var view CheckoutView

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s, err := u.loadOwnedSession(ctx, r, userID, sessionID)
		if err != nil {
			return err
		}
		items, err := r.CheckoutSessions().ListItems(ctx, s.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		view = toCheckoutView(s, items)
		return nil
	})

	if err != nil {
		return CheckoutView{}, err
	}
	return view, nil
}

func (u *CheckoutUsecase) loadOwnedSession(ctx context.Context, r repo.TxRepos, userID int64, sessionID string) (model.CheckoutSession, error) {
	if sessionID == "" {
		return model.CheckoutSession{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := r.CheckoutSessions().FindByID(ctx, sessionID)
	if err == repo.ErrNotFound {
		return model.CheckoutSession{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.CheckoutSession{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	//他人のセッションは「存在しない扱い」にする
	if s.UserID != userID {
		return model.CheckoutSession{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return s, nil
}

func (u *CheckoutUsecase) loadOwnedSessionForUpdate(ctx context.Context, r repo.TxRepos, userID int64, sessionID string) (model.CheckoutSession, error) {
	if sessionID == "" {
		return model.CheckoutSession{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := r.CheckoutSessions().FindByIDForUpdate(ctx, sessionID)
	if err == repo.ErrNotFound {
		return model.CheckoutSession{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.CheckoutSession{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if s.UserID != userID {
		return model.CheckoutSession{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return s, nil
}

// 明細スナップショットを起点ごとに作る
func (u *CheckoutUsecase) snapshotItems(ctx context.Context, r repo.TxRepos, s model.CheckoutSession) ([]model.CheckoutItem, error) {
	switch s.Source {
	case model.CheckoutSourceBuyNow:
		p, err := r.Products().FindByID(ctx, s.BuyNowProductID)
		if err == repo.ErrNotFound || (err == nil && !p.IsActive) {
			return nil, NewHTTPError(http.StatusBadRequest, "invalid")
		}
		if err != nil {
			return nil, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return []model.CheckoutItem{{
			ProductID:            p.ID,
			ProductNameSnapshot:  p.Name,
			ProductImageSnapshot: p.ImageURL,
			UnitPriceSnapshot:    p.Price,
			Quantity:             s.BuyNowQuantity,
		}}, nil

	default:
		cart, err := r.Carts().FindActiveByUserID(ctx, s.UserID)
		if err == repo.ErrNotFound {
			return nil, NewHTTPError(http.StatusBadRequest, "cart empty")
		}
		if err != nil {
			return nil, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return nil, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if len(cartItems) == 0 {
			return nil, NewHTTPError(http.StatusBadRequest, "cart empty")
		}

		items := make([]model.CheckoutItem, 0, len(cartItems))
		for _, ci := range cartItems {
			items = append(items, model.CheckoutItem{
				ProductID:            ci.ProductID,
				ProductNameSnapshot:  ci.ProductNameSnapshot,
				ProductImageSnapshot: ci.ProductImageSnapshot,
				UnitPriceSnapshot:    ci.UnitPriceSnapshot,
				Quantity:             ci.Quantity,
			})
		}
		return items, nil
	}
}

func toCheckoutView(s model.CheckoutSession, items []model.CheckoutItem) CheckoutView {
	viewItems := make([]CheckoutItemView, 0, len(items))
	for _, it := range items {
		viewItems = append(viewItems, CheckoutItemView{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			ImageURL:  it.ProductImageSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}

	return CheckoutView{
		ID:               s.ID,
		State:            string(s.State),
		Source:           string(s.Source),
		Amount:           s.AmountSnapshot,
		PaymentMethod:    string(s.PaymentMethod),
		LastErrorMessage: s.LastErrorMessage,
		OrderID:          s.OrderID,
		Items:            viewItems,
	}
}
