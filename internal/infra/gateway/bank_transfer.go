package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"app/internal/domain/model"
	gw "app/internal/gateway"
)

// 銀行直接振込ゲートウェイのアダプタ。
type BankTransferGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewBankTransferGateway(baseURL string, apiKey string, client *http.Client) *BankTransferGateway {
	if client == nil {
		client = &http.Client{}
	}
	return &BankTransferGateway{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (g *BankTransferGateway) Method() model.PaymentMethod {
	return model.PaymentMethodDirectTransfer
}

type bankTransferRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

type bankTransferResponse struct {
	Status        string `json:"status"` // completed / declined
	TransferID    string `json:"transfer_id"`
	FailureReason string `json:"failure_reason"`
}

func (g *BankTransferGateway) Execute(ctx context.Context, req gw.PaymentRequest) (model.PaymentResult, error) {
	body, err := json.Marshal(bankTransferRequest{
		Amount:    req.Amount,
		Reference: req.OrderRef,
		Name:      req.CustomerName,
		Email:     req.CustomerEmail,
	})
	if err != nil {
		return model.PaymentResult{}, fmt.Errorf("encode transfer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return model.PaymentResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return model.PaymentResult{}, gw.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return model.PaymentResult{}, gw.ErrGatewayUnavailable
	}

	var out bankTransferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.PaymentResult{}, gw.ErrGatewayUnavailable
	}

	result := model.PaymentResult{
		Method:        model.PaymentMethodDirectTransfer,
		Amount:        req.Amount,
		TransactionID: out.TransferID,
		CreatedAt:     time.Now(),
	}

	//拒否は正常系として正規化する
	if resp.StatusCode != http.StatusOK || out.Status != "completed" {
		result.Success = false
		result.ErrorMessage = out.FailureReason
		if result.ErrorMessage == "" {
			result.ErrorMessage = "transfer declined"
		}
		return result, nil
	}

	result.Success = true
	return result, nil
}
