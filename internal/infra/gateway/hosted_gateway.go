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

// ホスト型決済ゲートウェイ（intent作成→capture）のアダプタ。
type HostedGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHostedGateway(baseURL string, apiKey string, client *http.Client) *HostedGateway {
	if client == nil {
		client = &http.Client{}
	}
	return &HostedGateway{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (g *HostedGateway) Method() model.PaymentMethod {
	return model.PaymentMethodGatewayTransfer
}

type intentRequest struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type intentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type captureResponse struct {
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"` // captured / failed
	ErrorMessage string `json:"error_message"`
}

func (g *HostedGateway) Execute(ctx context.Context, req gw.PaymentRequest) (model.PaymentResult, error) {
	//1) intent作成
	intent, err := g.createIntent(ctx, req)
	if err != nil {
		return model.PaymentResult{}, err
	}

	//2) capture
	cap, err := g.capture(ctx, intent.ID)
	if err != nil {
		return model.PaymentResult{}, err
	}

	result := model.PaymentResult{
		Method:        model.PaymentMethodGatewayTransfer,
		Amount:        req.Amount,
		TransactionID: cap.PaymentID,
		CreatedAt:     time.Now(),
	}

	if cap.Status != "captured" {
		result.Success = false
		result.ErrorMessage = cap.ErrorMessage
		if result.ErrorMessage == "" {
			result.ErrorMessage = "payment declined"
		}
		return result, nil
	}

	result.Success = true
	return result, nil
}

func (g *HostedGateway) createIntent(ctx context.Context, req gw.PaymentRequest) (intentResponse, error) {
	body, err := json.Marshal(intentRequest{
		Amount:    req.Amount,
		Currency:  "INR",
		Reference: req.OrderRef,
		Email:     req.CustomerEmail,
		Phone:     req.CustomerPhone,
	})
	if err != nil {
		return intentResponse{}, fmt.Errorf("encode intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/intents", bytes.NewReader(body))
	if err != nil {
		return intentResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return intentResponse{}, gw.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return intentResponse{}, gw.ErrGatewayUnavailable
	}

	var out intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return intentResponse{}, gw.ErrGatewayUnavailable
	}
	return out, nil
}

func (g *HostedGateway) capture(ctx context.Context, intentID string) (captureResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/intents/"+intentID+"/capture", bytes.NewReader(nil))
	if err != nil {
		return captureResponse{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return captureResponse{}, gw.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return captureResponse{}, gw.ErrGatewayUnavailable
	}

	var out captureResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return captureResponse{}, gw.ErrGatewayUnavailable
	}
	return out, nil
}
