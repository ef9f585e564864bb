package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

type TestClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewTestClient(t *testing.T) *TestClient {
	t.Helper()

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New failed: %v", err)
	}

	return &TestClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type UserDTO struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	TokenVersion int64  `json:"token_version"`
	IsActive     bool   `json:"is_active"`
}

type JwtAccessToken struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenVersion int64  `json:"token_version"`
}

type AuthLoginResponse struct {
	User  UserDTO        `json:"user"`
	Token JwtAccessToken `json:"token"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForceLogoutResponse struct {
	UserID          int64 `json:"user_id"`
	NewTokenVersion int64 `json:"new_token_version"`
}

type CartItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	Total int64              `json:"total"`
}

type CheckoutItemView struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type CheckoutView struct {
	ID               string             `json:"id"`
	State            string             `json:"state"`
	Source           string             `json:"source"`
	Amount           int64              `json:"amount"`
	PaymentMethod    string             `json:"payment_method"`
	LastErrorMessage string             `json:"last_error_message"`
	OrderID          int64              `json:"order_id"`
	Items            []CheckoutItemView `json:"items"`
}

type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

type MethodsResponse struct {
	Methods []string `json:"methods"`
}

type OrderItemOutput struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type OrderOutput struct {
	ID            int64             `json:"id"`
	UserID        int64             `json:"user_id"`
	Status        string            `json:"status"`
	TotalPrice    int64             `json:"total_price"`
	PaymentMethod string            `json:"payment_method"`
	TransactionID string            `json:"transaction_id"`
	Items         []OrderItemOutput `json:"items"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
}

type ProductJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Stock    int64  `json:"stock"`
	IsActive bool   `json:"is_active"`
}

type ProductListOutput struct {
	Items []ProductJSON `json:"items"`
	Total int64         `json:"total"`
}

func (c *TestClient) doJSON(
	ctx context.Context,
	t *testing.T,
	method string,
	path string,
	bearer string,
	bodyBytes []byte,
) (*http.Response, []byte) {
	t.Helper()

	var reqBody io.Reader
	if bodyBytes != nil {
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("http.NewRequest failed: %v", err)
	}

	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		t.Fatalf("HTTP.Do failed: %v", err)
	}

	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	return resp, data
}

func requireStatus(t *testing.T, resp *http.Response, want int, body []byte) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status=%d want=%d body=%s", resp.StatusCode, want, string(body))
	}
}

func requireStatusOneOf(t *testing.T, resp *http.Response, body []byte, wants ...int) {
	t.Helper()
	for _, w := range wants {
		if resp.StatusCode == w {
			return
		}
	}
	t.Fatalf("status=%d want one of=%v body=%s", resp.StatusCode, wants, string(body))
}

func mustDecode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("json.Unmarshal failed: %v body=%s", err, string(body))
	}
	return v
}

func toStr(v int64) string {
	return strconv.FormatInt(v, 10)
}

func uniqueEmail(prefix string) string {
	return prefix + "_" + time.Now().Format("20060102_150405.000000000") + "@test.com"
}

// 新規ユーザーを作ってログインし、access_tokenを返す。
// cookie jarにはrefresh_token/csrf_tokenが入る。
func registerAndLogin(t *testing.T, c *TestClient, ctx context.Context, emailPrefix string) (string, UserDTO) {
	t.Helper()

	email := uniqueEmail(emailPrefix)
	pass := "CorrectPW123!"

	regJSON, _ := json.Marshal(RegisterRequest{Email: email, Name: "e2e user", Password: pass})
	resp, body := c.doJSON(ctx, t, http.MethodPost, "/auth/register", "", regJSON)
	requireStatus(t, resp, http.StatusCreated, body)

	loginJSON, _ := json.Marshal(LoginRequest{Email: email, Password: pass})
	resp, body = c.doJSON(ctx, t, http.MethodPost, "/auth/login", "", loginJSON)
	requireStatus(t, resp, http.StatusOK, body)

	login := mustDecode[AuthLoginResponse](t, body)
	if strings.TrimSpace(login.Token.AccessToken) == "" {
		t.Fatalf("access token empty: body=%s", string(body))
	}

	return login.Token.AccessToken, login.User
}

// 管理者でログイン（seedされた管理者アカウント前提）。
func adminLogin(t *testing.T, c *TestClient, ctx context.Context) string {
	t.Helper()

	loginJSON, _ := json.Marshal(LoginRequest{Email: "a@example.com", Password: "password123"})
	resp, body := c.doJSON(ctx, t, http.MethodPost, "/auth/login", "", loginJSON)
	requireStatus(t, resp, http.StatusOK, body)

	login := mustDecode[AuthLoginResponse](t, body)
	if login.User.Role != "ADMIN" {
		t.Fatalf("role must be ADMIN, got=%s", login.User.Role)
	}
	return login.Token.AccessToken
}

type productCreateRequest struct {
	CategoryID  int64  `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       int64  `json:"stock"`
	ImageURL    string `json:"image_url"`
	IsActive    bool   `json:"is_active"`
}

type productCreatedResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// 管理者で商品を作り、公開詳細から引き直して返す。
func createTestProduct(t *testing.T, c *TestClient, ctx context.Context, adminAccess string, price int64, stock int64) ProductJSON {
	t.Helper()

	name := "e2e-product-" + time.Now().Format("150405.000000000")
	reqJSON, _ := json.Marshal(productCreateRequest{
		Name:        name,
		Description: "created by e2e",
		Price:       price,
		Stock:       stock,
		IsActive:    true,
	})

	resp, body := c.doJSON(ctx, t, http.MethodPost, "/admin/products", adminAccess, reqJSON)
	requireStatus(t, resp, http.StatusCreated, body)
	created := mustDecode[productCreatedResponse](t, body)
	if created.ID == 0 {
		t.Fatalf("created product id empty: body=%s", string(body))
	}

	resp, body = c.doJSON(ctx, t, http.MethodGet, "/products/"+toStr(created.ID), "", nil)
	requireStatus(t, resp, http.StatusOK, body)

	var detail struct {
		Product ProductJSON `json:"product"`
	}
	if err := json.Unmarshal(body, &detail); err != nil {
		t.Fatalf("json.Unmarshal product detail failed: %v body=%s", err, string(body))
	}
	return detail.Product
}

func validShippingJSON(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]string{
		"full_name":   "e2e buyer",
		"email":       "buyer@example.com",
		"phone":       "090-1234-5678",
		"address":     "1-2-3 Chuo, Some Building 401",
		"city":        "Tokyo",
		"state":       "Tokyo",
		"postal_code": "100-0001",
		"country":     "JP",
	})
	if err != nil {
		t.Fatalf("json.Marshal shipping failed: %v", err)
	}
	return b
}

func getCookieValueFromJar(t *testing.T, c *TestClient, rawURL string, name string) string {
	t.Helper()

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("url.Parse failed: %v", err)
	}

	for _, ck := range c.HTTP.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}
