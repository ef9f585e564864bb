package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あれば最優先のDSN
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string // disableなど

	JWTSecret string // JWT署名シークレット

	RedisAddr string // 空なら商品キャッシュ無効

	Checkout CheckoutConfig

	GoEnv string // dev/prod
}

// チェックアウト（決済実行）まわりの設定
type CheckoutConfig struct {
	//ゲートウェイ呼び出しの上限時間。ぶら下がり防止。
	GatewayTimeout time.Duration

	//代引きを許可する上限金額（0なら無制限）
	CODMaxAmount int64

	//各ゲートウェイのエンドポイントとキー
	BankGatewayURL    string
	BankGatewayAPIKey string
	HostedGatewayURL  string
	HostedGatewayKey  string
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "app"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		GoEnv: getenv("GO_ENV", "dev"),
	}

	pgPort, err := atoiOr("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	cfg.PostgresPort = pgPort

	timeoutSec, err := atoiOr("CHECKOUT_GATEWAY_TIMEOUT_SEC", 120)
	if err != nil {
		return Config{}, err
	}

	codMax, err := atoi64Or("CHECKOUT_COD_MAX_AMOUNT", 0)
	if err != nil {
		return Config{}, err
	}

	cfg.Checkout = CheckoutConfig{
		GatewayTimeout:    time.Duration(timeoutSec) * time.Second,
		CODMaxAmount:      codMax,
		BankGatewayURL:    os.Getenv("BANK_GATEWAY_URL"),
		BankGatewayAPIKey: os.Getenv("BANK_GATEWAY_API_KEY"),
		HostedGatewayURL:  os.Getenv("HOSTED_GATEWAY_URL"),
		HostedGatewayKey:  os.Getenv("HOSTED_GATEWAY_KEY"),
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func atoi64Or(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}
