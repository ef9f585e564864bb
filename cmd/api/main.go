package main

import (
	"log"
	"net/http"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	gwport "app/internal/gateway"
	"app/internal/handler"
	"app/internal/infra/cache"
	"app/internal/infra/db"
	infragw "app/internal/infra/gateway"
	infraRepo "app/internal/infra/repository"
	"app/internal/metrics"
	"app/internal/middleware"
	"app/internal/server"
	"app/internal/usecase"
	"app/internal/validator"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	//.envは無くてもよい（compose等で環境変数が入っている場合）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Category{},
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.CheckoutSession{},
		&model.CheckoutItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.Transaction{},
		&model.WishlistItem{},
		&model.Review{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	categoryRepo := infraRepo.NewCategoryGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	wishlistRepo := infraRepo.NewWishlistGormRepository(gormDB)
	reviewRepo := infraRepo.NewReviewGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	sessionRepo := infraRepo.NewCheckoutSessionGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//商品キャッシュ（REDIS_ADDRが空ならnil＝無効）
	productCache := cache.NewProductCache(cfg.RedisAddr)

	//決済ゲートウェイ。代引きはorchestratorが直接処理するのでアダプタ無し。
	httpClient := &http.Client{Timeout: cfg.Checkout.GatewayTimeout}
	gateways := map[model.PaymentMethod]gwport.Gateway{}
	if cfg.Checkout.BankGatewayURL != "" {
		g := infragw.NewBankTransferGateway(cfg.Checkout.BankGatewayURL, cfg.Checkout.BankGatewayAPIKey, httpClient)
		gateways[g.Method()] = g
	}
	if cfg.Checkout.HostedGatewayURL != "" {
		g := infragw.NewHostedGateway(cfg.Checkout.HostedGatewayURL, cfg.Checkout.HostedGatewayKey, httpClient)
		gateways[g.Method()] = g
	}

	checkoutMetrics := metrics.NewCheckoutMetrics()

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg, userRepo, rtRepo, sessionRepo, validator.NewAuthValidator(userRepo))
	productUC := usecase.NewProductUsecase(productRepo, categoryRepo, inventoryRepo, auditRepo, reviewRepo, productCache)
	cartUC := usecase.NewCartUsecase(cartRepo, cartItemRepo, productRepo)
	checkoutUC := usecase.NewCheckoutUsecase(txManager, gateways, validator.NewShippingValidator(), cfg.Checkout, checkoutMetrics)
	orderUC := usecase.NewOrderUsecase(txManager)
	wishlistUC := usecase.NewWishlistUsecase(wishlistRepo, productRepo)
	reviewUC := usecase.NewReviewUsecase(reviewRepo, productRepo)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager, auditRepo)

	// /auth系は総当たり対策で絞る（毎秒1、バースト5）
	authLimiter := middleware.NewRateLimiter(rate.Every(time.Second), 5)

	//Handler生成
	deps := server.Deps{
		Cfg:      cfg,
		UserRepo: userRepo,

		Auth:         handler.NewAuthHandler(authUC, cfg, userRepo, authLimiter),
		Product:      handler.NewProductHandler(productUC),
		Cart:         handler.NewCartHandler(cartUC),
		Checkout:     handler.NewCheckoutHandler(checkoutUC),
		Order:        handler.NewOrderHandler(orderUC),
		Wishlist:     handler.NewWishlistHandler(wishlistUC),
		Review:       handler.NewReviewHandler(reviewUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC),
		AdminUser:    handler.NewAdminUserHandler(cfg, userRepo, authUC),
	}

	e := server.New(deps)

	if err := server.Start(e, cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
