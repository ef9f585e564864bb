package server

import (
	"net/http"

	"app/internal/metrics"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, d Deps) {
	//公開
	d.Product.RegisterRoutes(e)
	d.Review.RegisterRoutes(e, d.Cfg, d.UserRepo)

	//認証
	d.Auth.RegisterRoutes(e)

	//ログイン必須
	d.Cart.RegisterRoutes(e, d.Cfg, d.UserRepo)
	d.Checkout.RegisterRoutes(e, d.Cfg, d.UserRepo)
	d.Order.RegisterRoutes(e, d.Cfg, d.UserRepo)
	d.Wishlist.RegisterRoutes(e, d.Cfg, d.UserRepo)

	//管理者
	d.AdminProduct.RegisterRoutes(e, d.Cfg, d.UserRepo)
	d.AdminOrder.RegisterRoutes(e, d.Cfg, d.UserRepo)
	d.AdminUser.RegisterRoutes(e)

	//運用
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}
