package server

import (
	"app/internal/config"
	"app/internal/handler"
	"app/internal/repository"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// サーバー組み立てに必要な依存をまとめる。
type Deps struct {
	Cfg      config.Config
	UserRepo repository.UserRepository

	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	Cart         *handler.CartHandler
	Checkout     *handler.CheckoutHandler
	Order        *handler.OrderHandler
	Wishlist     *handler.WishlistHandler
	Review       *handler.ReviewHandler
	AdminProduct *handler.AdminProductHandler
	AdminOrder   *handler.AdminOrderHandler
	AdminUser    *handler.AdminUserHandler
}

// New はechoを組み立てて返す（起動はしない）。
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	RegisterRoutes(e, d)

	return e
}

func Start(e *echo.Echo, port string) error {
	return e.Start(":" + port)
}
