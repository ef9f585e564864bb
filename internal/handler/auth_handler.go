package handler

import (
	"errors"
	"net/http"
	"os"
	"time"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/usecase"
	"app/internal/validator"

	"github.com/labstack/echo/v4"
)

const (
	refreshCookieName = "refresh_token"
	csrfCookieName    = "csrf_token"
)

type AuthHandler struct {
	uc           *usecase.AuthUsecase
	cfg          config.Config
	userRepo     repository.UserRepository
	limiter      *middleware.RateLimiter
	cookieSecure bool
}

// DIコンストラクタ
func NewAuthHandler(uc *usecase.AuthUsecase, cfg config.Config, userRepo repository.UserRepository, limiter *middleware.RateLimiter) *AuthHandler {
	return &AuthHandler{
		uc:           uc,
		cfg:          cfg,
		userRepo:     userRepo,
		limiter:      limiter,
		cookieSecure: envBool("COOKIE_SECURE", true),
	}
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True":
		return true
	case "0", "false", "FALSE", "False":
		return false
	default:
		return def
	}
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/auth")
	//総当たり対策
	if h.limiter != nil {
		g.Use(h.limiter.Middleware())
	}

	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/refresh", h.refresh)
	g.POST("/logout", h.logout)

	me := e.Group("/auth/me")
	me.Use(middleware.AuthJWT(h.cfg))
	me.Use(middleware.TokenVersionGuard(h.userRepo))
	me.GET("", h.me)
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	res, err := h.uc.Register(c.Request().Context(), usecase.AuthRegisterRequest{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		return writeAuthError(c, err)
	}

	return c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	res, err := h.uc.Login(c.Request().Context(), usecase.AuthLoginRequest{
		Email:    req.Email,
		Password: req.Password,
	}, c.Request().UserAgent())
	if err != nil {
		return writeAuthError(c, err)
	}

	//refreshはHttpOnly cookie、csrfはJSから読めるcookieで返す
	h.setAuthCookies(c, res.RefreshTokenPlain, res.CsrfTokenPlain)

	return c.JSON(http.StatusOK, res.Body)
}

func (h *AuthHandler) refresh(c echo.Context) error {
	//CSRF二重送信チェック（cookieとheaderの一致）
	csrfCookie, err := c.Cookie(csrfCookieName)
	if err != nil || csrfCookie.Value == "" || c.Request().Header.Get("X-CSRF-Token") != csrfCookie.Value {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "csrf mismatch"})
	}

	rtCookie, err := c.Cookie(refreshCookieName)
	if err != nil || rtCookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	res, uerr := h.uc.Refresh(c.Request().Context(), rtCookie.Value, c.Request().UserAgent())
	if uerr != nil {
		h.clearAuthCookies(c)
		return writeAuthError(c, uerr)
	}

	h.setAuthCookies(c, res.RefreshTokenPlain, res.CsrfTokenPlain)

	return c.JSON(http.StatusOK, res.Body)
}

func (h *AuthHandler) logout(c echo.Context) error {
	rtCookie, err := c.Cookie(refreshCookieName)
	if err != nil || rtCookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	res, uerr := h.uc.Logout(c.Request().Context(), rtCookie.Value)
	if uerr != nil {
		return writeAuthError(c, uerr)
	}

	h.clearAuthCookies(c)

	return c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) me(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	res, err := h.uc.Me(c.Request().Context(), userID)
	if err != nil {
		return writeAuthError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) setAuthCookies(c echo.Context, refreshPlain string, csrfPlain string) {
	expires := time.Now().Add(30 * 24 * time.Hour)

	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshPlain,
		Path:     "/auth",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})

	//csrfはJSが読んでheaderに載せる
	c.SetCookie(&http.Cookie{
		Name:     csrfCookieName,
		Value:    csrfPlain,
		Path:     "/",
		Expires:  expires,
		HttpOnly: false,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	c.SetCookie(&http.Cookie{
		Name:     csrfCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// AuthUsecaseのsentinelエラーをHTTPステータスに写す。
func writeAuthError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrValidation),
		errors.Is(err, validator.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid input"})
	case errors.Is(err, validator.ErrEmailAlreadyUsed),
		errors.Is(err, usecase.ErrConflict):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict"})
	case errors.Is(err, usecase.ErrUnauthorized),
		errors.Is(err, validator.ErrInvalidRefresh),
		errors.Is(err, usecase.ErrSecurityIncident):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, usecase.ErrForbidden):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
