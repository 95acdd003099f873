// SPDX-License-Identifier: GPL-3.0-only

package routes

import (
	"net/http"

	"accountd/apikeys"
	"accountd/commons"
	"accountd/handlers"
	"accountd/metrics"
	"accountd/middlewares"
	"accountd/models"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func authRateLimiter(cfg *commons.Config) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(cfg.AuthRateLimit),
			Burst: cfg.AuthRateBurst,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return commons.NewHTTPError(http.StatusForbidden, "forbidden", "Unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			metrics.AuthOutcome("rate_limit", "denied")
			return commons.NewHTTPError(http.StatusTooManyRequests, "rate_limited", "Too many requests, slow down")
		},
	})
}

func RegisterRoutes(e *echo.Echo, keys *apikeys.Manager) {
	commons.Logger.Debug("Registering routes")
	cfg := commons.GetConfig()
	handlers.KeyManager = keys

	session := middlewares.RequireSession
	adminOnly := middlewares.RolesRequired(models.RoleAdmin)
	bearer := middlewares.RequireAPIKey(keys)

	e.GET("/healthz", handlers.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	auth := e.Group("/auth", authRateLimiter(cfg))
	auth.POST("/register", handlers.RegisterHandler)
	auth.GET("/confirm/:token", handlers.ConfirmEmailHandler)
	auth.GET("/resend-confirmation", handlers.ResendConfirmationHandler)
	auth.POST("/login", handlers.LoginHandler)
	auth.POST("/logout", handlers.LogoutHandler, session)
	auth.POST("/forgot", handlers.ForgotPasswordHandler)
	auth.GET("/reset/:token", handlers.CheckResetTokenHandler)
	auth.POST("/reset/:token", handlers.ResetPasswordHandler)

	e.GET("/profile", handlers.GetProfileHandler, session)
	e.GET("/plans", handlers.ListPlansHandler, middlewares.OptionalPrincipal(keys))

	account := e.Group("/account", session)
	account.GET("", handlers.GetAccountHandler)
	account.PUT("/password", handlers.ChangePasswordHandler)
	account.POST("/delete", handlers.DeleteAccountHandler)
	account.GET("/billing", handlers.GetBillingHandler)
	account.PUT("/billing", handlers.UpdateBillingHandler)
	account.POST("/plan", handlers.SubscribePlanHandler)
	account.DELETE("/plan", handlers.CancelPlanHandler)
	account.GET("/events", handlers.GetEventLogsHandler)
	account.GET("/api-keys", handlers.GetAPIKeysHandler)
	account.POST("/api-keys", handlers.CreateAPIKeyHandler)
	account.POST("/api-keys/:key_id/toggle", handlers.ToggleAPIKeyHandler)
	account.POST("/api-keys/:key_id/revoke", handlers.RevokeAPIKeyHandler)
	account.POST("/api-keys/:key_id/regenerate", handlers.RegenerateAPIKeyHandler)
	account.DELETE("/api-keys/:key_id", handlers.DeleteAPIKeyHandler)

	admin := e.Group("/admin", session, adminOnly)
	admin.GET("/users", handlers.AdminListUsersHandler)
	admin.POST("/users", handlers.AdminCreateUserHandler)
	admin.PUT("/users/:id", handlers.AdminUpdateUserHandler)
	admin.DELETE("/users/:id", handlers.AdminDeleteUserHandler)
	admin.POST("/users/:id/toggle-status", handlers.AdminToggleUserStatusHandler)
	admin.DELETE("/users/:id/billing", handlers.AdminClearBillingHandler)
	admin.GET("/plans", handlers.AdminListPlansHandler)
	admin.POST("/plans", handlers.AdminCreatePlanHandler)
	admin.PUT("/plans/:id", handlers.AdminUpdatePlanHandler)
	admin.DELETE("/plans/:id", handlers.AdminDeletePlanHandler)

	apiV1 := e.Group("/api/v1")
	apiV1.GET("/ping", handlers.PingHandler)
	apiV1.GET("/me", handlers.APIMeHandler, bearer)
	apiV1.GET("/users", handlers.APIListUsersHandler, bearer, adminOnly)
	apiV1.POST("/users", handlers.APICreateUserHandler, bearer, adminOnly)

	commons.Logger.Info("Routes registered successfully")
}
