package router

import (
	"github.com/labstack/echo/v4"

	"fanlink/internal/adapter/api/handler"
	"fanlink/internal/adapter/api/middleware"
)

// SetupWalletRouter sets up wallet and ledger routes.
func SetupWalletRouter(e *echo.Echo, walletHandler *handler.WalletHandler, authMiddleware *middleware.AuthMiddleware) {
	group := e.Group("/v1/wallet")
	group.Use(authMiddleware.Authenticate)

	group.GET("", walletHandler.GetBalance)                  // GET /v1/wallet - balance
	group.GET("/transactions", walletHandler.ListTransactions) // GET /v1/wallet/transactions - ledger history
	group.GET("/earnings", walletHandler.GetEarnings)        // GET /v1/wallet/earnings - creator earnings summary

	// The processor webhook authenticates with a shared secret, not a user
	// token, so it sits outside the authenticated group.
	e.POST("/v1/wallet/credits", walletHandler.HandleCreditWebhook)
}
