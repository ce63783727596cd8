package router

import (
	"github.com/labstack/echo/v4"

	"fanlink/internal/adapter/api/handler"
	"fanlink/internal/adapter/api/middleware"
)

// SetupUserRouter sets up profile routes.
func SetupUserRouter(e *echo.Echo, userHandler *handler.UserHandler, authMiddleware *middleware.AuthMiddleware) {
	group := e.Group("/v1/users")
	group.Use(authMiddleware.Authenticate)

	group.POST("/register", userHandler.RegisterProfile) // POST /v1/users/register - create profile for authenticated identity
	group.GET("/me", userHandler.GetMe)
	group.PATCH("/me", userHandler.UpdateMe)
	group.GET("/:id", userHandler.GetUser)
	group.GET("/:id/presence", userHandler.GetUserPresence)
}
