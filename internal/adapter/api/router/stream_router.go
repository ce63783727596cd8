package router

import (
	"github.com/labstack/echo/v4"

	"fanlink/internal/adapter/api/handler"
	"fanlink/internal/adapter/api/middleware"
)

// SetupStreamRouter sets up live stream routes.
func SetupStreamRouter(e *echo.Echo, streamHandler *handler.StreamHandler, authMiddleware *middleware.AuthMiddleware) {
	group := e.Group("/v1/streams")
	group.Use(authMiddleware.Authenticate)

	group.POST("", streamHandler.StartStream)      // POST /v1/streams - go live
	group.GET("/:id", streamHandler.GetStream)     // GET  /v1/streams/:id
	group.PUT("/:id/end", streamHandler.EndStream) // PUT  /v1/streams/:id/end

	group.POST("/:id/chat", streamHandler.SendChat) // POST /v1/streams/:id/chat - tolled chat line
	group.POST("/:id/tip", streamHandler.SendTip)   // POST /v1/streams/:id/tip
}
