package router

import (
	"github.com/labstack/echo/v4"

	"fanlink/internal/adapter/api/handler"
	"fanlink/internal/adapter/api/middleware"
)

// Setup wires every route group onto the echo instance.
func Setup(
	e *echo.Echo,
	authMiddleware *middleware.AuthMiddleware,
	userHandler *handler.UserHandler,
	conversationHandler *handler.ConversationHandler,
	walletHandler *handler.WalletHandler,
	streamHandler *handler.StreamHandler,
	mediaHandler *handler.MediaHandler,
	wsHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
) {
	SetupHealthRouter(e, healthHandler)
	SetupUserRouter(e, userHandler, authMiddleware)
	SetupConversationRouter(e, conversationHandler, mediaHandler, authMiddleware)
	SetupWalletRouter(e, walletHandler, authMiddleware)
	SetupStreamRouter(e, streamHandler, authMiddleware)
	SetupWebSocketRouter(e, wsHandler)
}
