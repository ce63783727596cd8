package router

import (
	"github.com/labstack/echo/v4"

	"fanlink/internal/adapter/api/handler"
	"fanlink/internal/adapter/api/middleware"
)

// SetupConversationRouter sets up conversation and message routes.
func SetupConversationRouter(e *echo.Echo, conversationHandler *handler.ConversationHandler, mediaHandler *handler.MediaHandler, authMiddleware *middleware.AuthMiddleware) {
	group := e.Group("/v1/conversations")
	group.Use(authMiddleware.Authenticate)

	group.POST("", conversationHandler.EnsureConversation)    // POST /v1/conversations - open (or return) a conversation
	group.GET("", conversationHandler.ListConversations)      // GET  /v1/conversations - caller's chat list
	group.GET("/:id", conversationHandler.GetConversation)    // GET  /v1/conversations/:id
	group.PUT("/:id/read", conversationHandler.MarkRead)      // PUT  /v1/conversations/:id/read - zero unread counter

	group.GET("/:id/messages", conversationHandler.ListMessages)           // GET /v1/conversations/:id/messages
	group.GET("/:id/messages/stream", conversationHandler.StreamMessages)  // GET /v1/conversations/:id/messages/stream - live window
	group.POST("/:id/messages/:messageId/unlock", conversationHandler.UnlockMessage) // POST unlock a locked message
	group.PUT("/:id/messages/:messageId/read", conversationHandler.MarkMessageRead)  // PUT per-message read receipt
	group.DELETE("/:id/messages/:messageId", conversationHandler.DeleteMessage)      // DELETE own message

	group.POST("/:id/media", mediaHandler.Upload) // POST /v1/conversations/:id/media - upload attachment

	// Sending addresses the recipient, not an existing conversation; the
	// conversation is derived (and created) from the pair.
	messages := e.Group("/v1/messages")
	messages.Use(authMiddleware.Authenticate)
	messages.POST("", conversationHandler.SendMessage) // POST /v1/messages
}
