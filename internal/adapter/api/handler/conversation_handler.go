package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"fanlink/internal/usecase"
	"fanlink/pkg/response"
	"fanlink/pkg/utils"
)

type ConversationHandler struct {
	conversationUseCase *usecase.ConversationUseCase
	messageUseCase      *usecase.MessageUseCase
	unlockUseCase       *usecase.UnlockUseCase
}

func NewConversationHandler(
	conversationUseCase *usecase.ConversationUseCase,
	messageUseCase *usecase.MessageUseCase,
	unlockUseCase *usecase.UnlockUseCase,
) *ConversationHandler {
	return &ConversationHandler{
		conversationUseCase: conversationUseCase,
		messageUseCase:      messageUseCase,
		unlockUseCase:       unlockUseCase,
	}
}

type ensureConversationRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
}

type sendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Body        string `json:"body" validate:"required"`
	Kind        string `json:"kind" validate:"omitempty,oneof=text image video call_event"`
	Locked      bool   `json:"locked"`
	Price       int64  `json:"price" validate:"omitempty,min=0"`
}

// EnsureConversation opens (or returns) the conversation with another user.
func (h *ConversationHandler) EnsureConversation(c echo.Context) error {
	var req ensureConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	conv, err := h.conversationUseCase.EnsureConversation(c.Request().Context(), userID, req.RecipientID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conv)
}

// ListConversations returns the caller's chat list, most recent first.
func (h *ConversationHandler) ListConversations(c echo.Context) error {
	userID := c.Get("uid").(string)
	pagination := utils.GetPaginationParams(c)

	conversations, total, err := h.conversationUseCase.ListConversations(c.Request().Context(), userID, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, conversations, total, pagination.PageSize, pagination.Offset)
}

func (h *ConversationHandler) GetConversation(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")

	conv, err := h.conversationUseCase.GetConversation(c.Request().Context(), userID, conversationID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conv)
}

// MarkRead zeroes the caller's unread counter for the conversation.
func (h *ConversationHandler) MarkRead(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")

	if err := h.conversationUseCase.MarkRead(c.Request().Context(), userID, conversationID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "read"})
}

// SendMessage appends a message; the conversation is created implicitly on
// first contact.
func (h *ConversationHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	message, err := h.messageUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		RecipientID: req.RecipientID,
		Body:        req.Body,
		Kind:        req.Kind,
		Locked:      req.Locked,
		Price:       req.Price,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// ListMessages returns the recent message window, locked bodies redacted for
// viewers who have not unlocked them.
func (h *ConversationHandler) ListMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	messages, err := h.messageUseCase.ListMessages(c.Request().Context(), userID, conversationID, limit)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

// StreamMessages pushes live message windows as newline-delimited JSON until
// the client disconnects.
func (h *ConversationHandler) StreamMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	ctx := c.Request().Context()
	updates, err := h.messageUseCase.WatchMessages(ctx, userID, conversationID, limit)
	if err != nil {
		return response.Error(c, err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	resp.WriteHeader(http.StatusOK)

	encoder := json.NewEncoder(resp)
	for batch := range updates {
		if err := encoder.Encode(batch); err != nil {
			return nil
		}
		resp.Flush()
	}

	return nil
}

// UnlockMessage charges the caller and grants access to a locked message.
func (h *ConversationHandler) UnlockMessage(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")
	messageID := c.Param("messageId")

	message, err := h.unlockUseCase.UnlockMessage(c.Request().Context(), userID, conversationID, messageID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, message)
}

// MarkMessageRead records a per-message read receipt.
func (h *ConversationHandler) MarkMessageRead(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")
	messageID := c.Param("messageId")

	if err := h.messageUseCase.MarkMessageRead(c.Request().Context(), userID, conversationID, messageID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "read"})
}

// DeleteMessage removes a message the caller sent.
func (h *ConversationHandler) DeleteMessage(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")
	messageID := c.Param("messageId")

	if err := h.messageUseCase.DeleteMessage(c.Request().Context(), userID, conversationID, messageID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "deleted", "message_id": messageID})
}
