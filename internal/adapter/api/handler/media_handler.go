package handler

import (
	"github.com/labstack/echo/v4"

	"fanlink/internal/infrastructure/storage"
	"fanlink/internal/usecase"
	"fanlink/pkg/errors"
	"fanlink/pkg/response"
)

// MediaHandler uploads message attachments. The returned URL goes into the
// message body of an image or video send; access control happens at message
// read time, so the bucket objects stay private.
type MediaHandler struct {
	storageClient       *storage.CloudStorageClient
	conversationUseCase *usecase.ConversationUseCase
}

func NewMediaHandler(storageClient *storage.CloudStorageClient, conversationUseCase *usecase.ConversationUseCase) *MediaHandler {
	return &MediaHandler{
		storageClient:       storageClient,
		conversationUseCase: conversationUseCase,
	}
}

const maxUploadBytes = 50 << 20 // 50 MB

func (h *MediaHandler) Upload(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")

	// Only participants may attach media to a conversation.
	if _, err := h.conversationUseCase.GetConversation(c.Request().Context(), userID, conversationID); err != nil {
		return response.Error(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("File is required", err))
	}
	if fileHeader.Size > maxUploadBytes {
		return response.Error(c, errors.BadRequest("File exceeds the 50MB limit", nil))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.Internal("Failed to open uploaded file", err))
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")

	url, err := h.storageClient.UploadFile(c.Request().Context(), file, contentType, conversationID)
	if err != nil {
		return response.Error(c, errors.BadRequest("Upload failed: "+err.Error(), err))
	}

	return response.Created(c, map[string]string{"url": url})
}
