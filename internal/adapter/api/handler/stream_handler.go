package handler

import (
	"github.com/labstack/echo/v4"

	"fanlink/internal/usecase"
	"fanlink/pkg/response"
)

// RoomCounter reports live room membership; implemented by the websocket
// manager.
type RoomCounter interface {
	RoomSize(roomID string) int
}

type StreamHandler struct {
	liveChatUseCase *usecase.LiveChatUseCase
	rooms           RoomCounter
}

func NewStreamHandler(liveChatUseCase *usecase.LiveChatUseCase, rooms RoomCounter) *StreamHandler {
	return &StreamHandler{
		liveChatUseCase: liveChatUseCase,
		rooms:           rooms,
	}
}

type startStreamRequest struct {
	Title        string `json:"title" validate:"required"`
	MessagePrice int64  `json:"message_price" validate:"omitempty,min=0"`
}

type streamChatRequest struct {
	Body      string `json:"body" validate:"required"`
	ClientKey string `json:"client_key"`
}

type streamTipRequest struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Body      string `json:"body"`
	ClientKey string `json:"client_key"`
}

func (h *StreamHandler) StartStream(c echo.Context) error {
	var req startStreamRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	stream, err := h.liveChatUseCase.StartStream(c.Request().Context(), userID, usecase.StartStreamInput{
		Title:        req.Title,
		MessagePrice: req.MessagePrice,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, stream)
}

// GetStream returns the stream record plus the current viewer count, derived
// from live room membership rather than stored state.
func (h *StreamHandler) GetStream(c echo.Context) error {
	stream, err := h.liveChatUseCase.GetStream(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	viewerCount := 0
	if h.rooms != nil {
		viewerCount = h.rooms.RoomSize(usecase.StreamRoomID(stream.ID))
	}

	return response.Success(c, map[string]interface{}{
		"stream":       stream,
		"viewer_count": viewerCount,
	})
}

func (h *StreamHandler) EndStream(c echo.Context) error {
	userID := c.Get("uid").(string)

	stream, err := h.liveChatUseCase.EndStream(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, stream)
}

// SendChat relays a chat line into the stream, charging the per-line toll
// when the stream has one.
func (h *StreamHandler) SendChat(c echo.Context) error {
	var req streamChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	line, err := h.liveChatUseCase.SendChat(c.Request().Context(), userID, c.Param("id"), usecase.StreamChatInput{
		Body:      req.Body,
		ClientKey: req.ClientKey,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, line)
}

// SendTip debits an explicit amount and relays a highlighted chat line.
func (h *StreamHandler) SendTip(c echo.Context) error {
	var req streamTipRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	line, err := h.liveChatUseCase.SendTip(c.Request().Context(), userID, c.Param("id"), usecase.StreamTipInput{
		Amount:    req.Amount,
		Body:      req.Body,
		ClientKey: req.ClientKey,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, line)
}
