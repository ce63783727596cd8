package handler

import (
	"github.com/labstack/echo/v4"

	"fanlink/internal/infrastructure/presence"
	"fanlink/internal/usecase"
	"fanlink/pkg/response"
)

type UserHandler struct {
	userUseCase     *usecase.UserUseCase
	presenceService *presence.Service
}

func NewUserHandler(userUseCase *usecase.UserUseCase, presenceService *presence.Service) *UserHandler {
	return &UserHandler{
		userUseCase:     userUseCase,
		presenceService: presenceService,
	}
}

type registerProfileRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=64"`
	PhotoURL    string `json:"photo_url" validate:"omitempty,url"`
	Role        string `json:"role" validate:"omitempty,oneof=fan creator"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,min=2,max=64"`
	PhotoURL    string `json:"photo_url" validate:"omitempty,url"`
	Bio         string `json:"bio" validate:"omitempty,max=500"`
}

// RegisterProfile creates or refreshes the caller's profile record.
func (h *UserHandler) RegisterProfile(c echo.Context) error {
	var req registerProfileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	user, err := h.userUseCase.RegisterProfile(c.Request().Context(), userID, usecase.RegisterProfileInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		Role:        req.Role,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, user)
}

func (h *UserHandler) GetMe(c echo.Context) error {
	userID := c.Get("uid").(string)

	user, err := h.userUseCase.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, user)
}

func (h *UserHandler) UpdateMe(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	user, err := h.userUseCase.UpdateProfile(c.Request().Context(), userID, usecase.UpdateProfileInput{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		Bio:         req.Bio,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, user)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.userUseCase.GetProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, user)
}

// GetUserPresence returns the current online/offline state for a user. Live
// updates flow over the websocket; this is the poll fallback.
func (h *UserHandler) GetUserPresence(c echo.Context) error {
	status, err := h.presenceService.GetStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, status)
}
