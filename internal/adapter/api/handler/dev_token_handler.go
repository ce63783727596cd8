package handler

import (
	"github.com/labstack/echo/v4"

	"fanlink/internal/infrastructure/firebase"
	"fanlink/pkg/errors"
	"fanlink/pkg/response"
)

// DevTokenHandler mints development tokens so the API can be exercised
// without a Firebase project. Only routed in the development environment.
type DevTokenHandler struct {
	issuer *firebase.DevTokenIssuer
}

func NewDevTokenHandler(issuer *firebase.DevTokenIssuer) *DevTokenHandler {
	return &DevTokenHandler{
		issuer: issuer,
	}
}

type devTokenRequest struct {
	UID string `json:"uid" validate:"required"`
}

func (h *DevTokenHandler) IssueToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	token, err := h.issuer.Issue(req.UID)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to issue token", err))
	}

	return response.Success(c, map[string]string{"token": token})
}
