package router

import (
	"github.com/labstack/echo/v4"

	"fanlink/internal/adapter/api/handler"
)

// SetupDevRouter exposes the dev token mint. Only called when the
// environment is development.
func SetupDevRouter(e *echo.Echo, devTokenHandler *handler.DevTokenHandler) {
	e.POST("/dev/token", devTokenHandler.IssueToken)
}
