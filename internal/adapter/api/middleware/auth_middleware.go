package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"fanlink/internal/infrastructure/firebase"
)

type AuthMiddleware struct {
	authClient *firebase.FirebaseAuthClient
	devIssuer  *firebase.DevTokenIssuer
}

// NewAuthMiddleware builds the bearer-token guard. devIssuer is non-nil only
// in the development environment; production tokens always go through
// Firebase.
func NewAuthMiddleware(authClient *firebase.FirebaseAuthClient, devIssuer *firebase.DevTokenIssuer) *AuthMiddleware {
	return &AuthMiddleware{
		authClient: authClient,
		devIssuer:  devIssuer,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		uid, err := m.GetUIDFromToken(c.Request().Context(), parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set("uid", uid)

		return next(c)
	}
}

// GetUIDFromToken verifies a raw token outside the middleware chain, used by
// the websocket endpoint where the token arrives as a query parameter.
func (m *AuthMiddleware) GetUIDFromToken(ctx context.Context, token string) (string, error) {
	if m.devIssuer != nil {
		if uid, err := m.devIssuer.Verify(token); err == nil {
			return uid, nil
		}
	}

	return m.authClient.VerifyToken(ctx, token)
}
