package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type revokeTokenRequest struct {
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegisterRevocationRoutes registers POST /auth/revoke. Admin only.
func RegisterRevocationRoutes(g *echo.Group, store RevocationStore) {
	authGroup := g.Group("/auth", RequireRole(RoleAdmin))
	authGroup.POST("/revoke", handleRevokeToken(store))
}

func handleRevokeToken(store RevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req revokeTokenRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.JTI == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "jti is required")
		}
		if req.ExpiresAt.IsZero() {
			// Tokens are short-lived; a day outlasts any of them.
			req.ExpiresAt = time.Now().Add(24 * time.Hour)
		}
		if err := store.Revoke(c.Request().Context(), req.JTI, req.ExpiresAt); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}
