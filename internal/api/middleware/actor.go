package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"marketplace-portal/internal/realtime"
)

const (
	ActorHeader      = "X-User-ID"
	AdminTokenHeader = "X-Admin-Token"

	actorKey = "actor"
)

// RequireActor resolves the acting user from the X-User-ID header. The header
// is set by the upstream auth gateway, it is checked with the same verifier as
// websocket identity claims.
func RequireActor(verifier realtime.IdentityVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := c.Request().Header.Get(ActorHeader)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
			}
			if err := verifier.Verify(c.Request().Context(), userID); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated").SetInternal(err)
			}
			c.Set(actorKey, userID)
			return next(c)
		}
	}
}

// Actor returns the user id stored by RequireActor.
func Actor(c echo.Context) string {
	userID, _ := c.Get(actorKey).(string)
	return userID
}

// RequireAdminToken guards operator endpoints. An empty configured token
// disables them.
func RequireAdminToken(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			given := c.Request().Header.Get(AdminTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "permission denied")
			}
			return next(c)
		}
	}
}
