package middleware

import (
	"github.com/labstack/echo/v4"

	appcontext "github.com/harmonia-app/harmonia/pkg/context"
)

// TestAuth extracts the user id from the X-User-ID header when auth is
// disabled. This allows exercising the API without a real OIDC provider.
//
// WARNING: Only use this when AUTH_ENABLED=false. Do not enable in production.
func TestAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			userID := c.Request().Header.Get("X-User-ID")
			if userID != "" {
				ctx = appcontext.SetUserID(ctx, userID)
			}

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
