package middleware

import (
	"net/http"
	"strings"

	"github.com/jmehdipour/marketplace-admin/internal/repository"
	echo "github.com/labstack/echo/v4"
)

const (
	HeaderAdminKey = "X-Admin-Key"

	ctxAdminID  = "admin_id"
	ctxAdminRPS = "admin_rps"
)

// AdminIDFromCtx extracts the authenticated admin id set by APIKeyMiddleware.
func AdminIDFromCtx(c echo.Context) (int64, bool) {
	id, ok := c.Get(ctxAdminID).(int64)
	return id, ok
}

// APIKeyMiddleware authenticates requests using the X-Admin-Key header.
// On success it stores admin_id in context; suspended admins are refused.
func APIKeyMiddleware(admins repository.AdminsRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get(HeaderAdminKey))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing admin key"})
			}
			a, err := admins.GetByAPIKey(c.Request().Context(), key)
			if err != nil {
				c.Logger().Errorf("admin lookup failed: %v", err)
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "auth unavailable"})
			}
			if a == nil || a.Status != "active" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid admin key"})
			}
			c.Set(ctxAdminID, a.ID)
			if a.RateLimitRPS != nil {
				c.Set(ctxAdminRPS, *a.RateLimitRPS)
			}
			return next(c)
		}
	}
}
