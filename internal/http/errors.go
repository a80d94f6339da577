package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	echo "github.com/labstack/echo/v4"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to status codes. Client errors echo the
// message; server errors are logged and hidden.
func writeError(c echo.Context, err error) error {
	status := statusOf(err)
	switch status {
	case http.StatusServiceUnavailable:
		c.Logger().Warnf("store unavailable: %v", err)
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(status, map[string]string{"error": "store unavailable"})
	case http.StatusInternalServerError:
		c.Logger().Errorf("request failed: %v", err)
		return c.JSON(status, map[string]string{"error": "internal error"})
	default:
		return c.JSON(status, map[string]string{"error": err.Error()})
	}
}

func entityParam(c echo.Context, name string) (model.EntityType, bool) {
	return model.ParseEntityType(c.Param(name))
}

func badEntity(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "entity must be applications or products"})
}
