package http

import (
	"net/http"
	"strings"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmehdipour/marketplace-admin/internal/repository"
	echo "github.com/labstack/echo/v4"
)

func listDecisionsHandler(chRepo repository.CHDecisionsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := paging(c)

		var entity model.EntityType
		if raw := strings.TrimSpace(c.QueryParam("entity")); raw != "" {
			t, ok := model.ParseEntityType(raw)
			if !ok {
				return badEntity(c)
			}
			entity = t
		}
		entityID := strings.TrimSpace(c.QueryParam("entity_id"))

		rows, err := chRepo.List(c.Request().Context(), entity, entityID, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
