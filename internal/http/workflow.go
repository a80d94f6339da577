package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jmehdipour/marketplace-admin/internal/http/middleware"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmehdipour/marketplace-admin/internal/service/workflow"
	echo "github.com/labstack/echo/v4"
)

// WorkflowPort runs approval transitions.
type WorkflowPort interface {
	Approve(ctx context.Context, req workflow.Request) (model.Entity, error)
	Reject(ctx context.Context, req workflow.Request) (model.Entity, error)
	Suspend(ctx context.Context, req workflow.Request) (model.Entity, error)
	Activate(ctx context.Context, req workflow.Request) (model.Entity, error)
}

// EntityReader serves single rows and the review queue.
type EntityReader interface {
	Get(ctx context.Context, t model.EntityType, id string) (model.Entity, error)
	Queue(ctx context.Context, t model.EntityType, limit, offset int) ([]model.Entity, error)
}

type reasonReq struct {
	Reason string `json:"reason"`
}

type transitionFunc func(ctx context.Context, req workflow.Request) (model.Entity, error)

func transitionHandler(fn transitionFunc, needsReason bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		t, ok := entityParam(c, "entity")
		if !ok {
			return badEntity(c)
		}
		adminID, ok := middleware.AdminIDFromCtx(c)
		if !ok || adminID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var body reasonReq
		if needsReason {
			if err := c.Bind(&body); err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
			}
		}

		ent, err := fn(c.Request().Context(), workflow.Request{
			Type:    t,
			ID:      c.Param("id"),
			Reason:  body.Reason,
			AdminID: adminID,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, ent)
	}
}

func getEntityHandler(reader EntityReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		t, ok := entityParam(c, "entity")
		if !ok {
			return badEntity(c)
		}
		ent, err := reader.Get(c.Request().Context(), t, c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, ent)
	}
}

func queueHandler(reader EntityReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		t, ok := entityParam(c, "entity")
		if !ok {
			return badEntity(c)
		}
		limit, offset := paging(c)

		items, err := reader.Queue(c.Request().Context(), t, limit, offset)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"entity":  t,
			"limit":   limit,
			"offset":  offset,
			"count":   len(items),
			"results": items,
		})
	}
}

func paging(c echo.Context) (limit, offset int) {
	limit = 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
