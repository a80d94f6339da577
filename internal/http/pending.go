package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	echo "github.com/labstack/echo/v4"
)

// CountsPort is the read side of the notification port.
type CountsPort interface {
	GetPendingCount(t model.EntityType) (model.PendingCount, error)
	Snapshot() model.CountsSnapshot
	SubscribeToCounts(ctx context.Context, cb func(model.CountsSnapshot)) (unsubscribe func())
}

func pendingCountsHandler(port CountsPort) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, port.Snapshot())
	}
}

func pendingCountHandler(port CountsPort) echo.HandlerFunc {
	return func(c echo.Context) error {
		t, ok := entityParam(c, "entity")
		if !ok {
			return badEntity(c)
		}
		pc, err := port.GetPendingCount(t)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, pc)
	}
}

// pendingStreamHandler serves count snapshots as Server-Sent Events until the
// client goes away.
func pendingStreamHandler(port CountsPort, keepAlive time.Duration) echo.HandlerFunc {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		w := c.Response()
		w.Header().Set(echo.HeaderContentType, "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		w.Flush()

		snaps := make(chan model.CountsSnapshot, 1)
		unsubscribe := port.SubscribeToCounts(ctx, func(s model.CountsSnapshot) {
			select {
			case snaps <- s:
				return
			default:
			}
			// keep only the newest
			select {
			case <-snaps:
			default:
			}
			select {
			case snaps <- s:
			default:
			}
		})
		defer unsubscribe()

		ping := time.NewTicker(keepAlive)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ping.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return nil
				}
				w.Flush()
			case s := <-snaps:
				data, err := json.Marshal(s)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "event: counts\ndata: %s\n\n", data); err != nil {
					return nil
				}
				w.Flush()
			}
		}
	}
}
