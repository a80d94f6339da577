package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeAdmins struct {
	admins map[string]*model.Admin
	err    error
}

func (f fakeAdmins) GetByAPIKey(_ context.Context, key string) (*model.Admin, error) {
	return f.admins[key], f.err
}

func intptr(v int) *int { return &v }

func serve(e *echo.Echo, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if key != "" {
		req.Header.Set(HeaderAdminKey, key)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyMiddleware(t *testing.T) {
	admins := fakeAdmins{admins: map[string]*model.Admin{
		"good":   {ID: 7, Status: "active", RateLimitRPS: intptr(3)},
		"frozen": {ID: 8, Status: "suspended"},
	}}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error {
		id, ok := AdminIDFromCtx(c)
		require.True(t, ok)
		require.Equal(t, int64(7), id)
		require.Equal(t, 3, c.Get(ctxAdminRPS))
		return c.String(http.StatusOK, "admin")
	}, APIKeyMiddleware(admins))

	require.Equal(t, http.StatusUnauthorized, serve(e, "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(e, "unknown").Code)
	require.Equal(t, http.StatusUnauthorized, serve(e, "frozen").Code)

	rec := serve(e, "good")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyMiddlewareLookupFailure(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		APIKeyMiddleware(fakeAdmins{err: errors.New("db down")}))
	require.Equal(t, http.StatusServiceUnavailable, serve(e, "good").Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		APIKeyMiddleware(fakeAdmins{admins: map[string]*model.Admin{"good": {ID: 7, Status: "active", RateLimitRPS: intptr(2)}}}),
		RateLimitMiddleware(RateLimitConfig{Redis: rdb, DefaultRPS: 10, RetryAfterHint: true, Now: func() time.Time { return fixed }}),
	)

	require.Equal(t, http.StatusOK, serve(e, "good").Code)
	require.Equal(t, http.StatusOK, serve(e, "good").Code)
	rec := serve(e, "good")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimitFailsOpenWithoutRedis(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error {
		c.Set(ctxAdminID, int64(7))
		return c.NoContent(http.StatusOK)
	}, RateLimitMiddleware(RateLimitConfig{DefaultRPS: 1}))

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serve(e, "").Code)
	}
}
