package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/config"
	"github.com/jmehdipour/marketplace-admin/internal/http/middleware"
	"github.com/jmehdipour/marketplace-admin/internal/logger"
	"github.com/jmehdipour/marketplace-admin/internal/metrics"
	"github.com/jmehdipour/marketplace-admin/internal/repository"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP surface needs. Redis and Decisions may
// be nil; the rate limiter then allows everything and reports are not routed.
type Deps struct {
	Counts    CountsPort
	Workflow  WorkflowPort
	Entities  EntityReader
	Admins    repository.AdminsRepository
	Decisions repository.CHDecisionsRepository
	Redis     *redis.Client
	Logger    *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLevel(cfg.App.LogLevel))
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(d.Admins)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:admin:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.GET("/pending", pendingCountsHandler(d.Counts))
	v1.GET("/pending/stream", pendingStreamHandler(d.Counts, 15*time.Second))
	v1.GET("/pending/:entity", pendingCountHandler(d.Counts))
	v1.GET("/queue/:entity", queueHandler(d.Entities))
	if d.Decisions != nil {
		v1.GET("/reports/decisions", listDecisionsHandler(d.Decisions))
	}

	v1.GET("/:entity/:id", getEntityHandler(d.Entities))
	v1.POST("/:entity/:id/approve", transitionHandler(d.Workflow.Approve, false))
	v1.POST("/:entity/:id/reject", transitionHandler(d.Workflow.Reject, true))
	v1.POST("/:entity/:id/suspend", transitionHandler(d.Workflow.Suspend, true))
	v1.POST("/:entity/:id/activate", transitionHandler(d.Workflow.Activate, false))

	return &Server{e: e, log: logger.OrNop(d.Logger).Named("http")}
}

func (s *Server) Handler() http.Handler { return s.e }

// Start blocks until the server stops; a graceful Shutdown is not an error.
func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

func echoLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}
