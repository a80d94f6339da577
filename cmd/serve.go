package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/cdc"
	"github.com/jmehdipour/marketplace-admin/internal/config"
	"github.com/jmehdipour/marketplace-admin/internal/db"
	httpSrv "github.com/jmehdipour/marketplace-admin/internal/http"
	"github.com/jmehdipour/marketplace-admin/internal/kafka"
	"github.com/jmehdipour/marketplace-admin/internal/logger"
	"github.com/jmehdipour/marketplace-admin/internal/repository"
	"github.com/jmehdipour/marketplace-admin/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server, change-feed listener and reconciliation scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.App.LogLevel, cfg.App.Name, cfg.App.Env)
		defer func() { _ = log.Sync() }()

		mysqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.OpenRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		chDB, err := db.OpenClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		c, err := newCore(cfg, mysqlDB, redisClient, log)
		if err != nil {
			return err
		}

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Counts:    c.port,
			Workflow:  c.port,
			Entities:  c.engine,
			Admins:    repository.NewAdminsRepository(mysqlDB),
			Decisions: repository.NewCHDecisionsRepository(chDB),
			Redis:     redisClient,
			Logger:    log,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error { return server.Start(cfg.HTTP.Addr) })
		g.Go(func() error {
			<-gctx.Done()
			log.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
			defer cancel()
			return server.Shutdown(sctx)
		})

		g.Go(func() error {
			return worker.NewReconciler(c.agg, cfg.Pending.ReconcileInterval, log).Run(gctx)
		})
		g.Go(func() error { return c.broadcaster.Run(gctx) })

		if cfg.Feed.Enabled {
			consumer := kafka.NewConsumerFromConfig(kafka.Config{
				Brokers:        cfg.Kafka.Brokers,
				Topics:         cfg.Kafka.Topics,
				GroupID:        cfg.Kafka.GroupID,
				MinBytes:       cfg.Kafka.MinBytes,
				MaxBytes:       cfg.Kafka.MaxBytes,
				CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
				MaxWait:        cfg.Kafka.MaxWait,
			})
			defer consumer.Close()

			feed := worker.NewFeedListener(consumer, cdc.NewNormalizer(cfg.Feed.TimestampUnit, log), c.agg, cfg.Feed.Workers, log)
			g.Go(func() error { return feed.Run(gctx) })
		} else {
			log.Warn("change feed disabled, counts move on reconcile and direct updates only")
		}

		log.Info("serve started",
			zap.String("addr", cfg.HTTP.Addr),
			zap.Duration("reconcile_interval", cfg.Pending.ReconcileInterval),
			zap.String("application_rule", cfg.Pending.ApplicationRule),
			zap.Bool("feed", cfg.Feed.Enabled))

		return g.Wait()
	},
}

func shutdownTimeout(cfg config.Config) time.Duration {
	if cfg.HTTP.ShutdownTimeout > 0 {
		return cfg.HTTP.ShutdownTimeout
	}
	return 5 * time.Second
}
