package cmd

import (
	"fmt"

	"github.com/jmehdipour/marketplace-admin/internal/config"
	"github.com/jmehdipour/marketplace-admin/internal/guard"
	"github.com/jmehdipour/marketplace-admin/internal/notify"
	"github.com/jmehdipour/marketplace-admin/internal/pending"
	"github.com/jmehdipour/marketplace-admin/internal/repository"
	"github.com/jmehdipour/marketplace-admin/internal/service/workflow"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// core is the engine shared by serve and counts: aggregator, workflow and
// the notification port over them.
type core struct {
	entities    *repository.EntitiesRepositoryImpl
	agg         *pending.Aggregator
	engine      *workflow.Engine
	hub         *notify.Hub
	port        *notify.Port
	broadcaster *notify.RedisBroadcaster // nil without redis
}

func newCore(cfg config.Config, mysqlDB *sqlx.DB, rdb *redis.Client, log *zap.Logger) (*core, error) {
	rule, err := pending.ParseApplicationRule(cfg.Pending.ApplicationRule)
	if err != nil {
		return nil, fmt.Errorf("pending rule: %w", err)
	}
	g := guard.New(cfg.Pending.StoreTimeout, guard.NewBreaker(cfg.Breaker.FailThreshold, cfg.Breaker.OpenFor))

	c := &core{
		entities: repository.NewEntitiesRepository(mysqlDB),
		hub:      notify.NewHub(),
	}
	pubs := notify.Multi{c.hub}
	if rdb != nil {
		c.broadcaster = notify.NewRedisBroadcaster(rdb, cfg.Redis.CountsChannel, cfg.Redis.CountsKey, log)
		pubs = append(pubs, c.broadcaster)
	}

	c.agg = pending.NewAggregator(pending.NewEvaluator(rule), c.entities, c.entities, g, pending.Options{
		EchoTTL:   cfg.Pending.EchoTTL,
		Publisher: pubs,
		Logger:    log,
	})
	c.engine = workflow.New(
		mysqlDB,
		c.entities,
		repository.NewSuspensionRepository(mysqlDB),
		repository.NewDecisionsRepository(mysqlDB),
		c.agg,
		g,
		log,
	)
	c.port = notify.NewPort(c.agg, c.hub, c.engine)
	return c, nil
}
