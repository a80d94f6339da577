package db

import (
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmehdipour/marketplace-admin/internal/config"
	"github.com/jmoiron/sqlx"
)

// OpenClickHouse opens the reporting store holding the mirrored decision log.
// e.g. clickhouse://default:@localhost:9000/marketplace?dial_timeout=5s
func OpenClickHouse(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("clickhouse", cfg.DSN)
	if err != nil {
		return nil, err
	}
	configurePool(db, cfg)

	if err := ping(db, cfg.PingTimeout, 3*time.Second); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return db, nil
}
