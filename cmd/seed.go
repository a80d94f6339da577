package cmd

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/config"
	"github.com/jmehdipour/marketplace-admin/internal/db"
	"github.com/jmehdipour/marketplace-admin/internal/logger"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo admins, seller applications and products",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.App.LogLevel, cfg.App.Name, cfg.App.Env)

		// 2) connect MySQL
		sqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Info("seeding demo data")

		if err := seedAdmins(sqlDB); err != nil {
			return err
		}
		n, err := seedEntities(sqlDB, time.Now().UTC())
		if err != nil {
			return err
		}

		log.Info("seed completed", zap.Int("entities", n))
		return nil
	},
}

// seedAdmins inserts deterministic demo admins (idempotent).
func seedAdmins(dbx *sqlx.DB) error {
	admins := []model.Admin{
		{Name: "Reviewer One", APIKey: "11111111111111111111111111111111", Status: "active", RateLimitRPS: intptr(20)},
		{Name: "Reviewer Two", APIKey: "22222222222222222222222222222222", Status: "active", RateLimitRPS: intptr(50)},
		{Name: "Former Staff", APIKey: "44444444444444444444444444444444", Status: "suspended"},
	}

	// idempotent upsert based on api_key (UNIQUE)
	const q = `
INSERT INTO admins
    (name, api_key, status, rate_limit_rps, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name           = VALUES(name),
    status         = VALUES(status),
    rate_limit_rps = VALUES(rate_limit_rps),
    updated_at     = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, a := range admins {
		if _, err := tx.Exec(q, a.Name, a.APIKey, a.Status, a.RateLimitRPS, now, now); err != nil {
			return fmt.Errorf("insert admin %q: %w", a.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit admins: %w", err)
	}
	return nil
}

type seedRow struct {
	table  string
	id     string
	name   string
	state  model.ApprovalState
	status model.Status
	reason string
}

// seedEntities covers every state: pending, approved/active,
// approved/suspended (with its ledger row) and rejected. Existing ids are
// left alone.
func seedEntities(dbx *sqlx.DB, now time.Time) (int, error) {
	rows := []seedRow{
		{"seller_applications", "app-0001", "Green Valley Farm", model.StatePending, model.StatusNone, ""},
		{"seller_applications", "app-0002", "Sunrise Orchards", model.StatePending, model.StatusNone, ""},
		{"seller_applications", "app-0003", "Hilltop Dairy", model.StateApproved, model.StatusActive, ""},
		{"seller_applications", "app-0004", "Quick Cash Goods", model.StateRejected, model.StatusNone, "incomplete documents"},
		{"products", "prd-0001", "Organic Tomatoes 1kg", model.StatePending, model.StatusNone, ""},
		{"products", "prd-0002", "Raw Honey 500g", model.StatePending, model.StatusNone, ""},
		{"products", "prd-0003", "Goat Cheese", model.StatePending, model.StatusNone, ""},
		{"products", "prd-0004", "Free Range Eggs", model.StateApproved, model.StatusActive, ""},
		{"products", "prd-0005", "Miracle Cure Tea", model.StateApproved, model.StatusSuspended, "policy violation"},
		{"products", "prd-0006", "Blurry Listing", model.StateRejected, model.StatusNone, "blurry photos"},
	}

	tx, err := dbx.Beginx()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, r := range rows {
		nameCol := "seller_name"
		if r.table == "products" {
			nameCol = "title"
		}
		var status sql.NullInt64
		if r.status != model.StatusNone {
			status = sql.NullInt64{Int64: int64(r.status), Valid: true}
		}
		var reason sql.NullString
		if r.reason != "" {
			reason = sql.NullString{String: r.reason, Valid: true}
		}

		q := `INSERT IGNORE INTO ` + r.table + ` (id, ` + nameCol + `, approved_at, status_id, rejection_reason, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.Exec(q, r.id, r.name, model.EncodeApproval(r.state, now), status, reason, now, now); err != nil {
			return 0, fmt.Errorf("insert %s %s: %w", r.table, r.id, err)
		}

		if r.status == model.StatusSuspended {
			entity, _ := model.EntityTypeForTable(r.table)
			if _, err := tx.Exec(`INSERT IGNORE INTO suspensions (entity, entity_id, reason, suspended_at) VALUES (?, ?, ?, ?)`,
				entity.String(), r.id, r.reason, now); err != nil {
				return 0, fmt.Errorf("insert suspension %s: %w", r.id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit entities: %w", err)
	}
	return len(rows), nil
}

func intptr(i int) *int { return &i }
