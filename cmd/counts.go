package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmehdipour/marketplace-admin/internal/config"
	"github.com/jmehdipour/marketplace-admin/internal/db"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/spf13/cobra"
)

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Reconcile once and print the current pending counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		mysqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		c, err := newCore(cfg, mysqlDB, nil, nil)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		for _, t := range model.TrackedEntities {
			if err := c.agg.Reconcile(ctx, t); err != nil {
				return fmt.Errorf("reconcile %s: %w", t, err)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(c.port.Snapshot())
	},
}
