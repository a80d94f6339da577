package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jmehdipour/marketplace-admin/internal/config"
	"github.com/jmehdipour/marketplace-admin/internal/db"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmehdipour/marketplace-admin/internal/notify"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print pending count snapshots published by running servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		rdb, err := db.OpenRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = rdb.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if s, ok, err := notify.Latest(ctx, rdb, cfg.Redis.CountsKey); err != nil {
			return fmt.Errorf("read latest counts: %w", err)
		} else if ok {
			fmt.Println(formatSnapshot(s))
		}

		return notify.Watch(ctx, rdb, cfg.Redis.CountsChannel, nil, func(s model.CountsSnapshot) {
			fmt.Println(formatSnapshot(s))
		})
	},
}

func formatSnapshot(s model.CountsSnapshot) string {
	parts := make([]string, 0, len(s.Counts)+1)
	parts = append(parts, s.At.Format("15:04:05"))
	for _, c := range s.Counts {
		parts = append(parts, fmt.Sprintf("%s=%d", c.Entity, c.Count))
	}
	return strings.Join(parts, " ")
}
