package cmd

import (
	"testing"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmehdipour/marketplace-admin/migrations"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(migrations.ClickHouse)
	require.Len(t, stmts, 3)
	require.Contains(t, stmts[0], "CREATE DATABASE")
	require.Contains(t, stmts[2], "decisions_latest")

	require.Equal(t, []string{"SELECT 1", "SELECT 2"}, splitStatements("-- c\nSELECT 1;\n\nSELECT 2;\n"))
}

func TestFormatSnapshot(t *testing.T) {
	s := model.CountsSnapshot{
		At: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
		Counts: []model.PendingCount{
			{Entity: model.EntitySellerApplication, Count: 2},
			{Entity: model.EntityProduct, Count: 5},
		},
	}
	require.Equal(t, "09:30:00 seller_application=2 product=5", formatSnapshot(s))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "seed", "counts", "watch"} {
		require.True(t, names[want], want)
	}
}
