package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/colegio/internal/clock"
	"github.com/smallbiznis/colegio/internal/config"
	"github.com/smallbiznis/colegio/internal/feerecord"
	"github.com/smallbiznis/colegio/internal/liquidation"
	"github.com/smallbiznis/colegio/internal/migration"
	"github.com/smallbiznis/colegio/internal/observability"
	"github.com/smallbiznis/colegio/internal/outbox"
	"github.com/smallbiznis/colegio/internal/payment"
	"github.com/smallbiznis/colegio/internal/providers"
	"github.com/smallbiznis/colegio/internal/rate"
	"github.com/smallbiznis/colegio/internal/ratelimit"
	"github.com/smallbiznis/colegio/internal/receipt"
	"github.com/smallbiznis/colegio/internal/seed"
	"github.com/smallbiznis/colegio/internal/server"
	"github.com/smallbiznis/colegio/pkg/db"
	"go.uber.org/fx"
)

// The api process serves HTTP and only enqueues receipt notifications;
// apps/worker delivers them.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		seed.Module,
		clock.Module,
		ratelimit.Module,
		providers.Module,

		rate.Module,
		liquidation.Module,
		feerecord.Module,
		receipt.Module,
		payment.Module,
		outbox.StoreModule,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
