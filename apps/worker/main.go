package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/colegio/internal/clock"
	"github.com/smallbiznis/colegio/internal/config"
	"github.com/smallbiznis/colegio/internal/feerecord"
	"github.com/smallbiznis/colegio/internal/notification"
	"github.com/smallbiznis/colegio/internal/observability"
	"github.com/smallbiznis/colegio/internal/outbox"
	"github.com/smallbiznis/colegio/internal/payment"
	"github.com/smallbiznis/colegio/internal/providers"
	"github.com/smallbiznis/colegio/internal/ratelimit"
	"github.com/smallbiznis/colegio/internal/receipt"
	"github.com/smallbiznis/colegio/internal/scheduler"
	"github.com/smallbiznis/colegio/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,
		providers.Module,

		receipt.Module,
		feerecord.Module,
		payment.Module,

		outbox.Module,
		notification.Module,
		scheduler.Module,

		// Background work only; apps/api serves HTTP.
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
