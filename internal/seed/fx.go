package seed

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/colegio/internal/clock"
	"github.com/smallbiznis/colegio/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module seeds bootstrap data after migrations. Include it after
// migration.Module.
var Module = fx.Module("seed",
	fx.Invoke(func(db *gorm.DB, node *snowflake.Node, clk clock.Clock, cfg config.Config, log *zap.Logger) error {
		raw := strings.TrimSpace(cfg.SeedFeePrice)
		if raw == "" {
			return nil
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return ErrInvalidSeedPrice
		}

		seeded, err := EnsureFeePrice(db, node, clk.Now(), value)
		if err != nil {
			return err
		}
		if seeded {
			log.Info("fee price seeded", zap.String("value", value.StringFixed(2)))
		}
		return nil
	}),
)
