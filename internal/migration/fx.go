package migration

import (
	"strings"

	"github.com/smallbiznis/colegio/internal/config"
	"github.com/smallbiznis/colegio/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBMigrateOnStart {
			return nil
		}

		if strings.EqualFold(cfg.DBType, db.TypePostgres) {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
			log.Info("migrations applied", zap.String("source", "embedded"))
			return nil
		}

		if err := AutoMigrate(conn); err != nil {
			return err
		}
		log.Info("migrations applied", zap.String("source", "automigrate"), zap.String("type", cfg.DBType))
		return nil
	}),
)
