package migration

import (
	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/events/domain"
	"github.com/smallbiznis/datasmith/internal/pipeline"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Versioned SQL is written for postgres; other dialects are
			// dev/test targets and get the schema from the models.
			return conn.AutoMigrate(
				&domain.BillingEvent{},
				&domain.PaymentEvent{},
				&domain.ProductEvent{},
				&pipeline.Run{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
