package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/internal/config"
	dealdomain "github.com/smallbiznis/dealdesk/internal/deal/domain"
	"github.com/smallbiznis/dealdesk/internal/event"
	pipelinedomain "github.com/smallbiznis/dealdesk/internal/pipeline/domain"
	"github.com/smallbiznis/dealdesk/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, catalog *config.CatalogHolder) error {
		// SQL migrations target postgres; other dialects fall back to the
		// model-driven schema.
		if conn.Dialector.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			err := conn.AutoMigrate(
				&pipelinedomain.Pipeline{},
				&pipelinedomain.PipelineStage{},
				&dealdomain.Deal{},
				&dealdomain.DealStageHistory{},
				&event.DealEventRow{},
			)
			if err != nil {
				return err
			}
		}

		if cfg.DefaultOrgID != 0 {
			return seed.EnsureDefaultPipeline(conn, catalog.Get(), snowflake.ID(cfg.DefaultOrgID))
		}
		return nil
	}),
)
