// Package seed installs the default sales process for startup bootstrap.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/internal/config"
	pipelinedomain "github.com/smallbiznis/dealdesk/internal/pipeline/domain"
	pkgdb "github.com/smallbiznis/dealdesk/pkg/db"
	"gorm.io/gorm"
)

// EnsureDefaultPipeline installs the catalog pipeline and its stage ladder
// for the organization. Idempotent: an organization that already has a
// default pipeline is left untouched.
func EnsureDefaultPipeline(db *gorm.DB, catalog config.CatalogConfig, orgID snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if orgID == 0 {
		return errors.New("seed organization id is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Raw(
			`SELECT COUNT(1) FROM pipelines WHERE org_id = ? AND is_default = true`,
			orgID,
		).Scan(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		pipeline := pipelinedomain.Pipeline{
			ID:        node.Generate(),
			OrgID:     orgID,
			Name:      catalog.PipelineName,
			IsActive:  true,
			IsDefault: true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = tx.Exec(
			`INSERT INTO pipelines (id, org_id, name, is_active, is_default, display_order, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			pipeline.ID, pipeline.OrgID, pipeline.Name, pipeline.IsActive, pipeline.IsDefault, pipeline.DisplayOrder, pipeline.CreatedAt, pipeline.UpdatedAt,
		).Error
		if err != nil {
			return err
		}

		for _, stage := range catalog.Stages {
			err = tx.Exec(
				`INSERT INTO pipeline_stages (id, org_id, pipeline_id, name, display_order, default_probability, is_active, is_closed, is_won, color, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, true, ?, ?, ?, ?, ?)`,
				node.Generate(), orgID, pipeline.ID, stage.Name, stage.DisplayOrder, stage.DefaultProbability, stage.IsClosed, stage.IsWon, stage.Color, now, now,
			).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	// Another replica may have seeded the same org concurrently.
	if pkgdb.IsDuplicateKeyErr(err) {
		return nil
	}
	return err
}
