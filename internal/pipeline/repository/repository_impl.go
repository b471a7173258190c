package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/internal/pipeline/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPipeline(ctx context.Context, db *gorm.DB, pipeline *domain.Pipeline) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO pipelines (id, org_id, name, is_active, is_default, display_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pipeline.ID,
		pipeline.OrgID,
		pipeline.Name,
		pipeline.IsActive,
		pipeline.IsDefault,
		pipeline.DisplayOrder,
		pipeline.CreatedAt,
		pipeline.UpdatedAt,
	).Error
}

func (r *repo) UpdatePipeline(ctx context.Context, db *gorm.DB, pipeline *domain.Pipeline) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pipelines
		 SET name = ?, is_active = ?, is_default = ?, display_order = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		pipeline.Name,
		pipeline.IsActive,
		pipeline.IsDefault,
		pipeline.DisplayOrder,
		pipeline.UpdatedAt,
		pipeline.OrgID,
		pipeline.ID,
	).Error
}

func (r *repo) FindPipelineByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Pipeline, error) {
	var pipeline domain.Pipeline
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, is_active, is_default, display_order, created_at, updated_at
		 FROM pipelines WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&pipeline).Error
	if err != nil {
		return nil, err
	}
	if pipeline.ID == 0 {
		return nil, nil
	}
	return &pipeline, nil
}

func (r *repo) ListPipelines(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.Pipeline, error) {
	var pipelines []domain.Pipeline
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, is_active, is_default, display_order, created_at, updated_at
		 FROM pipelines WHERE org_id = ? ORDER BY display_order ASC, created_at ASC`,
		orgID,
	).Scan(&pipelines).Error
	if err != nil {
		return nil, err
	}
	return pipelines, nil
}

func (r *repo) ClearDefaultPipeline(ctx context.Context, db *gorm.DB, orgID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pipelines SET is_default = ? WHERE org_id = ? AND is_default = ?`,
		false,
		orgID,
		true,
	).Error
}

func (r *repo) InsertStage(ctx context.Context, db *gorm.DB, stage *domain.PipelineStage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO pipeline_stages (id, org_id, pipeline_id, name, display_order, default_probability,
		 is_active, is_closed, is_won, color, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stage.ID,
		stage.OrgID,
		stage.PipelineID,
		stage.Name,
		stage.DisplayOrder,
		stage.DefaultProbability,
		stage.IsActive,
		stage.IsClosed,
		stage.IsWon,
		stage.Color,
		stage.CreatedAt,
		stage.UpdatedAt,
	).Error
}

func (r *repo) UpdateStage(ctx context.Context, db *gorm.DB, stage *domain.PipelineStage) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pipeline_stages
		 SET name = ?, display_order = ?, default_probability = ?, is_active = ?, is_closed = ?, is_won = ?, color = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		stage.Name,
		stage.DisplayOrder,
		stage.DefaultProbability,
		stage.IsActive,
		stage.IsClosed,
		stage.IsWon,
		stage.Color,
		stage.UpdatedAt,
		stage.OrgID,
		stage.ID,
	).Error
}

func (r *repo) FindStageByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.PipelineStage, error) {
	var stage domain.PipelineStage
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, pipeline_id, name, display_order, default_probability,
		 is_active, is_closed, is_won, color, created_at, updated_at
		 FROM pipeline_stages WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&stage).Error
	if err != nil {
		return nil, err
	}
	if stage.ID == 0 {
		return nil, nil
	}
	return &stage, nil
}

func (r *repo) ListStages(ctx context.Context, db *gorm.DB, orgID, pipelineID snowflake.ID) ([]domain.PipelineStage, error) {
	var stages []domain.PipelineStage
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, pipeline_id, name, display_order, default_probability,
		 is_active, is_closed, is_won, color, created_at, updated_at
		 FROM pipeline_stages WHERE org_id = ? AND pipeline_id = ?
		 ORDER BY display_order ASC`,
		orgID,
		pipelineID,
	).Scan(&stages).Error
	if err != nil {
		return nil, err
	}
	return stages, nil
}

func (r *repo) ListStagesByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.PipelineStage, error) {
	var stages []domain.PipelineStage
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, pipeline_id, name, display_order, default_probability,
		 is_active, is_closed, is_won, color, created_at, updated_at
		 FROM pipeline_stages WHERE org_id = ?
		 ORDER BY pipeline_id ASC, display_order ASC`,
		orgID,
	).Scan(&stages).Error
	if err != nil {
		return nil, err
	}
	return stages, nil
}
