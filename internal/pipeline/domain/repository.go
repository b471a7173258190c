package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPipeline(ctx context.Context, db *gorm.DB, pipeline *Pipeline) error
	UpdatePipeline(ctx context.Context, db *gorm.DB, pipeline *Pipeline) error
	FindPipelineByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Pipeline, error)
	ListPipelines(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Pipeline, error)
	ClearDefaultPipeline(ctx context.Context, db *gorm.DB, orgID snowflake.ID) error

	InsertStage(ctx context.Context, db *gorm.DB, stage *PipelineStage) error
	UpdateStage(ctx context.Context, db *gorm.DB, stage *PipelineStage) error
	FindStageByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*PipelineStage, error)
	ListStages(ctx context.Context, db *gorm.DB, orgID, pipelineID snowflake.ID) ([]PipelineStage, error)
	ListStagesByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]PipelineStage, error)
}
