// Package domain contains persistence models for sales pipelines and stages.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Pipeline is an ordered sales process owned by one organization.
type Pipeline struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Name         string       `gorm:"not null" json:"name"`
	IsActive     bool         `gorm:"not null;default:true" json:"is_active"`
	IsDefault    bool         `gorm:"not null;default:false" json:"is_default"`
	DisplayOrder int          `gorm:"not null;default:0" json:"display_order"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Pipeline) TableName() string { return "pipelines" }

// PipelineStage is one ordered step of a pipeline. A stage marked won is
// always also marked closed.
type PipelineStage struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID `gorm:"not null;index" json:"organization_id"`
	PipelineID         snowflake.ID `gorm:"not null;index" json:"pipeline_id"`
	Name               string       `gorm:"not null" json:"name"`
	DisplayOrder       int          `gorm:"not null" json:"display_order"`
	DefaultProbability *int16       `gorm:"type:smallint" json:"default_probability,omitempty"`
	IsActive           bool         `gorm:"not null;default:true" json:"is_active"`
	IsClosed           bool         `gorm:"not null;default:false" json:"is_closed"`
	IsWon              bool         `gorm:"not null;default:false" json:"is_won"`
	Color              string       `gorm:"type:text" json:"color,omitempty"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PipelineStage) TableName() string { return "pipeline_stages" }
