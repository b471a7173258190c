package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateStageRequest struct {
	Name               string `json:"name"`
	DisplayOrder       int    `json:"display_order"`
	DefaultProbability *int16 `json:"default_probability,omitempty"`
	IsClosed           bool   `json:"is_closed"`
	IsWon              bool   `json:"is_won"`
	Color              string `json:"color,omitempty"`
}

type CreatePipelineRequest struct {
	OrgID        snowflake.ID
	Name         string
	IsDefault    bool
	DisplayOrder int
	Stages       []CreateStageRequest
}

type UpdatePipelineRequest struct {
	OrgID     snowflake.ID
	ID        string
	Name      *string
	IsActive  *bool
	IsDefault *bool
}

type AddStageRequest struct {
	OrgID      snowflake.ID
	PipelineID string
	Stage      CreateStageRequest
}

type UpdateStageRequest struct {
	OrgID              snowflake.ID
	ID                 string
	Name               *string
	IsActive           *bool
	DefaultProbability *int16
	Color              *string
}

type GetPipelineRequest struct {
	OrgID snowflake.ID
	ID    string
}

type ListStagesRequest struct {
	OrgID      snowflake.ID
	PipelineID string
}

type Service interface {
	Create(context.Context, CreatePipelineRequest) (Pipeline, error)
	Update(context.Context, UpdatePipelineRequest) (Pipeline, error)
	GetByID(context.Context, GetPipelineRequest) (Pipeline, error)
	List(ctx context.Context, orgID snowflake.ID) ([]Pipeline, error)
	AddStage(context.Context, AddStageRequest) (PipelineStage, error)
	UpdateStage(context.Context, UpdateStageRequest) (PipelineStage, error)
	ListStages(context.Context, ListStagesRequest) ([]PipelineStage, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidID           = errors.New("invalid_id")
	ErrPipelineNotFound    = errors.New("pipeline_not_found")
	ErrStageNotFound       = errors.New("stage_not_found")
	ErrMissingStages       = errors.New("missing_stages")
	ErrInvalidDisplayOrder = errors.New("invalid_display_order")
	ErrInvalidProbability  = errors.New("invalid_probability")
	ErrWonStageNotClosed   = errors.New("won_stage_not_closed")
)
