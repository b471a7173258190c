package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/pkg/db/pagination"
)

type CreateDealRequest struct {
	OrgID             snowflake.ID
	ActorID           snowflake.ID
	PipelineID        string
	StageID           string
	Title             string
	AmountCents       *int64
	Currency          string
	Probability       *int16
	ExpectedCloseDate *time.Time
	OwnerID           string
	DealType          string
	Tags              []string
	CustomFields      map[string]any
}

type UpdateDealRequest struct {
	OrgID             snowflake.ID
	ActorID           snowflake.ID
	ID                string
	StageID           *string
	Title             *string
	AmountCents       *int64
	ClearAmount       bool
	Currency          *string
	Probability       *int16
	ExpectedCloseDate *time.Time
	OwnerID           *string
	DealType          *string
	Tags              []string
	CustomFields      map[string]any
}

type MoveDealRequest struct {
	OrgID   snowflake.ID
	ActorID snowflake.ID
	ID      string
	StageID string
	Reason  string
}

type BulkMoveRequest struct {
	OrgID   snowflake.ID
	ActorID snowflake.ID
	IDs     []string
	StageID string
}

type GetDealRequest struct {
	OrgID snowflake.ID
	ID    string
}

type DeleteDealRequest struct {
	OrgID   snowflake.ID
	ActorID snowflake.ID
	ID      string
}

type ListDealRequest struct {
	OrgID        snowflake.ID
	PageToken    string
	PageSize     int32
	PipelineID   string
	StageID      string
	OwnerID      string
	Currency     string
	Status       string // "", "open", "closed"
	ExpectedFrom *time.Time
	ExpectedTo   *time.Time
}

type ListDealResponse struct {
	pagination.PageInfo
	Deals []Deal `json:"deals"`
}

type ListHistoryRequest struct {
	OrgID snowflake.ID
	ID    string
}

type Service interface {
	Create(context.Context, CreateDealRequest) (Deal, error)
	Update(context.Context, UpdateDealRequest) (Deal, error)
	GetByID(context.Context, GetDealRequest) (Deal, error)
	List(context.Context, ListDealRequest) (ListDealResponse, error)
	MoveToStage(context.Context, MoveDealRequest) (Deal, error)
	BulkMoveToStage(context.Context, BulkMoveRequest) (int, error)
	Delete(context.Context, DeleteDealRequest) error
	ListHistory(context.Context, ListHistoryRequest) ([]DealStageHistory, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidTitle        = errors.New("invalid_title")
	ErrDealNotFound        = errors.New("deal_not_found")
	ErrPipelineNotFound    = errors.New("pipeline_not_found")
	ErrPipelineInactive    = errors.New("pipeline_inactive")
	ErrStageNotFound       = errors.New("stage_not_found")
	ErrStageInactive       = errors.New("stage_inactive")
	ErrInvalidStage        = errors.New("invalid_stage")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidProbability  = errors.New("invalid_probability")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidCloseDate    = errors.New("invalid_close_date")
	ErrInvalidDealType     = errors.New("invalid_deal_type")
	ErrInvalidStatus       = errors.New("invalid_status")
)
