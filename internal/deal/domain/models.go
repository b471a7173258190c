// Package domain contains persistence models for deals and their stage
// transition history.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// DealType enumerates the supported kinds of business.
const (
	DealTypeNewBusiness      = "new_business"
	DealTypeExistingBusiness = "existing_business"
	DealTypeRenewal          = "renewal"
)

// Deal is a tracked sales opportunity. It sits in exactly one stage of one
// pipeline; closed/won state and the weighted amount are derived from the
// stage and probability, never set directly by callers.
type Deal struct {
	ID                  snowflake.ID                `gorm:"primaryKey" json:"id"`
	OrgID               snowflake.ID                `gorm:"not null;index" json:"organization_id"`
	PipelineID          snowflake.ID                `gorm:"not null;index" json:"pipeline_id"`
	StageID             snowflake.ID                `gorm:"not null;index" json:"stage_id"`
	Title               string                      `gorm:"not null" json:"title"`
	AmountCents         *int64                      `gorm:"" json:"amount_cents,omitempty"`
	Currency            string                      `gorm:"type:text" json:"currency,omitempty"`
	Probability         *int16                      `gorm:"type:smallint" json:"probability,omitempty"`
	WeightedAmountCents int64                       `gorm:"not null;default:0" json:"weighted_amount_cents"`
	IsClosed            bool                        `gorm:"not null;default:false" json:"is_closed"`
	IsWon               bool                        `gorm:"not null;default:false" json:"is_won"`
	ExpectedCloseDate   *time.Time                  `gorm:"" json:"expected_close_date,omitempty"`
	ActualCloseDate     *time.Time                  `gorm:"" json:"actual_close_date,omitempty"`
	OwnerID             *snowflake.ID               `gorm:"index" json:"owner_id,omitempty"`
	DealType            *string                     `gorm:"type:text" json:"deal_type,omitempty"`
	Tags                datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"tags,omitempty"`
	CustomFields        datatypes.JSONMap           `gorm:"type:jsonb" json:"custom_fields,omitempty"`
	CreatedBy           snowflake.ID                `gorm:"not null" json:"created_by"`
	UpdatedBy           snowflake.ID                `gorm:"not null" json:"updated_by"`
	CreatedAt           time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Deal) TableName() string { return "deals" }

// WeightedAmountCents derives amount x probability / 100 with half-up
// rounding. Either side missing yields 0.
func WeightedAmountCents(amountCents *int64, probability *int16) int64 {
	if amountCents == nil || probability == nil {
		return 0
	}
	return (*amountCents*int64(*probability) + 50) / 100
}

// DealStageHistory is the append-only audit record of one stage transition.
// Exactly one entry per deal has a nil FromStageID: the creation entry.
type DealStageHistory struct {
	ID                  snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID               snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	DealID              snowflake.ID  `gorm:"not null;index" json:"deal_id"`
	PipelineID          snowflake.ID  `gorm:"not null" json:"pipeline_id"`
	FromStageID         *snowflake.ID `gorm:"" json:"from_stage_id,omitempty"`
	ToStageID           snowflake.ID  `gorm:"not null" json:"to_stage_id"`
	ChangedBy           snowflake.ID  `gorm:"not null" json:"changed_by"`
	Reason              string        `gorm:"type:text" json:"reason,omitempty"`
	ChangedAt           time.Time     `gorm:"not null" json:"changed_at"`
	DurationInPrevHours *int64        `gorm:"column:duration_in_prev_hours" json:"duration_in_prev_hours,omitempty"`
}

// TableName sets the database table name.
func (DealStageHistory) TableName() string { return "deal_stage_history" }
