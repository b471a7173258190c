// Package domain contains the transient forecast report model. A forecast
// is computed per request from a snapshot of deals and discarded after use;
// nothing here is persisted.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Scenario tier thresholds, in probability percent. The bands are evaluated
// independently per deal: a 95% deal lands in all three.
const (
	CommittedThreshold = 75
	BestCaseThreshold  = 25
	WorstCaseThreshold = 90
)

// ForecastResult is one computed report over a date window.
type ForecastResult struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Currency    string    `json:"currency,omitempty"`

	TotalPipelineValueCents int64 `json:"total_pipeline_value_cents"`
	TotalWeightedValueCents int64 `json:"total_weighted_value_cents"`
	CommittedValueCents     int64 `json:"committed_value_cents"`
	BestCaseValueCents      int64 `json:"best_case_value_cents"`
	WorstCaseValueCents     int64 `json:"worst_case_value_cents"`

	TotalDeals      int `json:"total_deals"`
	OpenDeals       int `json:"open_deals"`
	ClosedWonDeals  int `json:"closed_won_deals"`
	ClosedLostDeals int `json:"closed_lost_deals"`

	ByPipeline []PipelineForecast `json:"by_pipeline"`
	ByStage    []StageForecast    `json:"by_stage"`
	ByOwner    []OwnerForecast    `json:"by_owner"`
	ByMonth    []MonthlyForecast  `json:"by_month"`
}

type PipelineForecast struct {
	PipelineID         snowflake.ID `json:"pipeline_id"`
	PipelineName       string       `json:"pipeline_name,omitempty"`
	TotalValueCents    int64        `json:"total_value_cents"`
	WeightedValueCents int64        `json:"weighted_value_cents"`
	DealCount          int          `json:"deal_count"`
	AvgDealSizeCents   float64      `json:"avg_deal_size_cents"`
	WinRate            float64      `json:"win_rate"`
}

type StageForecast struct {
	StageID            snowflake.ID `json:"stage_id"`
	StageName          string       `json:"stage_name,omitempty"`
	TotalValueCents    int64        `json:"total_value_cents"`
	WeightedValueCents int64        `json:"weighted_value_cents"`
	DealCount          int          `json:"deal_count"`
	AvgProbability     float64      `json:"avg_probability"`
}

// OwnerForecast groups by deal owner. Quota and attainment belong to an
// external quota subsystem and stay unpopulated here.
type OwnerForecast struct {
	OwnerID            snowflake.ID `json:"owner_id"`
	TotalValueCents    int64        `json:"total_value_cents"`
	WeightedValueCents int64        `json:"weighted_value_cents"`
	DealCount          int          `json:"deal_count"`
	QuotaCents         int64        `json:"quota_cents"`
	AttainmentRate     float64      `json:"attainment_rate"`
}

type MonthlyForecast struct {
	Month              string `json:"month"` // YYYY-MM
	TotalValueCents    int64  `json:"total_value_cents"`
	WeightedValueCents int64  `json:"weighted_value_cents"`
	DealCount          int    `json:"deal_count"`
	ExpectedClosures   int64  `json:"expected_closures"`
}
