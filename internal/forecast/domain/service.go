package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type RangeForecastRequest struct {
	OrgID      snowflake.ID
	Start      time.Time
	End        time.Time
	PipelineID string
	Currency   string
}

type QuarterForecastRequest struct {
	OrgID      snowflake.ID
	Year       int
	Quarter    int
	PipelineID string
	Currency   string
}

type MonthForecastRequest struct {
	OrgID      snowflake.ID
	Year       int
	Month      time.Month
	PipelineID string
	Currency   string
}

type Service interface {
	Range(context.Context, RangeForecastRequest) (ForecastResult, error)
	Quarter(context.Context, QuarterForecastRequest) (ForecastResult, error)
	Month(context.Context, MonthForecastRequest) (ForecastResult, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidRange        = errors.New("invalid_range")
	ErrInvalidQuarter      = errors.New("invalid_quarter")
	ErrInvalidMonth        = errors.New("invalid_month")
	ErrInvalidCurrency     = errors.New("invalid_currency")
)
