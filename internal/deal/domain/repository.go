package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// ListDealFilter narrows List results. Zero values mean "no filter".
type ListDealFilter struct {
	PipelineID   snowflake.ID
	StageID      snowflake.ID
	OwnerID      snowflake.ID
	Currency     string
	OnlyOpen     bool
	OnlyClosed   bool
	ExpectedFrom *time.Time
	ExpectedTo   *time.Time
}

// ForecastFilter selects deals for forecast aggregation: expected close date
// within [Start, End] inclusive, optional pipeline and exact currency match.
type ForecastFilter struct {
	Start      time.Time
	End        time.Time
	PipelineID snowflake.ID
	Currency   string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, deal *Deal) error
	Update(ctx context.Context, db *gorm.DB, deal *Deal) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Deal, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Deal, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListDealFilter, page pagination.Pagination) ([]*Deal, error)
	ListForForecast(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ForecastFilter) ([]Deal, error)

	InsertHistory(ctx context.Context, db *gorm.DB, entry *DealStageHistory) error
	LastHistory(ctx context.Context, db *gorm.DB, orgID, dealID snowflake.ID) (*DealStageHistory, error)
	ListHistory(ctx context.Context, db *gorm.DB, orgID, dealID snowflake.ID) ([]DealStageHistory, error)
	DeleteHistoryByDeal(ctx context.Context, db *gorm.DB, orgID, dealID snowflake.ID) error
}
