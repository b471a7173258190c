package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	dealdomain "github.com/smallbiznis/dealdesk/internal/deal/domain"
	"github.com/smallbiznis/dealdesk/internal/forecast/domain"
	"github.com/smallbiznis/dealdesk/internal/observability/metrics"
	pipelinedomain "github.com/smallbiznis/dealdesk/internal/pipeline/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	DealRepo     dealdomain.Repository
	PipelineRepo pipelinedomain.Repository
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	dealRepo     dealdomain.Repository
	pipelineRepo pipelinedomain.Repository
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("forecast.service"),
		dealRepo:     p.DealRepo,
		pipelineRepo: p.PipelineRepo,
		metrics:      p.Metrics,
	}
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Range computes a forecast over [Start, End] inclusive. It never mutates
// deals; the selected set is a snapshot read and the report is advisory.
func (s *Service) Range(ctx context.Context, req domain.RangeForecastRequest) (domain.ForecastResult, error) {
	if req.OrgID == 0 {
		return domain.ForecastResult{}, domain.ErrInvalidOrganization
	}
	if req.Start.IsZero() || req.End.IsZero() || req.End.Before(req.Start) {
		return domain.ForecastResult{}, domain.ErrInvalidRange
	}

	currency := strings.TrimSpace(req.Currency)
	if currency != "" && !currencyPattern.MatchString(currency) {
		return domain.ForecastResult{}, domain.ErrInvalidCurrency
	}

	filter := dealdomain.ForecastFilter{
		Start:    req.Start,
		End:      req.End,
		Currency: currency,
	}
	if trimmed := strings.TrimSpace(req.PipelineID); trimmed != "" {
		pipelineID, err := snowflake.ParseString(trimmed)
		if err != nil || pipelineID == 0 {
			return domain.ForecastResult{}, domain.ErrInvalidID
		}
		filter.PipelineID = pipelineID
	}

	deals, err := s.dealRepo.ListForForecast(ctx, s.db, req.OrgID, filter)
	if err != nil {
		return domain.ForecastResult{}, err
	}

	result := aggregate(deals, req.Start, req.End)
	result.Currency = currency
	s.resolveNames(ctx, req.OrgID, &result)

	s.metrics.RecordForecastRun(ctx, "range")
	return result, nil
}

// Quarter computes the calendar-quarter window and delegates to Range.
func (s *Service) Quarter(ctx context.Context, req domain.QuarterForecastRequest) (domain.ForecastResult, error) {
	if req.Quarter < 1 || req.Quarter > 4 {
		return domain.ForecastResult{}, domain.ErrInvalidQuarter
	}
	start := time.Date(req.Year, time.Month((req.Quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0).Add(-time.Second)
	return s.Range(ctx, domain.RangeForecastRequest{
		OrgID:      req.OrgID,
		Start:      start,
		End:        end,
		PipelineID: req.PipelineID,
		Currency:   req.Currency,
	})
}

// Month computes the calendar-month window and delegates to Range.
func (s *Service) Month(ctx context.Context, req domain.MonthForecastRequest) (domain.ForecastResult, error) {
	if req.Month < time.January || req.Month > time.December {
		return domain.ForecastResult{}, domain.ErrInvalidMonth
	}
	start := time.Date(req.Year, req.Month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return s.Range(ctx, domain.RangeForecastRequest{
		OrgID:      req.OrgID,
		Start:      start,
		End:        end,
		PipelineID: req.PipelineID,
		Currency:   req.Currency,
	})
}

// resolveNames fills display names from the catalog. A missing catalog row
// leaves the name empty rather than failing the report.
func (s *Service) resolveNames(ctx context.Context, orgID snowflake.ID, result *domain.ForecastResult) {
	pipelines, err := s.pipelineRepo.ListPipelines(ctx, s.db, orgID)
	if err != nil {
		s.log.Warn("failed to resolve pipeline names", zap.Error(err))
	} else {
		names := make(map[snowflake.ID]string, len(pipelines))
		for _, pipeline := range pipelines {
			names[pipeline.ID] = pipeline.Name
		}
		for i := range result.ByPipeline {
			result.ByPipeline[i].PipelineName = names[result.ByPipeline[i].PipelineID]
		}
	}

	stages, err := s.pipelineRepo.ListStagesByOrg(ctx, s.db, orgID)
	if err != nil {
		s.log.Warn("failed to resolve stage names", zap.Error(err))
		return
	}
	names := make(map[snowflake.ID]string, len(stages))
	for _, stage := range stages {
		names[stage.ID] = stage.Name
	}
	for i := range result.ByStage {
		result.ByStage[i].StageName = names[result.ByStage[i].StageID]
	}
}
