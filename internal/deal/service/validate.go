package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/internal/deal/domain"
	pipelinedomain "github.com/smallbiznis/dealdesk/internal/pipeline/domain"
	"gorm.io/gorm"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// resolveStage checks the catalog preconditions for a mutation: the pipeline
// exists and is active, the stage exists, is active, and belongs to that
// pipeline. Returns the stage so callers can read its defaults.
func (s *Service) resolveStage(ctx context.Context, tx *gorm.DB, orgID, pipelineID, stageID snowflake.ID) (*pipelinedomain.PipelineStage, error) {
	pipeline, err := s.pipelineRepo.FindPipelineByID(ctx, tx, orgID, pipelineID)
	if err != nil {
		return nil, err
	}
	if pipeline == nil {
		return nil, domain.ErrPipelineNotFound
	}
	if !pipeline.IsActive {
		return nil, domain.ErrPipelineInactive
	}

	stage, err := s.pipelineRepo.FindStageByID(ctx, tx, orgID, stageID)
	if err != nil {
		return nil, err
	}
	if stage == nil {
		return nil, domain.ErrStageNotFound
	}
	if !stage.IsActive {
		return nil, domain.ErrStageInactive
	}
	if stage.PipelineID != pipeline.ID {
		return nil, domain.ErrInvalidStage
	}

	return stage, nil
}

// validateFields enforces the business rules on caller-supplied fields.
// Checks run in a fixed order and stop at the first failure.
func (s *Service) validateFields(amountCents *int64, probability *int16, currency string, expectedCloseDate *time.Time, dealType string) error {
	if amountCents != nil && *amountCents < 0 {
		return domain.ErrInvalidAmount
	}
	if probability != nil && (*probability < 0 || *probability > 100) {
		return domain.ErrInvalidProbability
	}
	if trimmed := strings.TrimSpace(currency); trimmed != "" && !currencyPattern.MatchString(trimmed) {
		return domain.ErrInvalidCurrency
	}
	if expectedCloseDate != nil {
		today := truncateDate(s.clock.Now())
		if truncateDate(*expectedCloseDate).Before(today) {
			return domain.ErrInvalidCloseDate
		}
	}
	if trimmed := strings.TrimSpace(dealType); trimmed != "" {
		switch trimmed {
		case domain.DealTypeNewBusiness, domain.DealTypeExistingBusiness, domain.DealTypeRenewal:
		default:
			return domain.ErrInvalidDealType
		}
	}
	return nil
}
