package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/internal/deal/domain"
	"github.com/smallbiznis/dealdesk/internal/event"
	"gorm.io/gorm"
)

// MoveToStage transitions a deal to another stage of its pipeline. The
// read, derived-field recomputation and history append run under a single
// row-locked transaction so concurrent moves on the same deal serialize.
func (s *Service) MoveToStage(ctx context.Context, req domain.MoveDealRequest) (domain.Deal, error) {
	if req.OrgID == 0 {
		return domain.Deal{}, domain.ErrInvalidOrganization
	}
	if req.ActorID == 0 {
		return domain.Deal{}, domain.ErrInvalidActor
	}
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Deal{}, err
	}
	stageID, err := parseID(req.StageID)
	if err != nil {
		return domain.Deal{}, err
	}

	var moved domain.Deal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deal, err := s.repo.FindByIDForUpdate(ctx, tx, req.OrgID, id)
		if err != nil {
			return err
		}
		if deal == nil {
			return domain.ErrDealNotFound
		}
		if err := s.moveLocked(ctx, tx, deal, stageID, req.ActorID, req.Reason, s.clock.Now()); err != nil {
			return err
		}
		moved = *deal
		return nil
	})
	if err != nil {
		return domain.Deal{}, err
	}

	s.metrics.RecordDealTransition(ctx, moved.PipelineID.String())
	s.publish(ctx, event.TypeDealStageChanged, moved)

	return moved, nil
}

// BulkMoveToStage moves a batch of deals into one stage. The whole batch is
// validated against the target stage's pipeline before any deal is touched;
// a single mismatch fails everything.
func (s *Service) BulkMoveToStage(ctx context.Context, req domain.BulkMoveRequest) (int, error) {
	if req.OrgID == 0 {
		return 0, domain.ErrInvalidOrganization
	}
	if req.ActorID == 0 {
		return 0, domain.ErrInvalidActor
	}
	stageID, err := parseID(req.StageID)
	if err != nil {
		return 0, err
	}

	ids := make([]snowflake.ID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := parseID(raw)
		if err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}

	stage, err := s.pipelineRepo.FindStageByID(ctx, s.db, req.OrgID, stageID)
	if err != nil {
		return 0, err
	}
	if stage == nil {
		return 0, domain.ErrStageNotFound
	}
	if !stage.IsActive {
		return 0, domain.ErrStageInactive
	}

	for _, id := range ids {
		deal, err := s.repo.FindByID(ctx, s.db, req.OrgID, id)
		if err != nil {
			return 0, err
		}
		if deal == nil {
			return 0, fmt.Errorf("%w: deal %s", domain.ErrDealNotFound, id)
		}
		if deal.PipelineID != stage.PipelineID {
			return 0, fmt.Errorf("%w: deal %s", domain.ErrInvalidStage, id)
		}
	}

	moved := 0
	for _, id := range ids {
		var dealAfter domain.Deal
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			deal, err := s.repo.FindByIDForUpdate(ctx, tx, req.OrgID, id)
			if err != nil {
				return err
			}
			if deal == nil {
				return fmt.Errorf("%w: deal %s", domain.ErrDealNotFound, id)
			}
			if err := s.moveLocked(ctx, tx, deal, stageID, req.ActorID, "", s.clock.Now()); err != nil {
				return err
			}
			dealAfter = *deal
			return nil
		})
		if err != nil {
			return moved, err
		}
		moved++

		s.metrics.RecordDealTransition(ctx, dealAfter.PipelineID.String())
		s.publish(ctx, event.TypeDealStageChanged, dealAfter)
	}

	return moved, nil
}

// moveLocked applies a stage transition to a row-locked deal: stage pointer,
// closed/won derivation, stage-driven probability, weighted amount, and the
// history append. The target stage's default probability always overwrites
// the deal's current one.
func (s *Service) moveLocked(ctx context.Context, tx *gorm.DB, deal *domain.Deal, stageID, actorID snowflake.ID, reason string, now time.Time) error {
	stage, err := s.pipelineRepo.FindStageByID(ctx, tx, deal.OrgID, stageID)
	if err != nil {
		return err
	}
	if stage == nil {
		return domain.ErrStageNotFound
	}
	if stage.PipelineID != deal.PipelineID {
		return domain.ErrInvalidStage
	}
	if !stage.IsActive {
		return domain.ErrStageInactive
	}

	prev, err := s.repo.LastHistory(ctx, tx, deal.OrgID, deal.ID)
	if err != nil {
		return err
	}

	fromStageID := deal.StageID
	deal.StageID = stage.ID
	if stage.IsClosed {
		deal.IsClosed = true
		deal.IsWon = stage.IsWon
		if deal.ActualCloseDate == nil {
			today := truncateDate(now)
			deal.ActualCloseDate = &today
		}
	} else {
		// Reopening: derived close state is dropped entirely.
		deal.IsClosed = false
		deal.IsWon = false
		deal.ActualCloseDate = nil
	}
	if stage.DefaultProbability != nil {
		probability := *stage.DefaultProbability
		deal.Probability = &probability
	}
	deal.WeightedAmountCents = domain.WeightedAmountCents(deal.AmountCents, deal.Probability)
	deal.UpdatedBy = actorID
	deal.UpdatedAt = now

	if err := s.repo.Update(ctx, tx, deal); err != nil {
		return err
	}

	entry := domain.DealStageHistory{
		ID:          s.genID.Generate(),
		OrgID:       deal.OrgID,
		DealID:      deal.ID,
		PipelineID:  deal.PipelineID,
		FromStageID: &fromStageID,
		ToStageID:   stage.ID,
		ChangedBy:   actorID,
		Reason:      reason,
		ChangedAt:   now,
	}
	if prev != nil {
		hours := int64(now.Sub(prev.ChangedAt).Hours())
		entry.DurationInPrevHours = &hours
	}
	return s.repo.InsertHistory(ctx, tx, &entry)
}
