package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/internal/clock"
	"github.com/smallbiznis/dealdesk/internal/deal/domain"
	"github.com/smallbiznis/dealdesk/internal/event"
	"github.com/smallbiznis/dealdesk/internal/observability/metrics"
	pipelinedomain "github.com/smallbiznis/dealdesk/internal/pipeline/domain"
	"github.com/smallbiznis/dealdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	PipelineRepo pipelinedomain.Repository
	Events       event.Publisher  `optional:"true"`
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	pipelineRepo pipelinedomain.Repository
	events       event.Publisher
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("deal.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		pipelineRepo: p.PipelineRepo,
		events:       p.Events,
		metrics:      p.Metrics,
	}
}

const creationReason = "Deal created"

func (s *Service) Create(ctx context.Context, req domain.CreateDealRequest) (domain.Deal, error) {
	if req.OrgID == 0 {
		return domain.Deal{}, domain.ErrInvalidOrganization
	}
	if req.ActorID == 0 {
		return domain.Deal{}, domain.ErrInvalidActor
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Deal{}, domain.ErrInvalidTitle
	}

	pipelineID, err := parseID(req.PipelineID)
	if err != nil {
		return domain.Deal{}, err
	}
	stageID, err := parseID(req.StageID)
	if err != nil {
		return domain.Deal{}, err
	}

	ownerID, err := parseOptionalID(req.OwnerID)
	if err != nil {
		return domain.Deal{}, err
	}

	var deal domain.Deal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stage, err := s.resolveStage(ctx, tx, req.OrgID, pipelineID, stageID)
		if err != nil {
			return err
		}
		if err := s.validateFields(req.AmountCents, req.Probability, req.Currency, req.ExpectedCloseDate, req.DealType); err != nil {
			return err
		}

		probability := req.Probability
		if probability == nil {
			probability = stage.DefaultProbability
		}

		now := s.clock.Now()
		deal = domain.Deal{
			ID:                s.genID.Generate(),
			OrgID:             req.OrgID,
			PipelineID:        pipelineID,
			StageID:           stageID,
			Title:             title,
			AmountCents:       req.AmountCents,
			Currency:          strings.TrimSpace(req.Currency),
			Probability:       probability,
			ExpectedCloseDate: req.ExpectedCloseDate,
			OwnerID:           ownerID,
			Tags:              datatypes.JSONSlice[string](req.Tags),
			CustomFields:      datatypes.JSONMap(req.CustomFields),
			CreatedBy:         req.ActorID,
			UpdatedBy:         req.ActorID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if dealType := strings.TrimSpace(req.DealType); dealType != "" {
			deal.DealType = &dealType
		}
		if stage.IsClosed {
			deal.IsClosed = true
			deal.IsWon = stage.IsWon
			today := truncateDate(now)
			deal.ActualCloseDate = &today
		}
		deal.WeightedAmountCents = domain.WeightedAmountCents(deal.AmountCents, deal.Probability)

		if err := s.repo.Insert(ctx, tx, &deal); err != nil {
			return err
		}

		entry := domain.DealStageHistory{
			ID:          s.genID.Generate(),
			OrgID:       req.OrgID,
			DealID:      deal.ID,
			PipelineID:  pipelineID,
			FromStageID: nil,
			ToStageID:   stageID,
			ChangedBy:   req.ActorID,
			Reason:      creationReason,
			ChangedAt:   now,
		}
		return s.repo.InsertHistory(ctx, tx, &entry)
	})
	if err != nil {
		return domain.Deal{}, err
	}

	s.metrics.RecordDealCreated(ctx, deal.PipelineID.String())
	s.publish(ctx, event.TypeDealCreated, deal)

	return deal, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateDealRequest) (domain.Deal, error) {
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

	var targetStageID snowflake.ID
	if req.StageID != nil {
		targetStageID, err = parseID(*req.StageID)
		if err != nil {
			return domain.Deal{}, err
		}
	}

	var updated domain.Deal
	stageChanged := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deal, err := s.repo.FindByIDForUpdate(ctx, tx, req.OrgID, id)
		if err != nil {
			return err
		}
		if deal == nil {
			return domain.ErrDealNotFound
		}

		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return domain.ErrInvalidTitle
			}
			deal.Title = title
		}
		if req.ClearAmount {
			deal.AmountCents = nil
		} else if req.AmountCents != nil {
			deal.AmountCents = req.AmountCents
		}
		if req.Currency != nil {
			deal.Currency = strings.TrimSpace(*req.Currency)
		}
		if req.Probability != nil {
			deal.Probability = req.Probability
		}
		if req.ExpectedCloseDate != nil {
			deal.ExpectedCloseDate = req.ExpectedCloseDate
		}
		if req.OwnerID != nil {
			ownerID, err := parseOptionalID(*req.OwnerID)
			if err != nil {
				return err
			}
			deal.OwnerID = ownerID
		}
		if req.DealType != nil {
			dealType := strings.TrimSpace(*req.DealType)
			if dealType == "" {
				deal.DealType = nil
			} else {
				deal.DealType = &dealType
			}
		}
		if req.Tags != nil {
			deal.Tags = datatypes.JSONSlice[string](req.Tags)
		}
		if req.CustomFields != nil {
			deal.CustomFields = datatypes.JSONMap(req.CustomFields)
		}

		var dealType string
		if deal.DealType != nil {
			dealType = *deal.DealType
		}
		var expected *time.Time
		if req.ExpectedCloseDate != nil {
			expected = deal.ExpectedCloseDate
		}
		if err := s.validateFields(deal.AmountCents, deal.Probability, deal.Currency, expected, dealType); err != nil {
			return err
		}
		if _, err := s.resolveStage(ctx, tx, req.OrgID, deal.PipelineID, deal.StageID); err != nil {
			return err
		}

		now := s.clock.Now()
		if targetStageID != 0 && targetStageID != deal.StageID {
			stageChanged = true
			if err := s.moveLocked(ctx, tx, deal, targetStageID, req.ActorID, "", now); err != nil {
				return err
			}
		} else {
			deal.WeightedAmountCents = domain.WeightedAmountCents(deal.AmountCents, deal.Probability)
			deal.UpdatedBy = req.ActorID
			deal.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, deal); err != nil {
				return err
			}
		}

		updated = *deal
		return nil
	})
	if err != nil {
		return domain.Deal{}, err
	}

	if stageChanged {
		s.metrics.RecordDealTransition(ctx, updated.PipelineID.String())
		s.publish(ctx, event.TypeDealStageChanged, updated)
	} else {
		s.publish(ctx, event.TypeDealUpdated, updated)
	}

	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetDealRequest) (domain.Deal, error) {
	if req.OrgID == 0 {
		return domain.Deal{}, domain.ErrInvalidOrganization
	}
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Deal{}, err
	}

	deal, err := s.repo.FindByID(ctx, s.db, req.OrgID, id)
	if err != nil {
		return domain.Deal{}, err
	}
	if deal == nil {
		return domain.Deal{}, domain.ErrDealNotFound
	}
	return *deal, nil
}

func (s *Service) List(ctx context.Context, req domain.ListDealRequest) (domain.ListDealResponse, error) {
	if req.OrgID == 0 {
		return domain.ListDealResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListDealFilter{
		Currency:     strings.TrimSpace(req.Currency),
		ExpectedFrom: req.ExpectedFrom,
		ExpectedTo:   req.ExpectedTo,
	}
	var err error
	if filter.PipelineID, err = parseOptionalFilterID(req.PipelineID); err != nil {
		return domain.ListDealResponse{}, err
	}
	if filter.StageID, err = parseOptionalFilterID(req.StageID); err != nil {
		return domain.ListDealResponse{}, err
	}
	if filter.OwnerID, err = parseOptionalFilterID(req.OwnerID); err != nil {
		return domain.ListDealResponse{}, err
	}
	switch strings.TrimSpace(req.Status) {
	case "":
	case "open":
		filter.OnlyOpen = true
	case "closed":
		filter.OnlyClosed = true
	default:
		return domain.ListDealResponse{}, domain.ErrInvalidStatus
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, req.OrgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListDealResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(deal *domain.Deal) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        deal.ID.String(),
			CreatedAt: deal.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	deals := make([]domain.Deal, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		deals = append(deals, *item)
	}

	resp := domain.ListDealResponse{Deals: deals}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Delete(ctx context.Context, req domain.DeleteDealRequest) error {
	if req.OrgID == 0 {
		return domain.ErrInvalidOrganization
	}
	if req.ActorID == 0 {
		return domain.ErrInvalidActor
	}
	id, err := parseID(req.ID)
	if err != nil {
		return err
	}

	var deleted domain.Deal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deal, err := s.repo.FindByIDForUpdate(ctx, tx, req.OrgID, id)
		if err != nil {
			return err
		}
		if deal == nil {
			return domain.ErrDealNotFound
		}
		deleted = *deal

		// History never outlives its deal.
		if err := s.repo.DeleteHistoryByDeal(ctx, tx, req.OrgID, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, req.OrgID, id)
	})
	if err != nil {
		return err
	}

	s.metrics.RecordDealDeleted(ctx, deleted.PipelineID.String())
	s.publish(ctx, event.TypeDealDeleted, deleted)
	return nil
}

func (s *Service) ListHistory(ctx context.Context, req domain.ListHistoryRequest) ([]domain.DealStageHistory, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	deal, err := s.repo.FindByID(ctx, s.db, req.OrgID, id)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, domain.ErrDealNotFound
	}
	return s.repo.ListHistory(ctx, s.db, req.OrgID, id)
}

func (s *Service) publish(ctx context.Context, eventType string, deal domain.Deal) {
	if s.events == nil {
		return
	}

	snapshot := map[string]any{
		"deal_id":               deal.ID.String(),
		"title":                 deal.Title,
		"pipeline_id":           deal.PipelineID.String(),
		"stage_id":              deal.StageID.String(),
		"currency":              deal.Currency,
		"weighted_amount_cents": deal.WeightedAmountCents,
		"is_closed":             deal.IsClosed,
		"is_won":                deal.IsWon,
	}
	if deal.AmountCents != nil {
		snapshot["amount_cents"] = *deal.AmountCents
	}
	if deal.Probability != nil {
		snapshot["probability"] = *deal.Probability
	}
	if deal.ExpectedCloseDate != nil {
		snapshot["expected_close_date"] = deal.ExpectedCloseDate.Format("2006-01-02")
	}
	if deal.ActualCloseDate != nil {
		snapshot["actual_close_date"] = deal.ActualCloseDate.Format("2006-01-02")
	}
	if deal.OwnerID != nil {
		snapshot["owner_id"] = deal.OwnerID.String()
	}

	err := s.events.Publish(ctx, event.DealEvent{
		Type:       eventType,
		OrgID:      deal.OrgID,
		DealID:     deal.ID,
		PipelineID: deal.PipelineID,
		StageID:    deal.StageID,
		OccurredAt: s.clock.Now(),
		Snapshot:   snapshot,
	})
	if err != nil {
		// The mutation is already committed; delivery problems are the
		// publisher's concern.
		s.log.Warn("failed to publish deal event",
			zap.Error(err),
			zap.String("event_type", eventType),
			zap.String("deal_id", deal.ID.String()),
		)
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func parseOptionalID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}
	return &id, nil
}

func parseOptionalFilterID(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func truncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
