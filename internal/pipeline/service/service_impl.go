package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/internal/clock"
	"github.com/smallbiznis/dealdesk/internal/pipeline/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("pipeline.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePipelineRequest) (domain.Pipeline, error) {
	if req.OrgID == 0 {
		return domain.Pipeline{}, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Pipeline{}, domain.ErrInvalidName
	}
	if len(req.Stages) == 0 {
		return domain.Pipeline{}, domain.ErrMissingStages
	}
	if err := validateStageLadder(req.Stages); err != nil {
		return domain.Pipeline{}, err
	}

	now := s.clock.Now()
	pipeline := domain.Pipeline{
		ID:           s.genID.Generate(),
		OrgID:        req.OrgID,
		Name:         name,
		IsActive:     true,
		IsDefault:    req.IsDefault,
		DisplayOrder: req.DisplayOrder,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Only one default pipeline may exist per organization.
		if pipeline.IsDefault {
			if err := s.repo.ClearDefaultPipeline(ctx, tx, req.OrgID); err != nil {
				return err
			}
		}
		if err := s.repo.InsertPipeline(ctx, tx, &pipeline); err != nil {
			return err
		}
		for _, stageReq := range req.Stages {
			stage := domain.PipelineStage{
				ID:                 s.genID.Generate(),
				OrgID:              req.OrgID,
				PipelineID:         pipeline.ID,
				Name:               strings.TrimSpace(stageReq.Name),
				DisplayOrder:       stageReq.DisplayOrder,
				DefaultProbability: stageReq.DefaultProbability,
				IsActive:           true,
				IsClosed:           stageReq.IsClosed,
				IsWon:              stageReq.IsWon,
				Color:              strings.TrimSpace(stageReq.Color),
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if err := s.repo.InsertStage(ctx, tx, &stage); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Pipeline{}, err
	}

	return pipeline, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdatePipelineRequest) (domain.Pipeline, error) {
	if req.OrgID == 0 {
		return domain.Pipeline{}, domain.ErrInvalidOrganization
	}
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Pipeline{}, err
	}

	var updated domain.Pipeline
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pipeline, err := s.repo.FindPipelineByID(ctx, tx, req.OrgID, id)
		if err != nil {
			return err
		}
		if pipeline == nil {
			return domain.ErrPipelineNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			pipeline.Name = name
		}
		if req.IsActive != nil {
			pipeline.IsActive = *req.IsActive
		}
		if req.IsDefault != nil {
			if *req.IsDefault && !pipeline.IsDefault {
				if err := s.repo.ClearDefaultPipeline(ctx, tx, req.OrgID); err != nil {
					return err
				}
			}
			pipeline.IsDefault = *req.IsDefault
		}

		pipeline.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdatePipeline(ctx, tx, pipeline); err != nil {
			return err
		}
		updated = *pipeline
		return nil
	})
	if err != nil {
		return domain.Pipeline{}, err
	}
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetPipelineRequest) (domain.Pipeline, error) {
	if req.OrgID == 0 {
		return domain.Pipeline{}, domain.ErrInvalidOrganization
	}
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Pipeline{}, err
	}

	pipeline, err := s.repo.FindPipelineByID(ctx, s.db, req.OrgID, id)
	if err != nil {
		return domain.Pipeline{}, err
	}
	if pipeline == nil {
		return domain.Pipeline{}, domain.ErrPipelineNotFound
	}
	return *pipeline, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID) ([]domain.Pipeline, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.ListPipelines(ctx, s.db, orgID)
}

func (s *Service) AddStage(ctx context.Context, req domain.AddStageRequest) (domain.PipelineStage, error) {
	if req.OrgID == 0 {
		return domain.PipelineStage{}, domain.ErrInvalidOrganization
	}
	pipelineID, err := parseID(req.PipelineID)
	if err != nil {
		return domain.PipelineStage{}, err
	}
	if err := validateStage(req.Stage); err != nil {
		return domain.PipelineStage{}, err
	}

	var created domain.PipelineStage
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pipeline, err := s.repo.FindPipelineByID(ctx, tx, req.OrgID, pipelineID)
		if err != nil {
			return err
		}
		if pipeline == nil {
			return domain.ErrPipelineNotFound
		}

		stages, err := s.repo.ListStages(ctx, tx, req.OrgID, pipelineID)
		if err != nil {
			return err
		}
		for _, existing := range stages {
			if existing.DisplayOrder == req.Stage.DisplayOrder {
				return domain.ErrInvalidDisplayOrder
			}
		}

		now := s.clock.Now()
		created = domain.PipelineStage{
			ID:                 s.genID.Generate(),
			OrgID:              req.OrgID,
			PipelineID:         pipelineID,
			Name:               strings.TrimSpace(req.Stage.Name),
			DisplayOrder:       req.Stage.DisplayOrder,
			DefaultProbability: req.Stage.DefaultProbability,
			IsActive:           true,
			IsClosed:           req.Stage.IsClosed,
			IsWon:              req.Stage.IsWon,
			Color:              strings.TrimSpace(req.Stage.Color),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		return s.repo.InsertStage(ctx, tx, &created)
	})
	if err != nil {
		return domain.PipelineStage{}, err
	}
	return created, nil
}

func (s *Service) UpdateStage(ctx context.Context, req domain.UpdateStageRequest) (domain.PipelineStage, error) {
	if req.OrgID == 0 {
		return domain.PipelineStage{}, domain.ErrInvalidOrganization
	}
	id, err := parseID(req.ID)
	if err != nil {
		return domain.PipelineStage{}, err
	}

	var updated domain.PipelineStage
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stage, err := s.repo.FindStageByID(ctx, tx, req.OrgID, id)
		if err != nil {
			return err
		}
		if stage == nil {
			return domain.ErrStageNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			stage.Name = name
		}
		if req.IsActive != nil {
			stage.IsActive = *req.IsActive
		}
		if req.DefaultProbability != nil {
			if *req.DefaultProbability < 0 || *req.DefaultProbability > 100 {
				return domain.ErrInvalidProbability
			}
			stage.DefaultProbability = req.DefaultProbability
		}
		if req.Color != nil {
			stage.Color = strings.TrimSpace(*req.Color)
		}

		stage.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateStage(ctx, tx, stage); err != nil {
			return err
		}
		updated = *stage
		return nil
	})
	if err != nil {
		return domain.PipelineStage{}, err
	}
	return updated, nil
}

func (s *Service) ListStages(ctx context.Context, req domain.ListStagesRequest) ([]domain.PipelineStage, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	pipelineID, err := parseID(req.PipelineID)
	if err != nil {
		return nil, err
	}

	pipeline, err := s.repo.FindPipelineByID(ctx, s.db, req.OrgID, pipelineID)
	if err != nil {
		return nil, err
	}
	if pipeline == nil {
		return nil, domain.ErrPipelineNotFound
	}
	return s.repo.ListStages(ctx, s.db, req.OrgID, pipelineID)
}

func validateStageLadder(stages []domain.CreateStageRequest) error {
	lastOrder := 0
	seen := make(map[int]struct{}, len(stages))
	for i, stage := range stages {
		if err := validateStage(stage); err != nil {
			return err
		}
		if _, dup := seen[stage.DisplayOrder]; dup {
			return domain.ErrInvalidDisplayOrder
		}
		seen[stage.DisplayOrder] = struct{}{}
		if i > 0 && stage.DisplayOrder <= lastOrder {
			return domain.ErrInvalidDisplayOrder
		}
		lastOrder = stage.DisplayOrder
	}
	return nil
}

func validateStage(stage domain.CreateStageRequest) error {
	if strings.TrimSpace(stage.Name) == "" {
		return domain.ErrInvalidName
	}
	if stage.DefaultProbability != nil && (*stage.DefaultProbability < 0 || *stage.DefaultProbability > 100) {
		return domain.ErrInvalidProbability
	}
	if stage.IsWon && !stage.IsClosed {
		return domain.ErrWonStageNotClosed
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
