package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealdesk/internal/clock"
	"github.com/smallbiznis/dealdesk/internal/deal/domain"
	"github.com/smallbiznis/dealdesk/internal/deal/repository"
	"github.com/smallbiznis/dealdesk/internal/event"
	pipelinedomain "github.com/smallbiznis/dealdesk/internal/pipeline/domain"
	pipelinerepository "github.com/smallbiznis/dealdesk/internal/pipeline/repository"
	"github.com/smallbiznis/dealdesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func setupDealService(t *testing.T, node *snowflake.Node, clk clock.Clock) (domain.Service, *gorm.DB) {
	t.Helper()
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = conn.AutoMigrate(
		&pipelinedomain.Pipeline{},
		&pipelinedomain.PipelineStage{},
		&domain.Deal{},
		&domain.DealStageHistory{},
		&event.DealEventRow{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := New(Params{
		DB:           conn,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clk,
		Repo:         repository.Provide(),
		PipelineRepo: pipelinerepository.Provide(),
		Events:       event.NewOutboxPublisher(conn, node),
	})
	return svc, conn
}

type catalogFixture struct {
	pipeline pipelinedomain.Pipeline
	stages   map[string]pipelinedomain.PipelineStage
}

func seedCatalog(t *testing.T, conn *gorm.DB, node *snowflake.Node, orgID snowflake.ID) catalogFixture {
	t.Helper()
	repo := pipelinerepository.Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	pipeline := pipelinedomain.Pipeline{
		ID:        node.Generate(),
		OrgID:     orgID,
		Name:      "Sales Pipeline",
		IsActive:  true,
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.InsertPipeline(ctx, conn, &pipeline); err != nil {
		t.Fatalf("insert pipeline: %v", err)
	}

	specs := []struct {
		name   string
		order  int
		prob   int16
		closed bool
		won    bool
	}{
		{"Qualification", 1, 10, false, false},
		{"Proposal", 2, 40, false, false},
		{"Negotiation", 3, 60, false, false},
		{"Closed Won", 4, 100, true, true},
		{"Closed Lost", 5, 0, true, false},
	}

	stages := make(map[string]pipelinedomain.PipelineStage, len(specs))
	for _, spec := range specs {
		prob := spec.prob
		stage := pipelinedomain.PipelineStage{
			ID:                 node.Generate(),
			OrgID:              orgID,
			PipelineID:         pipeline.ID,
			Name:               spec.name,
			DisplayOrder:       spec.order,
			DefaultProbability: &prob,
			IsActive:           true,
			IsClosed:           spec.closed,
			IsWon:              spec.won,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := repo.InsertStage(ctx, conn, &stage); err != nil {
			t.Fatalf("insert stage %s: %v", spec.name, err)
		}
		stages[spec.name] = stage
	}

	return catalogFixture{pipeline: pipeline, stages: stages}
}

func int64Ptr(v int64) *int64 { return &v }
func int16Ptr(v int16) *int16 { return &v }

func TestCreateDealInheritsStageProbability(t *testing.T) {
	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc, conn := setupDealService(t, node, clk)
	orgID := node.Generate()
	actorID := node.Generate()
	fixture := seedCatalog(t, conn, node, orgID)

	deal, err := svc.Create(context.Background(), domain.CreateDealRequest{
		OrgID:       orgID,
		ActorID:     actorID,
		PipelineID:  fixture.pipeline.ID.String(),
		StageID:     fixture.stages["Proposal"].ID.String(),
		Title:       "Acme expansion",
		AmountCents: int64Ptr(100000),
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}

	if deal.Probability == nil || *deal.Probability != 40 {
		t.Fatalf("expected inherited probability 40, got %v", deal.Probability)
	}
	assert.Equal(t, int64(40000), deal.WeightedAmountCents)
	assert.False(t, deal.IsClosed)
	assert.Nil(t, deal.ActualCloseDate)

	history, err := svc.ListHistory(context.Background(), domain.ListHistoryRequest{
		OrgID: orgID,
		ID:    deal.ID.String(),
	})
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	assert.Nil(t, history[0].FromStageID)
	assert.Equal(t, deal.StageID, history[0].ToStageID)
	assert.Equal(t, "Deal created", history[0].Reason)
	assert.Nil(t, history[0].DurationInPrevHours)
}

func TestCreateDealKeepsExplicitProbability(t *testing.T) {
	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc, conn := setupDealService(t, node, clk)
	orgID := node.Generate()
	fixture := seedCatalog(t, conn, node, orgID)

	deal, err := svc.Create(context.Background(), domain.CreateDealRequest{
		OrgID:       orgID,
		ActorID:     node.Generate(),
		PipelineID:  fixture.pipeline.ID.String(),
		StageID:     fixture.stages["Proposal"].ID.String(),
		Title:       "Custom odds",
		AmountCents: int64Ptr(10005),
		Probability: int16Ptr(33),
	})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}

	if deal.Probability == nil || *deal.Probability != 33 {
		t.Fatalf("expected probability 33, got %v", deal.Probability)
	}
	// 10005 * 33 / 100 = 3301.65, rounded half-up.
	assert.Equal(t, int64(3302), deal.WeightedAmountCents)
}

func TestCreateDealInClosedWonStage(t *testing.T) {
	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC))
	svc, conn := setupDealService(t, node, clk)
	orgID := node.Generate()
	fixture := seedCatalog(t, conn, node, orgID)

	deal, err := svc.Create(context.Background(), domain.CreateDealRequest{
		OrgID:       orgID,
		ActorID:     node.Generate(),
		PipelineID:  fixture.pipeline.ID.String(),
		StageID:     fixture.stages["Closed Won"].ID.String(),
		Title:       "Signed on arrival",
		AmountCents: int64Ptr(5000),
	})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}

	assert.True(t, deal.IsClosed)
	assert.True(t, deal.IsWon)
	if deal.ActualCloseDate == nil {
		t.Fatalf("expected actual close date to be set")
	}
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), deal.ActualCloseDate.UTC())
}

func TestCreateDealValidation(t *testing.T) {
	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc, conn := setupDealService(t, node, clk)
	orgID := node.Generate()
	actorID := node.Generate()
	fixture := seedCatalog(t, conn, node, orgID)

	base := domain.CreateDealRequest{
		OrgID:      orgID,
		ActorID:    actorID,
		PipelineID: fixture.pipeline.ID.String(),
		StageID:    fixture.stages["Qualification"].ID.String(),
		Title:      "Checks",
	}

	cases := []struct {
		name    string
		mutate  func(req *domain.CreateDealRequest)
		wantErr error
	}{
		{
			name:    "negative amount",
			mutate:  func(req *domain.CreateDealRequest) { req.AmountCents = int64Ptr(-1) },
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "probability above range",
			mutate:  func(req *domain.CreateDealRequest) { req.Probability = int16Ptr(101) },
			wantErr: domain.ErrInvalidProbability,
		},
		{
			name:    "lowercase currency",
			mutate:  func(req *domain.CreateDealRequest) { req.Currency = "usd" },
			wantErr: domain.ErrInvalidCurrency,
		},
		{
			name: "past expected close date",
			mutate: func(req *domain.CreateDealRequest) {
				past := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
				req.ExpectedCloseDate = &past
			},
			wantErr: domain.ErrInvalidCloseDate,
		},
		{
			name:    "unknown deal type",
			mutate:  func(req *domain.CreateDealRequest) { req.DealType = "merger" },
			wantErr: domain.ErrInvalidDealType,
		},
		{
			name:    "empty title",
			mutate:  func(req *domain.CreateDealRequest) { req.Title = "   " },
			wantErr: domain.ErrInvalidTitle,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := svc.Create(context.Background(), req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateDealRejectsStageFromOtherPipeline(t *testing.T) {
	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc, conn := setupDealService(t, node, clk)
	orgID := node.Generate()
	first := seedCatalog(t, conn, node, orgID)
	second := seedCatalog(t, conn, node, orgID)

	_, err := svc.Create(context.Background(), domain.CreateDealRequest{
		OrgID:      orgID,
		ActorID:    node.Generate(),
		PipelineID: first.pipeline.ID.String(),
		StageID:    second.stages["Proposal"].ID.String(),
		Title:      "Crossed wires",
	})
	if !errors.Is(err, domain.ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage, got %v", err)
	}
}

func TestUpdateDealRecomputesWeightedAmount(t *testing.T) {
	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc, conn := setupDealService(t, node, clk)
	orgID := node.Generate()
	actorID := node.Generate()
	fixture := seedCatalog(t, conn, node, orgID)

	deal, err := svc.Create(context.Background(), domain.CreateDealRequest{
		OrgID:       orgID,
		ActorID:     actorID,
		PipelineID:  fixture.pipeline.ID.String(),
		StageID:     fixture.stages["Proposal"].ID.String(),
		Title:       "Resize",
		AmountCents: int64Ptr(100000),
	})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}

	updated, err := svc.Update(context.Background(), domain.UpdateDealRequest{
		OrgID:       orgID,
		ActorID:     actorID,
		ID:          deal.ID.String(),
		AmountCents: int64Ptr(200000),
	})
	if err != nil {
		t.Fatalf("update deal: %v", err)
	}
	assert.Equal(t, int64(80000), updated.WeightedAmountCents)

	cleared, err := svc.Update(context.Background(), domain.UpdateDealRequest{
		OrgID:       orgID,
		ActorID:     actorID,
		ID:          deal.ID.String(),
		ClearAmount: true,
	})
	if err != nil {
		t.Fatalf("clear amount: %v", err)
	}
	assert.Nil(t, cleared.AmountCents)
	assert.Equal(t, int64(0), cleared.WeightedAmountCents)
}

func TestDeleteDealCascadesHistory(t *testing.T) {
	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc, conn := setupDealService(t, node, clk)
	orgID := node.Generate()
	actorID := node.Generate()
	fixture := seedCatalog(t, conn, node, orgID)

	deal, err := svc.Create(context.Background(), domain.CreateDealRequest{
		OrgID:      orgID,
		ActorID:    actorID,
		PipelineID: fixture.pipeline.ID.String(),
		StageID:    fixture.stages["Qualification"].ID.String(),
		Title:      "Short lived",
	})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}

	clk.Advance(2 * time.Hour)
	_, err = svc.MoveToStage(context.Background(), domain.MoveDealRequest{
		OrgID:   orgID,
		ActorID: actorID,
		ID:      deal.ID.String(),
		StageID: fixture.stages["Proposal"].ID.String(),
	})
	if err != nil {
		t.Fatalf("move deal: %v", err)
	}

	err = svc.Delete(context.Background(), domain.DeleteDealRequest{
		OrgID:   orgID,
		ActorID: actorID,
		ID:      deal.ID.String(),
	})
	if err != nil {
		t.Fatalf("delete deal: %v", err)
	}

	var dealCount int64
	if err := conn.Raw(`SELECT COUNT(1) FROM deals WHERE id = ?`, deal.ID).Scan(&dealCount).Error; err != nil {
		t.Fatalf("count deals: %v", err)
	}
	assert.Equal(t, int64(0), dealCount)

	var historyCount int64
	if err := conn.Raw(`SELECT COUNT(1) FROM deal_stage_history WHERE deal_id = ?`, deal.ID).Scan(&historyCount).Error; err != nil {
		t.Fatalf("count history: %v", err)
	}
	assert.Equal(t, int64(0), historyCount)

	_, err = svc.GetByID(context.Background(), domain.GetDealRequest{OrgID: orgID, ID: deal.ID.String()})
	if !errors.Is(err, domain.ErrDealNotFound) {
		t.Fatalf("expected ErrDealNotFound, got %v", err)
	}
}

func TestMutationsEmitOutboxEvents(t *testing.T) {
	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc, conn := setupDealService(t, node, clk)
	orgID := node.Generate()
	actorID := node.Generate()
	fixture := seedCatalog(t, conn, node, orgID)

	deal, err := svc.Create(context.Background(), domain.CreateDealRequest{
		OrgID:      orgID,
		ActorID:    actorID,
		PipelineID: fixture.pipeline.ID.String(),
		StageID:    fixture.stages["Qualification"].ID.String(),
		Title:      "Observable",
	})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}

	_, err = svc.MoveToStage(context.Background(), domain.MoveDealRequest{
		OrgID:   orgID,
		ActorID: actorID,
		ID:      deal.ID.String(),
		StageID: fixture.stages["Proposal"].ID.String(),
	})
	if err != nil {
		t.Fatalf("move deal: %v", err)
	}

	var types []string
	err = conn.Raw(
		`SELECT event_type FROM deal_events WHERE deal_id = ? ORDER BY id ASC`,
		deal.ID,
	).Scan(&types).Error
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	assert.Equal(t, []string{event.TypeDealCreated, event.TypeDealStageChanged}, types)
}
