package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/dealdesk/internal/clock"
	"github.com/smallbiznis/dealdesk/internal/deal/domain"
	"github.com/stretchr/testify/assert"
)

func TestMoveToStageOverwritesProbability(t *testing.T) {
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
		StageID:     fixture.stages["Qualification"].ID.String(),
		Title:       "Odds shift",
		AmountCents: int64Ptr(100000),
		Probability: int16Ptr(95),
	})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}

	clk.Advance(5*time.Hour + 30*time.Minute)
	moved, err := svc.MoveToStage(context.Background(), domain.MoveDealRequest{
		OrgID:   orgID,
		ActorID: actorID,
		ID:      deal.ID.String(),
		StageID: fixture.stages["Negotiation"].ID.String(),
		Reason:  "Terms agreed",
	})
	if err != nil {
		t.Fatalf("move deal: %v", err)
	}

	// The stage default replaces whatever the deal carried before.
	if moved.Probability == nil || *moved.Probability != 60 {
		t.Fatalf("expected probability 60, got %v", moved.Probability)
	}
	assert.Equal(t, int64(60000), moved.WeightedAmountCents)
	assert.Equal(t, fixture.stages["Negotiation"].ID, moved.StageID)

	history, err := svc.ListHistory(context.Background(), domain.ListHistoryRequest{
		OrgID: orgID,
		ID:    deal.ID.String(),
	})
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}

	last := history[1]
	if last.FromStageID == nil || *last.FromStageID != fixture.stages["Qualification"].ID {
		t.Fatalf("expected from stage Qualification, got %v", last.FromStageID)
	}
	assert.Equal(t, fixture.stages["Negotiation"].ID, last.ToStageID)
	assert.Equal(t, "Terms agreed", last.Reason)
	if last.DurationInPrevHours == nil || *last.DurationInPrevHours != 5 {
		t.Fatalf("expected 5 whole hours in previous stage, got %v", last.DurationInPrevHours)
	}
}

func TestMoveToClosedWonAndReopen(t *testing.T) {
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
		StageID:     fixture.stages["Negotiation"].ID.String(),
		Title:       "Almost there",
		AmountCents: int64Ptr(50000),
	})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}

	clk.Advance(26 * time.Hour)
	won, err := svc.MoveToStage(context.Background(), domain.MoveDealRequest{
		OrgID:   orgID,
		ActorID: actorID,
		ID:      deal.ID.String(),
		StageID: fixture.stages["Closed Won"].ID.String(),
	})
	if err != nil {
		t.Fatalf("move to closed won: %v", err)
	}

	assert.True(t, won.IsClosed)
	assert.True(t, won.IsWon)
	if won.ActualCloseDate == nil {
		t.Fatalf("expected actual close date to be set")
	}
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), won.ActualCloseDate.UTC())
	if won.Probability == nil || *won.Probability != 100 {
		t.Fatalf("expected probability 100, got %v", won.Probability)
	}

	clk.Advance(time.Hour)
	reopened, err := svc.MoveToStage(context.Background(), domain.MoveDealRequest{
		OrgID:   orgID,
		ActorID: actorID,
		ID:      deal.ID.String(),
		StageID: fixture.stages["Proposal"].ID.String(),
		Reason:  "Signature withdrawn",
	})
	if err != nil {
		t.Fatalf("reopen deal: %v", err)
	}

	assert.False(t, reopened.IsClosed)
	assert.False(t, reopened.IsWon)
	assert.Nil(t, reopened.ActualCloseDate)
	if reopened.Probability == nil || *reopened.Probability != 40 {
		t.Fatalf("expected probability 40 after reopen, got %v", reopened.Probability)
	}
}

func TestMoveToStageWrongPipeline(t *testing.T) {
	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc, conn := setupDealService(t, node, clk)
	orgID := node.Generate()
	actorID := node.Generate()
	first := seedCatalog(t, conn, node, orgID)
	second := seedCatalog(t, conn, node, orgID)

	deal, err := svc.Create(context.Background(), domain.CreateDealRequest{
		OrgID:      orgID,
		ActorID:    actorID,
		PipelineID: first.pipeline.ID.String(),
		StageID:    first.stages["Qualification"].ID.String(),
		Title:      "Stuck",
	})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}

	_, err = svc.MoveToStage(context.Background(), domain.MoveDealRequest{
		OrgID:   orgID,
		ActorID: actorID,
		ID:      deal.ID.String(),
		StageID: second.stages["Proposal"].ID.String(),
	})
	if !errors.Is(err, domain.ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage, got %v", err)
	}

	unknown := node.Generate()
	_, err = svc.MoveToStage(context.Background(), domain.MoveDealRequest{
		OrgID:   orgID,
		ActorID: actorID,
		ID:      deal.ID.String(),
		StageID: unknown.String(),
	})
	if !errors.Is(err, domain.ErrStageNotFound) {
		t.Fatalf("expected ErrStageNotFound, got %v", err)
	}
}

func TestBulkMoveAllOrNothing(t *testing.T) {
	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc, conn := setupDealService(t, node, clk)
	orgID := node.Generate()
	actorID := node.Generate()
	first := seedCatalog(t, conn, node, orgID)
	second := seedCatalog(t, conn, node, orgID)

	create := func(pipeline, stage string, fixture catalogFixture) domain.Deal {
		deal, err := svc.Create(context.Background(), domain.CreateDealRequest{
			OrgID:      orgID,
			ActorID:    actorID,
			PipelineID: fixture.pipeline.ID.String(),
			StageID:    fixture.stages[stage].ID.String(),
			Title:      pipeline + " " + stage,
		})
		if err != nil {
			t.Fatalf("create deal: %v", err)
		}
		return deal
	}

	dealA := create("first", "Qualification", first)
	dealB := create("first", "Proposal", first)
	foreign := create("second", "Qualification", second)

	_, err := svc.BulkMoveToStage(context.Background(), domain.BulkMoveRequest{
		OrgID:   orgID,
		ActorID: actorID,
		IDs:     []string{dealA.ID.String(), dealB.ID.String(), foreign.ID.String()},
		StageID: first.stages["Negotiation"].ID.String(),
	})
	if !errors.Is(err, domain.ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage, got %v", err)
	}
	if !strings.Contains(err.Error(), foreign.ID.String()) {
		t.Fatalf("expected offending deal id %s in error, got %q", foreign.ID.String(), err.Error())
	}

	// The bad batch must not touch any member.
	got, err := svc.GetByID(context.Background(), domain.GetDealRequest{OrgID: orgID, ID: dealA.ID.String()})
	if err != nil {
		t.Fatalf("get deal: %v", err)
	}
	assert.Equal(t, first.stages["Qualification"].ID, got.StageID)

	moved, err := svc.BulkMoveToStage(context.Background(), domain.BulkMoveRequest{
		OrgID:   orgID,
		ActorID: actorID,
		IDs:     []string{dealA.ID.String(), dealB.ID.String()},
		StageID: first.stages["Negotiation"].ID.String(),
	})
	if err != nil {
		t.Fatalf("bulk move: %v", err)
	}
	assert.Equal(t, 2, moved)

	for _, id := range []string{dealA.ID.String(), dealB.ID.String()} {
		got, err := svc.GetByID(context.Background(), domain.GetDealRequest{OrgID: orgID, ID: id})
		if err != nil {
			t.Fatalf("get deal: %v", err)
		}
		assert.Equal(t, first.stages["Negotiation"].ID, got.StageID)
	}
}
