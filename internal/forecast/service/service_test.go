package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	dealdomain "github.com/smallbiznis/dealdesk/internal/deal/domain"
	dealrepository "github.com/smallbiznis/dealdesk/internal/deal/repository"
	"github.com/smallbiznis/dealdesk/internal/forecast/domain"
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

func setupForecastService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = conn.AutoMigrate(
		&pipelinedomain.Pipeline{},
		&pipelinedomain.PipelineStage{},
		&dealdomain.Deal{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := New(Params{
		DB:           conn,
		Log:          zap.NewNop(),
		DealRepo:     dealrepository.Provide(),
		PipelineRepo: pipelinerepository.Provide(),
	})
	return svc, conn
}

func insertDeal(t *testing.T, conn *gorm.DB, node *snowflake.Node, orgID, pipelineID, stageID snowflake.ID, amount int64, prob int16, currency string, expected time.Time) dealdomain.Deal {
	t.Helper()
	now := time.Now().UTC()
	deal := dealdomain.Deal{
		ID:                node.Generate(),
		OrgID:             orgID,
		PipelineID:        pipelineID,
		StageID:           stageID,
		Title:             "fixture",
		AmountCents:       &amount,
		Currency:          currency,
		Probability:       &prob,
		ExpectedCloseDate: &expected,
		CreatedBy:         orgID,
		UpdatedBy:         orgID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	deal.WeightedAmountCents = dealdomain.WeightedAmountCents(deal.AmountCents, deal.Probability)
	if err := dealrepository.Provide().Insert(context.Background(), conn, &deal); err != nil {
		t.Fatalf("insert deal: %v", err)
	}
	return deal
}

func TestRangeForecastFiltersByCurrency(t *testing.T) {
	node := mustNode(t)
	svc, conn := setupForecastService(t)
	orgID := node.Generate()
	pipelineID := node.Generate()
	stageID := node.Generate()

	window := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	insertDeal(t, conn, node, orgID, pipelineID, stageID, 10000, 80, "USD", window)
	insertDeal(t, conn, node, orgID, pipelineID, stageID, 20000, 80, "EUR", window)

	result, err := svc.Range(context.Background(), domain.RangeForecastRequest{
		OrgID:    orgID,
		Start:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 4, 30, 23, 59, 59, 0, time.UTC),
		Currency: "USD",
	})
	if err != nil {
		t.Fatalf("range forecast: %v", err)
	}

	// Exact currency match, no conversion.
	assert.Equal(t, 1, result.TotalDeals)
	assert.Equal(t, int64(10000), result.TotalPipelineValueCents)
	assert.Equal(t, "USD", result.Currency)
}

func TestRangeForecastWindowIsInclusive(t *testing.T) {
	node := mustNode(t)
	svc, conn := setupForecastService(t)
	orgID := node.Generate()
	pipelineID := node.Generate()
	stageID := node.Generate()

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	insertDeal(t, conn, node, orgID, pipelineID, stageID, 100, 50, "USD", start)
	insertDeal(t, conn, node, orgID, pipelineID, stageID, 200, 50, "USD", end)
	insertDeal(t, conn, node, orgID, pipelineID, stageID, 400, 50, "USD", end.AddDate(0, 0, 1))

	result, err := svc.Range(context.Background(), domain.RangeForecastRequest{
		OrgID: orgID,
		Start: start,
		End:   end,
	})
	if err != nil {
		t.Fatalf("range forecast: %v", err)
	}

	assert.Equal(t, 2, result.TotalDeals)
	assert.Equal(t, int64(300), result.TotalPipelineValueCents)
}

func TestRangeForecastFiltersByPipeline(t *testing.T) {
	node := mustNode(t)
	svc, conn := setupForecastService(t)
	orgID := node.Generate()
	pipelineA := node.Generate()
	pipelineB := node.Generate()
	stageID := node.Generate()

	window := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	insertDeal(t, conn, node, orgID, pipelineA, stageID, 1000, 50, "USD", window)
	insertDeal(t, conn, node, orgID, pipelineB, stageID, 2000, 50, "USD", window)

	result, err := svc.Range(context.Background(), domain.RangeForecastRequest{
		OrgID:      orgID,
		Start:      time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2026, 4, 30, 23, 59, 59, 0, time.UTC),
		PipelineID: pipelineA.String(),
	})
	if err != nil {
		t.Fatalf("range forecast: %v", err)
	}

	assert.Equal(t, 1, result.TotalDeals)
	assert.Equal(t, int64(1000), result.TotalPipelineValueCents)
}

func TestRangeForecastValidation(t *testing.T) {
	node := mustNode(t)
	svc, _ := setupForecastService(t)
	orgID := node.Generate()

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Range(context.Background(), domain.RangeForecastRequest{
		Start: start,
		End:   start,
	})
	if !errors.Is(err, domain.ErrInvalidOrganization) {
		t.Fatalf("expected ErrInvalidOrganization, got %v", err)
	}

	_, err = svc.Range(context.Background(), domain.RangeForecastRequest{
		OrgID: orgID,
		Start: start,
		End:   start.AddDate(0, 0, -1),
	})
	if !errors.Is(err, domain.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	_, err = svc.Range(context.Background(), domain.RangeForecastRequest{
		OrgID:    orgID,
		Start:    start,
		End:      start,
		Currency: "usd",
	})
	if !errors.Is(err, domain.ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestQuarterForecastWindow(t *testing.T) {
	node := mustNode(t)
	svc, conn := setupForecastService(t)
	orgID := node.Generate()
	pipelineID := node.Generate()
	stageID := node.Generate()

	insertDeal(t, conn, node, orgID, pipelineID, stageID, 100, 50, "USD", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	insertDeal(t, conn, node, orgID, pipelineID, stageID, 200, 50, "USD", time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC))
	insertDeal(t, conn, node, orgID, pipelineID, stageID, 400, 50, "USD", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	result, err := svc.Quarter(context.Background(), domain.QuarterForecastRequest{
		OrgID:   orgID,
		Year:    2026,
		Quarter: 1,
	})
	if err != nil {
		t.Fatalf("quarter forecast: %v", err)
	}

	assert.Equal(t, 2, result.TotalDeals)
	assert.Equal(t, int64(300), result.TotalPipelineValueCents)

	_, err = svc.Quarter(context.Background(), domain.QuarterForecastRequest{
		OrgID:   orgID,
		Year:    2026,
		Quarter: 5,
	})
	if !errors.Is(err, domain.ErrInvalidQuarter) {
		t.Fatalf("expected ErrInvalidQuarter, got %v", err)
	}
}

func TestMonthForecastWindow(t *testing.T) {
	node := mustNode(t)
	svc, conn := setupForecastService(t)
	orgID := node.Generate()
	pipelineID := node.Generate()
	stageID := node.Generate()

	insertDeal(t, conn, node, orgID, pipelineID, stageID, 100, 50, "USD", time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC))
	insertDeal(t, conn, node, orgID, pipelineID, stageID, 200, 50, "USD", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	result, err := svc.Month(context.Background(), domain.MonthForecastRequest{
		OrgID: orgID,
		Year:  2026,
		Month: time.February,
	})
	if err != nil {
		t.Fatalf("month forecast: %v", err)
	}

	assert.Equal(t, 1, result.TotalDeals)
	assert.Equal(t, int64(100), result.TotalPipelineValueCents)
}
