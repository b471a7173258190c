package service

import (
	"math"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	dealdomain "github.com/smallbiznis/dealdesk/internal/deal/domain"
	"github.com/smallbiznis/dealdesk/internal/forecast/domain"
)

// aggregate computes the full report from the selected deal set. It is a
// pure function: an empty set yields zero totals and empty breakdowns.
func aggregate(deals []dealdomain.Deal, start, end time.Time) domain.ForecastResult {
	result := domain.ForecastResult{
		PeriodStart: start,
		PeriodEnd:   end,
		ByPipeline:  []domain.PipelineForecast{},
		ByStage:     []domain.StageForecast{},
		ByOwner:     []domain.OwnerForecast{},
		ByMonth:     []domain.MonthlyForecast{},
	}

	for _, deal := range deals {
		amount := int64(0)
		if deal.AmountCents != nil {
			amount = *deal.AmountCents
		}
		result.TotalPipelineValueCents += amount
		result.TotalWeightedValueCents += deal.WeightedAmountCents

		if deal.Probability != nil {
			probability := *deal.Probability
			if probability >= domain.CommittedThreshold {
				result.CommittedValueCents += amount
			}
			if probability >= domain.BestCaseThreshold {
				result.BestCaseValueCents += amount
			}
			if probability >= domain.WorstCaseThreshold {
				result.WorstCaseValueCents += amount
			}
		}

		result.TotalDeals++
		switch {
		case !deal.IsClosed:
			result.OpenDeals++
		case deal.IsWon:
			result.ClosedWonDeals++
		default:
			result.ClosedLostDeals++
		}
	}

	result.ByPipeline = groupByPipeline(deals)
	result.ByStage = groupByStage(deals)
	result.ByOwner = groupByOwner(deals)
	result.ByMonth = groupByMonth(deals, start, end)

	return result
}

func groupByPipeline(deals []dealdomain.Deal) []domain.PipelineForecast {
	type bucket struct {
		forecast    domain.PipelineForecast
		amountCount int
		closed      int
		won         int
	}
	buckets := make(map[snowflake.ID]*bucket)

	for _, deal := range deals {
		b, ok := buckets[deal.PipelineID]
		if !ok {
			b = &bucket{forecast: domain.PipelineForecast{PipelineID: deal.PipelineID}}
			buckets[deal.PipelineID] = b
		}
		if deal.AmountCents != nil {
			b.forecast.TotalValueCents += *deal.AmountCents
			b.amountCount++
		}
		b.forecast.WeightedValueCents += deal.WeightedAmountCents
		b.forecast.DealCount++
		if deal.IsClosed {
			b.closed++
			if deal.IsWon {
				b.won++
			}
		}
	}

	out := make([]domain.PipelineForecast, 0, len(buckets))
	for _, b := range buckets {
		if b.amountCount > 0 {
			b.forecast.AvgDealSizeCents = round2(float64(b.forecast.TotalValueCents) / float64(b.amountCount))
		}
		if b.closed > 0 {
			// Ratio kept at 4-decimal precision before scaling to percent.
			ratio := math.Round(float64(b.won)/float64(b.closed)*1e4) / 1e4
			b.forecast.WinRate = round2(ratio * 100)
		}
		out = append(out, b.forecast)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PipelineID < out[j].PipelineID })
	return out
}

func groupByStage(deals []dealdomain.Deal) []domain.StageForecast {
	type bucket struct {
		forecast  domain.StageForecast
		probSum   int64
		probCount int
	}
	buckets := make(map[snowflake.ID]*bucket)

	for _, deal := range deals {
		b, ok := buckets[deal.StageID]
		if !ok {
			b = &bucket{forecast: domain.StageForecast{StageID: deal.StageID}}
			buckets[deal.StageID] = b
		}
		if deal.AmountCents != nil {
			b.forecast.TotalValueCents += *deal.AmountCents
		}
		b.forecast.WeightedValueCents += deal.WeightedAmountCents
		b.forecast.DealCount++
		if deal.Probability != nil {
			b.probSum += int64(*deal.Probability)
			b.probCount++
		}
	}

	out := make([]domain.StageForecast, 0, len(buckets))
	for _, b := range buckets {
		if b.probCount > 0 {
			b.forecast.AvgProbability = round2(float64(b.probSum) / float64(b.probCount))
		}
		out = append(out, b.forecast)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageID < out[j].StageID })
	return out
}

func groupByOwner(deals []dealdomain.Deal) []domain.OwnerForecast {
	buckets := make(map[snowflake.ID]*domain.OwnerForecast)

	for _, deal := range deals {
		ownerID := snowflake.ID(0)
		if deal.OwnerID != nil {
			ownerID = *deal.OwnerID
		}
		b, ok := buckets[ownerID]
		if !ok {
			b = &domain.OwnerForecast{OwnerID: ownerID}
			buckets[ownerID] = b
		}
		if deal.AmountCents != nil {
			b.TotalValueCents += *deal.AmountCents
		}
		b.WeightedValueCents += deal.WeightedAmountCents
		b.DealCount++
	}

	out := make([]domain.OwnerForecast, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out
}

func groupByMonth(deals []dealdomain.Deal, start, end time.Time) []domain.MonthlyForecast {
	type bucket struct {
		forecast domain.MonthlyForecast
		probSum  int64
	}
	buckets := make(map[string]*bucket)

	for _, deal := range deals {
		if deal.ExpectedCloseDate == nil {
			continue
		}
		key := deal.ExpectedCloseDate.UTC().Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{forecast: domain.MonthlyForecast{Month: key}}
			buckets[key] = b
		}
		if deal.AmountCents != nil {
			b.forecast.TotalValueCents += *deal.AmountCents
		}
		b.forecast.WeightedValueCents += deal.WeightedAmountCents
		b.forecast.DealCount++
		if deal.Probability != nil {
			b.probSum += int64(*deal.Probability)
		}
	}

	out := []domain.MonthlyForecast{}
	cursor := time.Date(start.UTC().Year(), start.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		key := cursor.Format("2006-01")
		if b, ok := buckets[key]; ok {
			// Expected closures: sum of probabilities truncated to whole deals.
			b.forecast.ExpectedClosures = b.probSum / 100
			out = append(out, b.forecast)
		}
		cursor = cursor.AddDate(0, 1, 0)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
