package evidence

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/hoa-dossier/internal/model"
)

// typicalMonthlyFeeUSD stands in when no verified fee is found. Labeled
// estimated; it never counts toward completeness.
const typicalMonthlyFeeUSD = 350

// Financial runs the single-stage financial search. When the provider fails
// or finds nothing verifiable, the category degrades to an estimated default
// with Found=false.
func (s *Searcher) Financial(ctx context.Context, ec Context) model.FinancialEvidence {
	result, err := s.query(ctx, render(s.queries.Financial, ec))
	if err != nil {
		zap.L().Warn("financial search failed",
			zap.String("entity", ec.Name), zap.Error(err))
		return estimatedFinancial()
	}
	if !result.FoundInfo {
		ev := estimatedFinancial()
		ev.LatencyMs = result.LatencyMs
		return ev
	}

	ev := model.FinancialEvidence{
		EvidenceMeta: model.EvidenceMeta{
			Found:     true,
			Tier:      model.TierMedium,
			Citations: result.Citations,
			LatencyMs: result.LatencyMs,
		},
		SpecialAssessments: result.Field("special_assessments"),
		ReserveFundingNote: result.Field("reserve_funding_note"),
		FeeTrendNote:       result.Field("fee_trend_note"),
	}
	if fee := parseFloat(result.Field("monthly_fee_usd")); fee > 0 {
		ev.MonthlyFeeUSD = fee
		ev.MonthlyFeeVerified = true
	}
	ev.AssessmentsVerified = ev.SpecialAssessments != ""
	return ev
}

func estimatedFinancial() model.FinancialEvidence {
	return model.FinancialEvidence{
		EvidenceMeta: model.EvidenceMeta{
			Found:     false,
			Tier:      model.TierNone,
			Estimated: true,
		},
		MonthlyFeeUSD:      typicalMonthlyFeeUSD,
		ReserveFundingNote: "estimated: typical for comparable associations in the region",
	}
}
