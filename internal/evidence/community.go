package evidence

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/hoa-dossier/internal/model"
)

// Community runs the single-stage resident-sentiment search. Provider failure
// or an unverifiable answer degrades to an estimated default with Found=false.
func (s *Searcher) Community(ctx context.Context, ec Context) model.CommunityEvidence {
	result, err := s.query(ctx, render(s.queries.Community, ec))
	if err != nil {
		zap.L().Warn("community search failed",
			zap.String("entity", ec.Name), zap.Error(err))
		return estimatedCommunity()
	}
	if !result.FoundInfo {
		ev := estimatedCommunity()
		ev.LatencyMs = result.LatencyMs
		return ev
	}

	return model.CommunityEvidence{
		EvidenceMeta: model.EvidenceMeta{
			Found:     true,
			Tier:      model.TierMedium,
			Citations: result.Citations,
			LatencyMs: result.LatencyMs,
		},
		ReviewCount:     parseInt(result.Field("review_count")),
		AverageRating:   parseFloat(result.Field("average_rating")),
		BureauScore:     result.Field("bureau_score"),
		SentimentNote:   result.Field("sentiment_note"),
		CommonPraise:    result.Field("common_praise"),
		CommonComplaint: result.Field("common_complaint"),
	}
}

func estimatedCommunity() model.CommunityEvidence {
	return model.CommunityEvidence{
		EvidenceMeta: model.EvidenceMeta{
			Found:     false,
			Tier:      model.TierNone,
			Estimated: true,
		},
		SentimentNote: "estimated: no verifiable resident reviews located",
	}
}
