package evidence

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/hoa-dossier/internal/model"
)

// Rules runs the single-stage governance search. Provider failure or an
// unverifiable answer degrades to an estimated default with Found=false.
func (s *Searcher) Rules(ctx context.Context, ec Context) model.RulesEvidence {
	result, err := s.query(ctx, render(s.queries.Rules, ec))
	if err != nil {
		zap.L().Warn("rules search failed",
			zap.String("entity", ec.Name), zap.Error(err))
		return estimatedRules()
	}
	if !result.FoundInfo {
		ev := estimatedRules()
		ev.LatencyMs = result.LatencyMs
		return ev
	}

	ev := model.RulesEvidence{
		EvidenceMeta: model.EvidenceMeta{
			Found:     true,
			Tier:      model.TierMedium,
			Citations: result.Citations,
			LatencyMs: result.LatencyMs,
		},
		DocumentsURL:     result.Field("documents_url"),
		PetPolicy:        result.Field("pet_policy"),
		ApprovalRequired: result.Field("approval_required"),
	}
	ev.DocumentsOnline = ev.DocumentsURL != ""

	// An explicit "none" is a known value, not an absence.
	if restriction := strings.TrimSpace(result.Field("rental_restriction")); restriction != "" {
		ev.RentalRestriction = restriction
		ev.RentalRestrictionKnown = true
	}
	return ev
}

func estimatedRules() model.RulesEvidence {
	return model.RulesEvidence{
		EvidenceMeta: model.EvidenceMeta{
			Found:     false,
			Tier:      model.TierNone,
			Estimated: true,
		},
		PetPolicy: "estimated: typical associations allow pets with breed and weight limits",
	}
}
