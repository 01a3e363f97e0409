package pipeline

import (
	"time"

	"github.com/sells-group/hoa-dossier/internal/model"
)

// Policy holds the re-enrichment thresholds.
type Policy struct {
	// StaleAfter is how old a verdict may get before re-analysis.
	StaleAfter time.Duration

	// LowQualityThreshold is the completeness at or below which a verdict
	// counts as degraded fallback output.
	LowQualityThreshold int
}

// DefaultPolicy re-analyzes after 30 days or at completeness <= 30.
func DefaultPolicy() Policy {
	return Policy{
		StaleAfter:          30 * 24 * time.Hour,
		LowQualityThreshold: 30,
	}
}

// Decide is the pure re-enrichment decision for a matched entity.
//
//	no verdict                     -> create_new (never skip)
//	completeness <= threshold      -> reanalyze_low_quality, regardless of age
//	age >= stale window            -> reanalyze_stale
//	otherwise                      -> skip
func Decide(entity *model.Entity, policy Policy, now time.Time) model.EnrichmentDecision {
	if !entity.VerdictPresent() {
		return model.DecisionCreateNew
	}
	if entity.Completeness <= policy.LowQualityThreshold {
		return model.DecisionReanalyzeLowQ
	}
	if entity.LastEnrichedAt == nil || now.Sub(*entity.LastEnrichedAt) >= policy.StaleAfter {
		return model.DecisionReanalyzeStale
	}
	return model.DecisionSkip
}
