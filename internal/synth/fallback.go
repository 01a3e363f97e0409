package synth

import (
	"fmt"
	"strings"

	"github.com/sells-group/hoa-dossier/internal/model"
)

// Fallback builds a deterministic rule-based verdict from evidence tiers and
// the completeness score, used when the synthesis provider fails. The same
// bundle and completeness always yield the same verdict.
func Fallback(name string, bundle model.EvidenceBundle, completeness int) *model.Verdict {
	sub := model.SubScores{
		Records:   tierScore(bundle.Records.Tier),
		Financial: tierScore(bundle.Financial.Tier),
		Rules:     tierScore(bundle.Rules.Tier),
		Community: tierScore(bundle.Community.Tier),
	}

	// Overall blends category confidence with field completeness.
	overall := (sub.Records+sub.Financial+sub.Rules+sub.Community)/4*0.6 +
		float64(completeness)/10*0.4
	overall = clampScore(overall)

	var flags model.Flags
	if bundle.Records.RegistryStatus != "" && !strings.EqualFold(bundle.Records.RegistryStatus, "ACTIVE") {
		flags.Red = append(flags.Red, fmt.Sprintf("registry status %s", bundle.Records.RegistryStatus))
	}
	if bundle.Financial.SpecialAssessments != "" {
		flags.Yellow = append(flags.Yellow, "special assessments reported: "+bundle.Financial.SpecialAssessments)
	}
	if !bundle.Financial.Found {
		flags.Yellow = append(flags.Yellow, "financial details unverified")
	}
	if bundle.Records.RegistryMatched && strings.EqualFold(bundle.Records.RegistryStatus, "ACTIVE") {
		flags.Green = append(flags.Green, "active corporate registry filing")
	}
	if bundle.Rules.DocumentsOnline {
		flags.Green = append(flags.Green, "governing documents published online")
	}

	questions := []string{
		"What is the current reserve fund balance and funding plan?",
		"Are any special assessments planned in the next 24 months?",
	}
	documents := []string{"CC&Rs and bylaws", "most recent budget and reserve study"}
	if !bundle.Financial.MonthlyFeeVerified {
		questions = append(questions, "What are the current monthly dues and what do they cover?")
	}
	if !bundle.Rules.RentalRestrictionKnown {
		documents = append(documents, "rental and leasing policy")
	}

	return &model.Verdict{
		OverallScore: overall,
		SubScores:    sub,
		Flags:        flags,
		Summary: fmt.Sprintf(
			"Automated assessment of %s from partial evidence (%d%% complete); the analysis provider was unavailable, so verify findings independently.",
			name, completeness),
		RecommendedQuestions: questions,
		RecommendedDocuments: documents,
		Fallback:             true,
	}
}

func tierScore(tier model.ConfidenceTier) float64 {
	switch tier {
	case model.TierHigh:
		return 8
	case model.TierMedium:
		return 6
	case model.TierLow:
		return 4
	default:
		return 2
	}
}
