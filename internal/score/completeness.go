// Package score computes the 0-100 completeness score for an evidence bundle.
package score

import "github.com/sells-group/hoa-dossier/internal/model"

// Category point budgets. Records carries the heaviest weight because it is
// the only category with a registry-backed verification path.
const (
	recordsPoints   = 40
	communityPoints = 20
	financialPoints = 20
	rulesPoints     = 20
)

// Completeness reduces an evidence bundle to a 0-100 score. Pure: the same
// bundle always yields the same score.
func Completeness(bundle model.EvidenceBundle) int {
	earned := recordsScore(bundle.Records) +
		communityScore(bundle.Community) +
		financialScore(bundle.Financial) +
		rulesScore(bundle.Rules)

	// Budgets sum to exactly 100, so earned is already the percentage.
	if earned < 0 {
		return 0
	}
	if earned > 100 {
		return 100
	}
	return earned
}

// recordsScore awards up to 40 points for verified public-record fields.
func recordsScore(ev model.RecordsEvidence) int {
	if !ev.Found {
		return 0
	}
	pts := 0
	if ev.SubdivisionName != "" {
		pts += 5
	}
	if ev.ManagementCompany != "" {
		pts += 10
	}
	if ev.Phone != "" {
		pts += 5
	}
	if ev.Website != "" {
		pts += 5
	}
	if ev.RegistryStatus != "" {
		pts += 10
	}
	if ev.RegistryDocumentID != "" {
		pts += 5
	}
	return pts
}

// communityScore awards up to 20 points for verified review signals.
func communityScore(ev model.CommunityEvidence) int {
	if !ev.Found {
		return 0
	}
	pts := 10 // any verified review signal
	if ev.ReviewCount > 0 {
		pts += 5
	}
	if ev.BureauScore != "" {
		pts += 5
	}
	return pts
}

// financialScore awards up to 20 points for verified financial signals.
func financialScore(ev model.FinancialEvidence) int {
	if !ev.Found {
		return 0
	}
	pts := 10 // any verified financial signal
	if ev.MonthlyFeeVerified {
		pts += 5
	}
	if ev.AssessmentsVerified {
		pts += 5
	}
	return pts
}

// rulesScore awards up to 20 points for verified governance signals.
// An explicit "none" rental restriction counts as known.
func rulesScore(ev model.RulesEvidence) int {
	if !ev.Found {
		return 0
	}
	pts := 10 // any verified rules signal
	if ev.DocumentsOnline {
		pts += 5
	}
	if ev.RentalRestrictionKnown {
		pts += 5
	}
	return pts
}
