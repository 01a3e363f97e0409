package evidence

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/hoa-dossier/internal/model"
	"github.com/sells-group/hoa-dossier/pkg/perplexity"
)

// Records runs the three-stage public-records search. Later stages run only
// as far as needed:
//
//  1. primary search by name and address,
//  2. registry-by-name, when the primary found no registry match,
//  3. areal fallback by postal area, when the primary found neither a
//     management company nor a usable contact field.
//
// A provider failure degrades the category to Found=false; it never returns
// an error.
func (s *Searcher) Records(ctx context.Context, ec Context) model.RecordsEvidence {
	var ev model.RecordsEvidence

	primary, err := s.query(ctx, render(s.queries.RecordsPrimary, ec))
	if err != nil {
		zap.L().Warn("records primary search failed",
			zap.String("entity", ec.Name), zap.Error(err))
	} else {
		applyRecordsFields(&ev, primary)
		ev.LatencyMs += primary.LatencyMs
	}

	if !ev.RegistryMatched {
		registryCtx := ec
		registryCtx.Name = NormalizeAssociationName(ec.Name)
		registry, err := s.query(ctx, render(s.queries.RecordsRegistry, registryCtx))
		if err != nil {
			zap.L().Warn("registry search failed",
				zap.String("entity", ec.Name), zap.Error(err))
		} else {
			applyRecordsFields(&ev, registry)
			ev.LatencyMs += registry.LatencyMs
		}
	}

	// Tier assignment distinguishes evidence about this association from
	// area-level fallback findings.
	entitySpecific := ev.ManagementCompany != "" || ev.SubdivisionName != ""

	if ev.ManagementCompany == "" && ev.Phone == "" && ev.Website == "" {
		areal, err := s.query(ctx, render(s.queries.RecordsAreal, ec))
		if err != nil {
			zap.L().Warn("areal fallback search failed",
				zap.String("entity", ec.Name), zap.Error(err))
		} else if areal.FoundInfo {
			if ev.ManagementCompany == "" {
				ev.ManagementCompany = areal.Field("management_company")
			}
			if ev.SubdivisionName == "" {
				ev.SubdivisionName = areal.Field("subdivision_name")
			}
			ev.AreaLevel = true
			ev.Citations = append(ev.Citations, areal.Citations...)
			ev.LatencyMs += areal.LatencyMs
		}
	}

	ev.Tier = recordsTier(ev, entitySpecific)
	ev.Found = ev.Tier != model.TierNone
	return ev
}

// applyRecordsFields merges a search result into the evidence, keeping values
// already present from an earlier stage.
func applyRecordsFields(ev *model.RecordsEvidence, result *perplexity.SearchResult) {
	if !result.FoundInfo {
		return
	}
	setIfEmpty(&ev.ManagementCompany, result.Field("management_company"))
	setIfEmpty(&ev.Phone, result.Field("phone"))
	setIfEmpty(&ev.Website, result.Field("website"))
	setIfEmpty(&ev.SubdivisionName, result.Field("subdivision_name"))

	if status := result.Field("registry_status"); status != "" {
		ev.RegistryMatched = true
		setIfEmpty(&ev.RegistryStatus, status)
	}
	setIfEmpty(&ev.RegistryDocumentID, result.Field("registry_document_id"))

	ev.Citations = append(ev.Citations, result.Citations...)
}

// recordsTier assigns the confidence tier; evaluated in priority order,
// first match wins. Adding a registry match can only raise the tier.
func recordsTier(ev model.RecordsEvidence, entitySpecific bool) model.ConfidenceTier {
	switch {
	case ev.RegistryMatched:
		return model.TierHigh
	case entitySpecific:
		return model.TierMedium
	case ev.AreaLevel && (ev.ManagementCompany != "" || ev.SubdivisionName != ""):
		return model.TierLow
	default:
		return model.TierNone
	}
}

func setIfEmpty(dst *string, val string) {
	if *dst == "" {
		*dst = val
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
