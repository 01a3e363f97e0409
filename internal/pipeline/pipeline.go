// Package pipeline orchestrates dossier enrichment: resolve the address,
// match or create the entity, gather evidence, score it, synthesize a
// verdict, and persist the result in one terminal write.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/hoa-dossier/internal/evidence"
	"github.com/sells-group/hoa-dossier/internal/model"
	"github.com/sells-group/hoa-dossier/internal/score"
	"github.com/sells-group/hoa-dossier/internal/store"
	"github.com/sells-group/hoa-dossier/internal/synth"
	"github.com/sells-group/hoa-dossier/pkg/geocode"
)

// EvidenceGatherer runs the per-category searches. Each method degrades to
// Found=false on provider failure rather than returning an error.
type EvidenceGatherer interface {
	Records(ctx context.Context, ec evidence.Context) model.RecordsEvidence
	Financial(ctx context.Context, ec evidence.Context) model.FinancialEvidence
	Rules(ctx context.Context, ec evidence.Context) model.RulesEvidence
	Community(ctx context.Context, ec evidence.Context) model.CommunityEvidence
}

// NeighborhoodProvider serves cached area context around a coordinate.
type NeighborhoodProvider interface {
	Context(ctx context.Context, lat, lng float64, locality, region string) (*model.NeighborhoodContext, error)
}

// Pipeline wires the enrichment stages together.
type Pipeline struct {
	store        store.Store
	resolver     geocode.Resolver
	gatherer     EvidenceGatherer
	neighborhood NeighborhoodProvider
	synthesizer  synth.Synthesizer
	policy       Policy
	matchTol     float64
	locks        *entityLocks
	now          func() time.Time
}

// New builds a Pipeline. matchToleranceDegrees <= 0 falls back to ~200m.
func New(st store.Store, resolver geocode.Resolver, gatherer EvidenceGatherer,
	nb NeighborhoodProvider, synthesizer synth.Synthesizer,
	policy Policy, matchToleranceDegrees float64) *Pipeline {
	if matchToleranceDegrees <= 0 {
		matchToleranceDegrees = defaultMatchTolerance
	}
	return &Pipeline{
		store:        st,
		resolver:     resolver,
		gatherer:     gatherer,
		neighborhood: nb,
		synthesizer:  synthesizer,
		policy:       policy,
		matchTol:     matchToleranceDegrees,
		locks:        newEntityLocks(),
		now:          time.Now,
	}
}

// Request identifies what to enrich: a free-text address, optionally with an
// association name hint.
type Request struct {
	Address string
	Name    string
}

// Prepared is the outcome of resolution, matching, and the re-enrichment
// decision, before any evidence is gathered.
type Prepared struct {
	Entity   *model.Entity
	Decision model.EnrichmentDecision
}

// Prepare resolves the request's address, matches it against nearby existing
// entities or creates a minimal one, and decides whether a run is needed.
// Resolver exhaustion surfaces as geocode.ErrAddressNotResolved.
func (p *Pipeline) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	loc, err := p.resolver.Resolve(ctx, req.Address)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve address")
	}
	if loc.OutOfRegion {
		zap.L().Warn("resolved address outside supported region",
			zap.String("address", req.Address),
			zap.String("region", loc.Region))
	}

	candidates, err := p.store.FindCandidates(ctx, loc.Locality, loc.Region, loc.PostalCode)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: find candidates")
	}

	modelLoc := model.Location{
		Street:     loc.Street,
		Locality:   loc.Locality,
		Region:     loc.Region,
		PostalCode: loc.PostalCode,
		Latitude:   &loc.Latitude,
		Longitude:  &loc.Longitude,
		Formatted:  loc.Formatted,
	}

	entity := matchCandidate(candidates, modelLoc, p.matchTol)
	if entity == nil {
		name := req.Name
		if name == "" {
			name = loc.Formatted
		}
		entity, err = p.store.CreateEntity(ctx, &model.Entity{Name: name, Location: modelLoc})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create entity")
		}
		zap.L().Info("created entity",
			zap.String("entity_id", entity.ID),
			zap.String("locality", loc.Locality))
		return &Prepared{Entity: entity, Decision: model.DecisionCreateNew}, nil
	}

	decision := Decide(entity, p.policy, p.now())
	zap.L().Info("matched entity",
		zap.String("entity_id", entity.ID),
		zap.String("decision", string(decision)),
		zap.Int("completeness", entity.Completeness))
	return &Prepared{Entity: entity, Decision: decision}, nil
}

// Run executes one enrichment for the entity under its keyed lock. taskID
// tags the lock so concurrent callers can observe the in-flight run; it may
// be empty for synchronous runs. A failed run leaves the entity untouched.
func (p *Pipeline) Run(ctx context.Context, entity *model.Entity, taskID string) (*model.Entity, error) {
	ok, inFlight := p.locks.tryAcquire(entity.ID, taskID)
	if !ok {
		return nil, eris.Wrapf(ErrAlreadyAnalyzing, "task %s", inFlight)
	}
	defer p.locks.release(entity.ID)

	return p.run(ctx, entity)
}

// run is the lock-free body of Run; the caller holds the entity's lock.
func (p *Pipeline) run(ctx context.Context, entity *model.Entity) (*model.Entity, error) {
	started := p.now()
	bundle := p.gather(ctx, entity)
	completeness := score.Completeness(bundle)

	verdict, err := p.synthesizer.Synthesize(ctx, entity.Name, bundle)
	if err != nil {
		zap.L().Warn("synthesis failed, using fallback verdict",
			zap.String("entity_id", entity.ID),
			zap.Error(err))
		verdict = synth.Fallback(entity.Name, bundle, completeness)
	}

	// The single terminal write; nothing was persisted before this point.
	enrichedAt := p.now()
	update := store.EnrichmentUpdate{
		Verdict:      verdict,
		Completeness: completeness,
		Evidence:     bundle,
		EnrichedAt:   enrichedAt,
	}
	if err := p.store.UpdateEntityResult(ctx, entity.ID, update); err != nil {
		zap.L().Error("terminal write failed, entity left untouched",
			zap.String("entity_id", entity.ID),
			zap.Error(err))
		return nil, eris.Wrap(ErrPersistenceFailed, err.Error())
	}

	updated := *entity
	updated.Verdict = verdict
	updated.Completeness = completeness
	updated.Evidence = bundle
	updated.LastEnrichedAt = &enrichedAt

	zap.L().Info("enrichment complete",
		zap.String("entity_id", entity.ID),
		zap.Int("completeness", completeness),
		zap.Float64("overall_score", verdict.OverallScore),
		zap.Bool("fallback_verdict", verdict.Fallback),
		zap.Duration("elapsed", p.now().Sub(started)))
	return &updated, nil
}

// gather fans the category searches out concurrently. Every category
// degrades independently; gather itself cannot fail.
func (p *Pipeline) gather(ctx context.Context, entity *model.Entity) model.EvidenceBundle {
	ec := evidence.Context{Name: entity.Name, Location: entity.Location}

	var bundle model.EvidenceBundle
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bundle.Records = p.gatherer.Records(gctx, ec)
		return nil
	})
	g.Go(func() error {
		bundle.Financial = p.gatherer.Financial(gctx, ec)
		return nil
	})
	g.Go(func() error {
		bundle.Rules = p.gatherer.Rules(gctx, ec)
		return nil
	})
	g.Go(func() error {
		bundle.Community = p.gatherer.Community(gctx, ec)
		return nil
	})
	g.Go(func() error {
		if !entity.Location.HasCoordinates() {
			return nil
		}
		nb, err := p.neighborhood.Context(gctx,
			*entity.Location.Latitude, *entity.Location.Longitude,
			entity.Location.Locality, entity.Location.Region)
		if err != nil {
			zap.L().Warn("neighborhood context failed",
				zap.String("entity_id", entity.ID),
				zap.Error(err))
			return nil
		}
		bundle.Neighborhood = *nb
		return nil
	})
	_ = g.Wait() // goroutines only ever return nil
	return bundle
}

// Enrich is the synchronous entry point: Prepare, then Run unless the
// decision was skip.
func (p *Pipeline) Enrich(ctx context.Context, req Request) (*model.Entity, model.EnrichmentDecision, error) {
	prepared, err := p.Prepare(ctx, req)
	if err != nil {
		return nil, "", err
	}
	if !prepared.Decision.Reanalyze() {
		return prepared.Entity, prepared.Decision, nil
	}
	entity, err := p.Run(ctx, prepared.Entity, "")
	if err != nil {
		return nil, prepared.Decision, err
	}
	return entity, prepared.Decision, nil
}
