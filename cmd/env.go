package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hoa-dossier/internal/evidence"
	"github.com/sells-group/hoa-dossier/internal/neighborhood"
	"github.com/sells-group/hoa-dossier/internal/pipeline"
	"github.com/sells-group/hoa-dossier/internal/store"
	"github.com/sells-group/hoa-dossier/internal/synth"
	"github.com/sells-group/hoa-dossier/pkg/anthropic"
	"github.com/sells-group/hoa-dossier/pkg/geocode"
	"github.com/sells-group/hoa-dossier/pkg/perplexity"
	"github.com/sells-group/hoa-dossier/pkg/places"
)

// env holds the wired application components.
type env struct {
	Store        store.Store
	Pipeline     *pipeline.Pipeline
	Runner       *pipeline.Runner
	Neighborhood *neighborhood.Service
}

// initEnv constructs the store, provider clients, and pipeline from config.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	resolver := geocode.NewChain(
		[]geocode.Provider{
			geocode.NewCensusProvider(geocode.WithCensusRateLimit(cfg.Geocode.CensusRPS)),
			geocode.NewGoogleProvider(cfg.Geocode.GoogleKey),
		},
		geocode.WithSupportedRegion(cfg.Geocode.SupportedRegion),
	)

	searchClient := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model),
		perplexity.WithTimeout(time.Duration(cfg.Perplexity.TimeoutSecs)*time.Second),
		perplexity.WithRateLimit(cfg.Perplexity.RPS),
	)
	searcher, err := evidence.NewSearcher(searchClient)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	placesClient := places.NewClient(cfg.Places.Key,
		places.WithBaseURL(cfg.Places.BaseURL),
		places.WithRateLimit(cfg.Places.RPS),
	)
	nb := neighborhood.NewService(st, placesClient, neighborhood.Options{
		TTL:              time.Duration(cfg.Neighborhood.TTLDays) * 24 * time.Hour,
		ToleranceDegrees: cfg.Neighborhood.ToleranceDegrees,
		RadiusMeters:     cfg.Neighborhood.RadiusMeters,
		Categories:       cfg.Neighborhood.Categories,
	})

	synthesizer := synth.NewAdapter(
		anthropic.NewClient(cfg.Anthropic.Key),
		cfg.Anthropic.Model,
		cfg.Anthropic.MaxTokens,
	)

	policy := pipeline.Policy{
		StaleAfter:          time.Duration(cfg.Pipeline.StaleAfterDays) * 24 * time.Hour,
		LowQualityThreshold: cfg.Pipeline.LowQualityThreshold,
	}
	p := pipeline.New(st, resolver, searcher, nb, synthesizer, policy, cfg.Pipeline.MatchToleranceDegrees)

	return &env{
		Store:        st,
		Pipeline:     p,
		Runner:       pipeline.NewRunner(st, p),
		Neighborhood: nb,
	}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres pool")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, eris.Wrap(err, "ping postgres")
		}
		return store.NewPostgres(pool), nil
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Close waits for in-flight background runs and releases the store.
func (e *env) Close() {
	e.Runner.Wait()
	e.Store.Close() //nolint:errcheck
}
