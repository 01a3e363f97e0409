// Package neighborhood resolves area-level context around a coordinate,
// backed by a tolerance-bucketed cache so nearby lookups share one provider
// round trip.
package neighborhood

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hoa-dossier/internal/model"
	"github.com/sells-group/hoa-dossier/internal/store"
	"github.com/sells-group/hoa-dossier/pkg/places"
)

// Options tune cache granularity and the live fetch.
type Options struct {
	// TTL bounds how long a cached entry serves lookups.
	TTL time.Duration

	// ToleranceDegrees is the bucket match window (~100m at 0.001).
	ToleranceDegrees float64

	// RadiusMeters is the live-fetch search radius per category.
	RadiusMeters int

	// Categories are the business categories of interest.
	Categories []string
}

// DefaultOptions matches a roughly 100m cache window refreshed weekly.
func DefaultOptions() Options {
	return Options{
		TTL:              7 * 24 * time.Hour,
		ToleranceDegrees: 0.001,
		RadiusMeters:     1500,
		Categories:       []string{"restaurant", "park", "grocery_store", "coffee_shop", "school", "gym"},
	}
}

// Service serves neighborhood context with read-through caching.
type Service struct {
	store  store.Store
	places places.Client
	opts   Options
	now    func() time.Time
}

// NewService builds a Service; zero-value option fields fall back to defaults.
func NewService(st store.Store, placesClient places.Client, opts Options) *Service {
	def := DefaultOptions()
	if opts.TTL <= 0 {
		opts.TTL = def.TTL
	}
	if opts.ToleranceDegrees <= 0 {
		opts.ToleranceDegrees = def.ToleranceDegrees
	}
	if opts.RadiusMeters <= 0 {
		opts.RadiusMeters = def.RadiusMeters
	}
	if len(opts.Categories) == 0 {
		opts.Categories = def.Categories
	}
	return &Service{store: st, places: placesClient, opts: opts, now: time.Now}
}

// bucket rounds a coordinate to three decimals, the cache's bucket grid.
func bucket(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Context returns area context for the coordinate: a non-expired cached entry
// within tolerance when one exists, otherwise a live fetch. A cache-store
// failure is logged and the fresh data still returned.
func (s *Service) Context(ctx context.Context, lat, lng float64, locality, region string) (*model.NeighborhoodContext, error) {
	bucketLat, bucketLng := bucket(lat), bucket(lng)
	now := s.now()

	cached, err := s.store.FindNeighborhood(ctx, bucketLat, bucketLng, s.opts.ToleranceDegrees, now)
	if err == nil {
		return &model.NeighborhoodContext{
			CategoryCounts:   cached.CategoryCounts,
			WalkabilityScore: cached.WalkabilityScore,
			Description:      cached.Description,
			FromCache:        true,
		}, nil
	}
	if !eris.Is(err, store.ErrNotFound) {
		zap.L().Warn("neighborhood cache lookup failed", zap.Error(err))
	}

	counts, err := s.fetchCounts(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	score := walkabilityScore(counts)
	description := describe(counts, score)

	entry := &model.NeighborhoodCacheEntry{
		BucketLat:        bucketLat,
		BucketLng:        bucketLng,
		Locality:         locality,
		Region:           region,
		CategoryCounts:   counts,
		WalkabilityScore: score,
		Description:      description,
		CachedAt:         now,
		ExpiresAt:        now.Add(s.opts.TTL),
	}
	// Always a fresh row; overlapping windows may hold duplicates and the
	// newest wins on lookup.
	if _, err := s.store.InsertNeighborhood(ctx, entry); err != nil {
		zap.L().Warn("neighborhood cache insert failed",
			zap.Float64("bucket_lat", bucketLat),
			zap.Float64("bucket_lng", bucketLng),
			zap.Error(err))
	}

	return &model.NeighborhoodContext{
		CategoryCounts:   counts,
		WalkabilityScore: score,
		Description:      description,
	}, nil
}

// fetchCounts queries the directory once per category. A single failed
// category is skipped; all categories failing is a provider error.
func (s *Service) fetchCounts(ctx context.Context, lat, lng float64) (map[string]int, error) {
	counts := make(map[string]int, len(s.opts.Categories))
	var lastErr error
	failures := 0
	for _, category := range s.opts.Categories {
		businesses, err := s.places.Nearby(ctx, lat, lng, s.opts.RadiusMeters, category)
		if err != nil {
			zap.L().Warn("nearby search failed",
				zap.String("category", category), zap.Error(err))
			lastErr = err
			failures++
			continue
		}
		counts[category] = len(businesses)
	}
	if failures == len(s.opts.Categories) {
		return nil, eris.Wrap(lastErr, "neighborhood: all category fetches failed")
	}
	return counts, nil
}

// Purge removes expired cache entries, returning how many were deleted.
func (s *Service) Purge(ctx context.Context) (int, error) {
	return s.store.DeleteExpiredNeighborhoods(ctx, s.now())
}
