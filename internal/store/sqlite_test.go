package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hoa-dossier/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func floatPtr(f float64) *float64 { return &f }

func TestSQLiteEntityRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	created, err := s.CreateEntity(ctx, &model.Entity{
		Name: "Coral Gables Estates HOA",
		Location: model.Location{
			Street:     "123 Palm Ave",
			Locality:   "Coral Gables",
			Region:     "FL",
			PostalCode: "33134",
			Latitude:   floatPtr(25.721),
			Longitude:  floatPtr(-80.268),
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := s.GetEntity(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Coral Gables Estates HOA", got.Name)
	assert.Equal(t, "Coral Gables", got.Location.Locality)
	require.True(t, got.Location.HasCoordinates())
	assert.InDelta(t, 25.721, *got.Location.Latitude, 1e-9)
	assert.Nil(t, got.Verdict)
	assert.Nil(t, got.LastEnrichedAt)
	assert.Equal(t, 0, got.Completeness)
}

func TestSQLiteGetEntityNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetEntity(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteUpdateEntityResult(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	created, err := s.CreateEntity(ctx, &model.Entity{
		Name:     "Lakeside Villas",
		Location: model.Location{Locality: "Orlando", Region: "FL", PostalCode: "32801"},
	})
	require.NoError(t, err)

	enrichedAt := time.Now().UTC().Truncate(time.Second)
	update := EnrichmentUpdate{
		Verdict: &model.Verdict{
			OverallScore: 7.5,
			SubScores:    model.SubScores{Records: 8, Financial: 7, Rules: 7, Community: 8},
			Summary:      "Well-run association with healthy reserves.",
			Flags:        model.Flags{Green: []string{"active registry status"}},
		},
		Completeness: 85,
		Evidence: model.EvidenceBundle{
			Records: model.RecordsEvidence{
				EvidenceMeta:    model.EvidenceMeta{Found: true, Tier: model.TierHigh},
				RegistryMatched: true,
				RegistryStatus:  "ACTIVE",
			},
		},
		EnrichedAt: enrichedAt,
	}
	require.NoError(t, s.UpdateEntityResult(ctx, created.ID, update))

	got, err := s.GetEntity(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Verdict)
	assert.InDelta(t, 7.5, got.Verdict.OverallScore, 1e-9)
	assert.Equal(t, 85, got.Completeness)
	assert.True(t, got.Evidence.Records.RegistryMatched)
	require.NotNil(t, got.LastEnrichedAt)
	assert.Equal(t, enrichedAt, got.LastEnrichedAt.UTC().Truncate(time.Second))
}

func TestSQLiteUpdateEntityResultMissing(t *testing.T) {
	s := newTestSQLite(t)
	err := s.UpdateEntityResult(context.Background(), "missing", EnrichmentUpdate{EnrichedAt: time.Now()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteFindCandidates(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for _, e := range []model.Entity{
		{Name: "A", Location: model.Location{Locality: "Tampa", Region: "FL", PostalCode: "33601"}},
		{Name: "B", Location: model.Location{Locality: "Tampa", Region: "FL", PostalCode: "33601"}},
		{Name: "C", Location: model.Location{Locality: "Miami", Region: "FL", PostalCode: "33101"}},
	} {
		_, err := s.CreateEntity(ctx, &e)
		require.NoError(t, err)
	}

	got, err := s.FindCandidates(ctx, "Tampa", "FL", "33601")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	none, err := s.FindCandidates(ctx, "Austin", "TX", "78701")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteNeighborhoodCache(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := &model.NeighborhoodCacheEntry{
		BucketLat:        25.721,
		BucketLng:        -80.268,
		Locality:         "Coral Gables",
		Region:           "FL",
		CategoryCounts:   map[string]int{"restaurant": 12, "park": 3},
		WalkabilityScore: 78,
		Description:      "Very walkable: errands do not require a car.",
		CachedAt:         now,
		ExpiresAt:        now.Add(7 * 24 * time.Hour),
	}
	created, err := s.InsertNeighborhood(ctx, entry)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	// Exact bucket hit.
	got, err := s.FindNeighborhood(ctx, 25.721, -80.268, 0.001, now)
	require.NoError(t, err)
	assert.Equal(t, 78, got.WalkabilityScore)
	assert.Equal(t, 12, got.CategoryCounts["restaurant"])

	// Within tolerance.
	got, err = s.FindNeighborhood(ctx, 25.7215, -80.2685, 0.001, now)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	// Outside tolerance.
	_, err = s.FindNeighborhood(ctx, 25.730, -80.268, 0.001, now)
	assert.ErrorIs(t, err, ErrNotFound)

	// Expired entries are invisible to lookups.
	_, err = s.FindNeighborhood(ctx, 25.721, -80.268, 0.001, now.Add(8*24*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteNeighborhoodToleranceBoundaryMisses(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Dyadic coordinates keep the boundary arithmetic exact.
	entry := model.NeighborhoodCacheEntry{
		BucketLat: 26.5, BucketLng: -81.5,
		CategoryCounts: map[string]int{},
		CachedAt:       now, ExpiresAt: now.Add(24 * time.Hour),
	}
	_, err := s.InsertNeighborhood(ctx, &entry)
	require.NoError(t, err)

	// An offset exactly equal to the tolerance is a miss, not a hit.
	_, err = s.FindNeighborhood(ctx, 26.75, -81.5, 0.25, now)
	assert.ErrorIs(t, err, ErrNotFound)

	// Strictly inside the window still hits.
	got, err := s.FindNeighborhood(ctx, 26.625, -81.5, 0.25, now)
	require.NoError(t, err)
	assert.Equal(t, 26.5, got.BucketLat)
}

func TestSQLiteNeighborhoodInsertNeverUpdates(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	base := model.NeighborhoodCacheEntry{
		BucketLat: 25.721, BucketLng: -80.268,
		CategoryCounts: map[string]int{},
		CachedAt:       now, ExpiresAt: now.Add(24 * time.Hour),
	}
	first, err := s.InsertNeighborhood(ctx, &base)
	require.NoError(t, err)

	later := base
	later.CachedAt = now.Add(time.Hour)
	later.WalkabilityScore = 50
	second, err := s.InsertNeighborhood(ctx, &later)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Freshest row wins the lookup.
	got, err := s.FindNeighborhood(ctx, 25.721, -80.268, 0.001, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestSQLiteDeleteExpiredNeighborhoods(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, expires := range []time.Time{now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		_, err := s.InsertNeighborhood(ctx, &model.NeighborhoodCacheEntry{
			BucketLat: float64(i), BucketLng: float64(i),
			CategoryCounts: map[string]int{},
			CachedAt:       now.Add(-2 * time.Hour), ExpiresAt: expires,
		})
		require.NoError(t, err)
	}

	n, err := s.DeleteExpiredNeighborhoods(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteTaskLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	entity, err := s.CreateEntity(ctx, &model.Entity{
		Name:     "Task HOA",
		Location: model.Location{Locality: "Tampa", Region: "FL", PostalCode: "33601"},
	})
	require.NoError(t, err)

	task, err := s.CreateTask(ctx, entity.ID, model.DecisionCreateNew)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, task.Status)

	require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, model.TaskStatusRunning, ""))
	require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, model.TaskStatusFailed, "provider unavailable"))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Equal(t, "provider unavailable", got.Error)

	list, err := s.ListTasks(ctx, entity.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, task.ID, list[0].ID)
}

func TestSQLiteUpdateTaskStatusMissing(t *testing.T) {
	s := newTestSQLite(t)
	err := s.UpdateTaskStatus(context.Background(), "missing", model.TaskStatusRunning, "")
	assert.ErrorIs(t, err, ErrNotFound)
}
