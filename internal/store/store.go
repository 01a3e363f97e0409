// Package store persists entities, enrichment tasks, and the neighborhood
// cache behind a backend-agnostic interface.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hoa-dossier/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// EnrichmentUpdate is the single terminal write of a completed pipeline run.
// Everything a run produces lands in one update; a failed run writes nothing.
type EnrichmentUpdate struct {
	Verdict      *model.Verdict
	Completeness int
	Evidence     model.EvidenceBundle
	EnrichedAt   time.Time
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Entities
	CreateEntity(ctx context.Context, entity *model.Entity) (*model.Entity, error)
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
	UpdateEntityResult(ctx context.Context, id string, update EnrichmentUpdate) error
	FindCandidates(ctx context.Context, locality, region, postalCode string) ([]model.Entity, error)

	// Neighborhood cache. Lookups scan for a non-expired entry whose bucket
	// lies within tolerance; inserts always create a new row (no upsert).
	InsertNeighborhood(ctx context.Context, entry *model.NeighborhoodCacheEntry) (*model.NeighborhoodCacheEntry, error)
	FindNeighborhood(ctx context.Context, bucketLat, bucketLng, tolerance float64, now time.Time) (*model.NeighborhoodCacheEntry, error)
	DeleteExpiredNeighborhoods(ctx context.Context, now time.Time) (int, error)

	// Tasks
	CreateTask(ctx context.Context, entityID string, decision model.EnrichmentDecision) (*model.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status model.TaskStatus, errMsg string) error
	GetTask(ctx context.Context, taskID string) (*model.Task, error)
	ListTasks(ctx context.Context, entityID string, limit int) ([]model.Task, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
