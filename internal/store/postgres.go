package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hoa-dossier/internal/db"
	"github.com/sells-group/hoa-dossier/internal/model"
)

// PostgresStore implements Store on top of a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps an existing pool. Callers own pool construction so tests
// can substitute pgxmock.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id               UUID PRIMARY KEY,
	name             TEXT NOT NULL,
	street           TEXT NOT NULL DEFAULT '',
	locality         TEXT NOT NULL DEFAULT '',
	region           TEXT NOT NULL DEFAULT '',
	postal_code      TEXT NOT NULL DEFAULT '',
	latitude         DOUBLE PRECISION,
	longitude        DOUBLE PRECISION,
	last_enriched_at TIMESTAMPTZ,
	verdict          JSONB,
	completeness     INTEGER NOT NULL DEFAULT 0,
	evidence         JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS neighborhood_cache (
	id               UUID PRIMARY KEY,
	bucket_lat       DOUBLE PRECISION NOT NULL,
	bucket_lng       DOUBLE PRECISION NOT NULL,
	locality         TEXT NOT NULL DEFAULT '',
	region           TEXT NOT NULL DEFAULT '',
	category_counts  JSONB NOT NULL DEFAULT '{}'::jsonb,
	walkability      INTEGER NOT NULL DEFAULT 0,
	description      TEXT NOT NULL DEFAULT '',
	cached_at        TIMESTAMPTZ NOT NULL,
	expires_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id         UUID PRIMARY KEY,
	entity_id  UUID NOT NULL REFERENCES entities(id),
	decision   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entities_area ON entities(locality, region, postal_code);
CREATE INDEX IF NOT EXISTS idx_neighborhood_bucket ON neighborhood_cache(bucket_lat, bucket_lng);
CREATE INDEX IF NOT EXISTS idx_neighborhood_expires ON neighborhood_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_tasks_entity ON tasks(entity_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateEntity(ctx context.Context, entity *model.Entity) (*model.Entity, error) {
	created := *entity
	created.ID = uuid.New().String()
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	evidenceJSON, err := json.Marshal(created.Evidence)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal evidence")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO entities (id, name, street, locality, region, postal_code, latitude, longitude, completeness, evidence, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		created.ID, created.Name,
		created.Location.Street, created.Location.Locality, created.Location.Region, created.Location.PostalCode,
		created.Location.Latitude, created.Location.Longitude,
		created.Completeness, evidenceJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert entity")
	}
	return &created, nil
}

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)

	entity, err := scanPgEntity(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get entity %s", id)
	}
	return entity, nil
}

func (s *PostgresStore) UpdateEntityResult(ctx context.Context, id string, update EnrichmentUpdate) error {
	verdictJSON, err := marshalNullableBytes(update.Verdict)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal verdict")
	}
	evidenceJSON, err := json.Marshal(update.Evidence)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET verdict = $1, completeness = $2, evidence = $3, last_enriched_at = $4, updated_at = now() WHERE id = $5`,
		verdictJSON, update.Completeness, evidenceJSON, update.EnrichedAt.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update entity %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "entity %s", id)
	}
	return nil
}

func (s *PostgresStore) FindCandidates(ctx context.Context, locality, region, postalCode string) ([]model.Entity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE locality = $1 AND region = $2 AND postal_code = $3`,
		locality, region, postalCode,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find candidates")
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		entity, scanErr := scanPgEntity(rows)
		if scanErr != nil {
			return nil, eris.Wrap(scanErr, "postgres: scan candidate")
		}
		entities = append(entities, *entity)
	}
	return entities, eris.Wrap(rows.Err(), "postgres: iterate candidates")
}

func (s *PostgresStore) InsertNeighborhood(ctx context.Context, entry *model.NeighborhoodCacheEntry) (*model.NeighborhoodCacheEntry, error) {
	created := *entry
	created.ID = uuid.New().String()

	countsJSON, err := json.Marshal(created.CategoryCounts)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal category counts")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO neighborhood_cache (id, bucket_lat, bucket_lng, locality, region, category_counts, walkability, description, cached_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		created.ID, created.BucketLat, created.BucketLng, created.Locality, created.Region,
		countsJSON, created.WalkabilityScore, created.Description,
		created.CachedAt.UTC(), created.ExpiresAt.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert neighborhood")
	}
	return &created, nil
}

func (s *PostgresStore) FindNeighborhood(ctx context.Context, bucketLat, bucketLng, tolerance float64, now time.Time) (*model.NeighborhoodCacheEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, bucket_lat, bucket_lng, locality, region, category_counts, walkability, description, cached_at, expires_at
		 FROM neighborhood_cache
		 WHERE bucket_lat > $1 AND bucket_lat < $2 AND bucket_lng > $3 AND bucket_lng < $4 AND expires_at > $5
		 ORDER BY cached_at DESC LIMIT 1`,
		bucketLat-tolerance, bucketLat+tolerance,
		bucketLng-tolerance, bucketLng+tolerance,
		now.UTC(),
	)

	var entry model.NeighborhoodCacheEntry
	var countsJSON []byte
	err := row.Scan(&entry.ID, &entry.BucketLat, &entry.BucketLng, &entry.Locality, &entry.Region,
		&countsJSON, &entry.WalkabilityScore, &entry.Description, &entry.CachedAt, &entry.ExpiresAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find neighborhood")
	}
	if err := json.Unmarshal(countsJSON, &entry.CategoryCounts); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal category counts")
	}
	return &entry, nil
}

func (s *PostgresStore) DeleteExpiredNeighborhoods(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM neighborhood_cache WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired neighborhoods")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, entityID string, decision model.EnrichmentDecision) (*model.Task, error) {
	now := time.Now().UTC()
	task := &model.Task{
		ID:        uuid.New().String(),
		EntityID:  entityID,
		Decision:  decision,
		Status:    model.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (id, entity_id, decision, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		task.ID, task.EntityID, string(task.Decision), string(task.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert task")
	}
	return task, nil
}

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, taskID string, status model.TaskStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = $1, error = $2, updated_at = now() WHERE id = $3`,
		string(status), errMsg, taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update task %s", taskID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "task %s", taskID)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, entity_id, decision, status, error, created_at, updated_at FROM tasks WHERE id = $1`, taskID)

	var task model.Task
	err := row.Scan(&task.ID, &task.EntityID, &task.Decision, &task.Status, &task.Error, &task.CreatedAt, &task.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get task %s", taskID)
	}
	return &task, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, entityID string, limit int) ([]model.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity_id, decision, status, error, created_at, updated_at
		 FROM tasks WHERE entity_id = $1 ORDER BY created_at DESC LIMIT $2`,
		entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tasks")
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var task model.Task
		if scanErr := rows.Scan(&task.ID, &task.EntityID, &task.Decision, &task.Status, &task.Error, &task.CreatedAt, &task.UpdatedAt); scanErr != nil {
			return nil, eris.Wrap(scanErr, "postgres: scan task")
		}
		tasks = append(tasks, task)
	}
	return tasks, eris.Wrap(rows.Err(), "postgres: iterate tasks")
}

func scanPgEntity(row pgx.Row) (*model.Entity, error) {
	var entity model.Entity
	var verdictJSON []byte
	var evidenceJSON []byte
	var lastEnriched *time.Time

	err := row.Scan(
		&entity.ID, &entity.Name,
		&entity.Location.Street, &entity.Location.Locality, &entity.Location.Region, &entity.Location.PostalCode,
		&entity.Location.Latitude, &entity.Location.Longitude,
		&lastEnriched, &verdictJSON, &entity.Completeness, &evidenceJSON,
		&entity.CreatedAt, &entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entity.LastEnrichedAt = lastEnriched
	if len(verdictJSON) > 0 {
		var verdict model.Verdict
		if err := json.Unmarshal(verdictJSON, &verdict); err != nil {
			return nil, eris.Wrap(err, "unmarshal verdict")
		}
		entity.Verdict = &verdict
	}
	if err := json.Unmarshal(evidenceJSON, &entity.Evidence); err != nil {
		return nil, eris.Wrap(err, "unmarshal evidence")
	}
	return &entity, nil
}

func marshalNullableBytes(v *model.Verdict) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
