package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/hoa-dossier/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	street           TEXT NOT NULL DEFAULT '',
	locality         TEXT NOT NULL DEFAULT '',
	region           TEXT NOT NULL DEFAULT '',
	postal_code      TEXT NOT NULL DEFAULT '',
	latitude         REAL,
	longitude        REAL,
	last_enriched_at DATETIME,
	verdict          TEXT,
	completeness     INTEGER NOT NULL DEFAULT 0,
	evidence         TEXT NOT NULL DEFAULT '{}',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS neighborhood_cache (
	id               TEXT PRIMARY KEY,
	bucket_lat       REAL NOT NULL,
	bucket_lng       REAL NOT NULL,
	locality         TEXT NOT NULL DEFAULT '',
	region           TEXT NOT NULL DEFAULT '',
	category_counts  TEXT NOT NULL DEFAULT '{}',
	walkability      INTEGER NOT NULL DEFAULT 0,
	description      TEXT NOT NULL DEFAULT '',
	cached_at        DATETIME NOT NULL,
	expires_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	entity_id  TEXT NOT NULL REFERENCES entities(id),
	decision   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_entities_area ON entities(locality, region, postal_code);
CREATE INDEX IF NOT EXISTS idx_neighborhood_bucket ON neighborhood_cache(bucket_lat, bucket_lng);
CREATE INDEX IF NOT EXISTS idx_neighborhood_expires ON neighborhood_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_tasks_entity ON tasks(entity_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateEntity(ctx context.Context, entity *model.Entity) (*model.Entity, error) {
	created := *entity
	created.ID = uuid.New().String()
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	evidenceJSON, err := json.Marshal(created.Evidence)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal evidence")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (id, name, street, locality, region, postal_code, latitude, longitude, completeness, evidence, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.Name,
		created.Location.Street, created.Location.Locality, created.Location.Region, created.Location.PostalCode,
		created.Location.Latitude, created.Location.Longitude,
		created.Completeness, string(evidenceJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert entity")
	}
	return &created, nil
}

const entityColumns = `id, name, street, locality, region, postal_code, latitude, longitude, last_enriched_at, verdict, completeness, evidence, created_at, updated_at`

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get entity %s", id)
	}
	return entity, nil
}

func (s *SQLiteStore) UpdateEntityResult(ctx context.Context, id string, update EnrichmentUpdate) error {
	verdictJSON, err := marshalNullable(update.Verdict)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal verdict")
	}
	evidenceJSON, err := json.Marshal(update.Evidence)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET verdict = ?, completeness = ?, evidence = ?, last_enriched_at = ?, updated_at = ? WHERE id = ?`,
		verdictJSON, update.Completeness, string(evidenceJSON), update.EnrichedAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update entity %s", id)
	}
	return checkRowsAffected(res, "entity", id)
}

func (s *SQLiteStore) FindCandidates(ctx context.Context, locality, region, postalCode string) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE locality = ? AND region = ? AND postal_code = ?`,
		locality, region, postalCode,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find candidates")
	}
	defer rows.Close() //nolint:errcheck

	var entities []model.Entity
	for rows.Next() {
		entity, scanErr := scanEntity(rows)
		if scanErr != nil {
			return nil, eris.Wrap(scanErr, "sqlite: scan candidate")
		}
		entities = append(entities, *entity)
	}
	return entities, eris.Wrap(rows.Err(), "sqlite: iterate candidates")
}

func (s *SQLiteStore) InsertNeighborhood(ctx context.Context, entry *model.NeighborhoodCacheEntry) (*model.NeighborhoodCacheEntry, error) {
	created := *entry
	created.ID = uuid.New().String()

	countsJSON, err := json.Marshal(created.CategoryCounts)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal category counts")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO neighborhood_cache (id, bucket_lat, bucket_lng, locality, region, category_counts, walkability, description, cached_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.BucketLat, created.BucketLng, created.Locality, created.Region,
		string(countsJSON), created.WalkabilityScore, created.Description,
		created.CachedAt.UTC(), created.ExpiresAt.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert neighborhood")
	}
	return &created, nil
}

func (s *SQLiteStore) FindNeighborhood(ctx context.Context, bucketLat, bucketLng, tolerance float64, now time.Time) (*model.NeighborhoodCacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, bucket_lat, bucket_lng, locality, region, category_counts, walkability, description, cached_at, expires_at
		 FROM neighborhood_cache
		 WHERE bucket_lat > ? AND bucket_lat < ? AND bucket_lng > ? AND bucket_lng < ? AND expires_at > ?
		 ORDER BY cached_at DESC LIMIT 1`,
		bucketLat-tolerance, bucketLat+tolerance,
		bucketLng-tolerance, bucketLng+tolerance,
		now.UTC(),
	)

	var entry model.NeighborhoodCacheEntry
	var countsJSON string
	err := row.Scan(&entry.ID, &entry.BucketLat, &entry.BucketLng, &entry.Locality, &entry.Region,
		&countsJSON, &entry.WalkabilityScore, &entry.Description, &entry.CachedAt, &entry.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find neighborhood")
	}
	if err := json.Unmarshal([]byte(countsJSON), &entry.CategoryCounts); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal category counts")
	}
	return &entry, nil
}

func (s *SQLiteStore) DeleteExpiredNeighborhoods(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM neighborhood_cache WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired neighborhoods")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) CreateTask(ctx context.Context, entityID string, decision model.EnrichmentDecision) (*model.Task, error) {
	now := time.Now().UTC()
	task := &model.Task{
		ID:        uuid.New().String(),
		EntityID:  entityID,
		Decision:  decision,
		Status:    model.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, entity_id, decision, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID, task.EntityID, string(task.Decision), string(task.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert task")
	}
	return task, nil
}

func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, taskID string, status model.TaskStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update task %s", taskID)
	}
	return checkRowsAffected(res, "task", taskID)
}

func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, entity_id, decision, status, error, created_at, updated_at FROM tasks WHERE id = ?`, taskID)

	var task model.Task
	err := row.Scan(&task.ID, &task.EntityID, &task.Decision, &task.Status, &task.Error, &task.CreatedAt, &task.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get task %s", taskID)
	}
	return &task, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, entityID string, limit int) ([]model.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, decision, status, error, created_at, updated_at
		 FROM tasks WHERE entity_id = ? ORDER BY created_at DESC LIMIT ?`,
		entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tasks")
	}
	defer rows.Close() //nolint:errcheck

	var tasks []model.Task
	for rows.Next() {
		var task model.Task
		if scanErr := rows.Scan(&task.ID, &task.EntityID, &task.Decision, &task.Status, &task.Error, &task.CreatedAt, &task.UpdatedAt); scanErr != nil {
			return nil, eris.Wrap(scanErr, "sqlite: scan task")
		}
		tasks = append(tasks, task)
	}
	return tasks, eris.Wrap(rows.Err(), "sqlite: iterate tasks")
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*model.Entity, error) {
	var entity model.Entity
	var verdictJSON sql.NullString
	var evidenceJSON string
	var lastEnriched sql.NullTime

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

	if lastEnriched.Valid {
		t := lastEnriched.Time
		entity.LastEnrichedAt = &t
	}
	if verdictJSON.Valid && verdictJSON.String != "" {
		var verdict model.Verdict
		if err := json.Unmarshal([]byte(verdictJSON.String), &verdict); err != nil {
			return nil, eris.Wrap(err, "unmarshal verdict")
		}
		entity.Verdict = &verdict
	}
	if err := json.Unmarshal([]byte(evidenceJSON), &entity.Evidence); err != nil {
		return nil, eris.Wrap(err, "unmarshal evidence")
	}
	return &entity, nil
}

// marshalNullable marshals v to JSON, returning nil for a nil verdict so the
// column stores NULL.
func marshalNullable(v *model.Verdict) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", kind, id)
	}
	return nil
}
