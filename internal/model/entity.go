package model

import "time"

// EnrichmentDecision classifies what the orchestrator should do with an
// entity before a pipeline run starts.
type EnrichmentDecision string

const (
	DecisionSkip           EnrichmentDecision = "skip"
	DecisionReanalyzeStale EnrichmentDecision = "reanalyze_stale"
	DecisionReanalyzeLowQ  EnrichmentDecision = "reanalyze_low_quality"
	DecisionCreateNew      EnrichmentDecision = "create_new"
)

// Reanalyze reports whether the decision triggers a pipeline run.
func (d EnrichmentDecision) Reanalyze() bool {
	return d != DecisionSkip
}

// Location is the canonical resolved location for an entity.
// Latitude and Longitude are either both set or both nil.
type Location struct {
	Street     string   `json:"street,omitempty"`
	Locality   string   `json:"locality"`
	Region     string   `json:"region"`
	PostalCode string   `json:"postal_code"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Formatted  string   `json:"formatted,omitempty"`
}

// HasCoordinates reports whether both coordinates are present.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Entity is the HOA property record being enriched.
type Entity struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Location Location `json:"location"`

	// LastEnrichedAt is nil until the first pipeline run completes.
	LastEnrichedAt *time.Time `json:"last_enriched_at,omitempty"`

	// Verdict is nil until enrichment has completed at least once. Its
	// presence is the signal that the entity has been analyzed.
	Verdict *Verdict `json:"verdict,omitempty"`

	// Completeness is the 0-100 verified-field score from the last run.
	Completeness int `json:"completeness"`

	Evidence EvidenceBundle `json:"evidence"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VerdictPresent reports whether the entity carries a completed verdict.
func (e *Entity) VerdictPresent() bool {
	return e.Verdict != nil
}

// Verdict is the scored narrative output of the synthesis adapter.
type Verdict struct {
	OverallScore         float64   `json:"overall_score"` // 0-10
	SubScores            SubScores `json:"sub_scores"`
	Flags                Flags     `json:"flags"`
	Summary              string    `json:"summary"`
	RecommendedQuestions []string  `json:"recommended_questions,omitempty"`
	RecommendedDocuments []string  `json:"recommended_documents,omitempty"`

	// Fallback marks verdicts produced by the deterministic rule-based
	// substitute when the synthesis provider failed.
	Fallback bool `json:"fallback,omitempty"`
}

// SubScores breaks the overall verdict down per evidence category.
type SubScores struct {
	Records   float64 `json:"records"`
	Financial float64 `json:"financial"`
	Rules     float64 `json:"rules"`
	Community float64 `json:"community"`
}

// Flags groups synthesized findings by severity.
type Flags struct {
	Red    []string `json:"red,omitempty"`
	Yellow []string `json:"yellow,omitempty"`
	Green  []string `json:"green,omitempty"`
}

// TaskStatus tracks a background enrichment run.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is a tracked background enrichment run for an entity.
type Task struct {
	ID        string             `json:"id"`
	EntityID  string             `json:"entity_id"`
	Decision  EnrichmentDecision `json:"decision"`
	Status    TaskStatus         `json:"status"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NeighborhoodCacheEntry is a tolerance-bucketed cached neighborhood lookup.
type NeighborhoodCacheEntry struct {
	ID               string         `json:"id"`
	BucketLat        float64        `json:"bucket_lat"`
	BucketLng        float64        `json:"bucket_lng"`
	Locality         string         `json:"locality,omitempty"`
	Region           string         `json:"region,omitempty"`
	CategoryCounts   map[string]int `json:"category_counts"`
	WalkabilityScore int            `json:"walkability_score"`
	Description      string         `json:"description"`
	CachedAt         time.Time      `json:"cached_at"`
	ExpiresAt        time.Time      `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL at the given time.
func (e *NeighborhoodCacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
