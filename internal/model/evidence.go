package model

// ConfidenceTier classifies how well-verified a category's evidence is.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
	TierNone   ConfidenceTier = "none"
)

// rank orders tiers for monotonicity checks (none < low < medium < high).
func (t ConfidenceTier) rank() int {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether t is the same tier as other or stricter.
func (t ConfidenceTier) AtLeast(other ConfidenceTier) bool {
	return t.rank() >= other.rank()
}

// EvidenceMeta carries the fields common to every evidence category.
type EvidenceMeta struct {
	Found     bool           `json:"found"`
	Tier      ConfidenceTier `json:"tier"`
	Citations []string       `json:"citations,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`

	// Estimated marks values substituted from typical defaults when the
	// provider could not verify information. Estimated evidence is never
	// presented as verified fact.
	Estimated bool `json:"estimated,omitempty"`
}

// RecordsEvidence holds public-record and registry findings for the HOA.
type RecordsEvidence struct {
	EvidenceMeta

	SubdivisionName   string `json:"subdivision_name,omitempty"`
	ManagementCompany string `json:"management_company,omitempty"`
	Phone             string `json:"phone,omitempty"`
	Website           string `json:"website,omitempty"`

	RegistryMatched    bool   `json:"registry_matched"`
	RegistryStatus     string `json:"registry_status,omitempty"`
	RegistryDocumentID string `json:"registry_document_id,omitempty"`

	// AreaLevel marks evidence produced by the areal fallback search,
	// describing the postal area rather than this specific association.
	AreaLevel bool `json:"area_level,omitempty"`
}

// FinancialEvidence holds fee and assessment findings.
type FinancialEvidence struct {
	EvidenceMeta

	MonthlyFeeUSD       float64 `json:"monthly_fee_usd,omitempty"`
	MonthlyFeeVerified  bool    `json:"monthly_fee_verified"`
	SpecialAssessments  string  `json:"special_assessments,omitempty"`
	AssessmentsVerified bool    `json:"assessments_verified"`
	ReserveFundingNote  string  `json:"reserve_funding_note,omitempty"`
	FeeTrendNote        string  `json:"fee_trend_note,omitempty"`
}

// RulesEvidence holds governance and restriction findings.
type RulesEvidence struct {
	EvidenceMeta

	DocumentsOnline        bool   `json:"documents_online"`
	DocumentsURL           string `json:"documents_url,omitempty"`
	RentalRestriction      string `json:"rental_restriction,omitempty"` // "none" is an explicit, known value
	RentalRestrictionKnown bool   `json:"rental_restriction_known"`
	PetPolicy              string `json:"pet_policy,omitempty"`
	ApprovalRequired       string `json:"approval_required,omitempty"`
}

// CommunityEvidence holds review-sentiment findings.
type CommunityEvidence struct {
	EvidenceMeta

	ReviewCount     int     `json:"review_count,omitempty"`
	AverageRating   float64 `json:"average_rating,omitempty"`
	BureauScore     string  `json:"bureau_score,omitempty"` // third-party rating bureau grade
	SentimentNote   string  `json:"sentiment_note,omitempty"`
	CommonPraise    string  `json:"common_praise,omitempty"`
	CommonComplaint string  `json:"common_complaint,omitempty"`
}

// NeighborhoodContext holds area-level context from the business directory.
type NeighborhoodContext struct {
	CategoryCounts   map[string]int `json:"category_counts,omitempty"`
	WalkabilityScore int            `json:"walkability_score"`
	Description      string         `json:"description,omitempty"`
	FromCache        bool           `json:"from_cache,omitempty"`
}

// EvidenceBundle is the union of all category results for one entity.
type EvidenceBundle struct {
	Records      RecordsEvidence     `json:"records"`
	Financial    FinancialEvidence   `json:"financial"`
	Rules        RulesEvidence       `json:"rules"`
	Community    CommunityEvidence   `json:"community"`
	Neighborhood NeighborhoodContext `json:"neighborhood"`
}
