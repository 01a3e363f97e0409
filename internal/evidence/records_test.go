package evidence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hoa-dossier/internal/model"
	"github.com/sells-group/hoa-dossier/pkg/perplexity"
)

// fakeProvider answers prompts by substring match, recording every prompt.
type fakeProvider struct {
	responses map[string]*perplexity.SearchResult // keyed by prompt substring
	err       error
	prompts   []string
}

func (f *fakeProvider) StructuredQuery(ctx context.Context, prompt string) (*perplexity.SearchResult, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	for key, result := range f.responses {
		if strings.Contains(prompt, key) {
			return result, nil
		}
	}
	return &perplexity.SearchResult{FoundInfo: false}, nil
}

func testContext() Context {
	return Context{
		Name: "Coral Gables Estates HOA",
		Location: model.Location{
			Street:     "123 Palm Ave",
			Locality:   "Coral Gables",
			Region:     "FL",
			PostalCode: "33134",
		},
	}
}

func newTestSearcher(t *testing.T, provider perplexity.Client) *Searcher {
	t.Helper()
	s, err := NewSearcher(provider)
	require.NoError(t, err)
	s.retry.MaxAttempts = 1
	return s
}

func TestRecordsPrimaryRegistryMatchStopsEarly(t *testing.T) {
	provider := &fakeProvider{responses: map[string]*perplexity.SearchResult{
		"governing the property": {
			FoundInfo: true,
			Fields: map[string]string{
				"management_company":   "Sunshine Property Mgmt",
				"phone":                "305-555-0100",
				"registry_status":      "ACTIVE",
				"registry_document_id": "N20000012345",
			},
			Citations: []string{"https://dos.fl.gov/sunbiz"},
		},
	}}
	s := newTestSearcher(t, provider)

	ev := s.Records(context.Background(), testContext())
	assert.True(t, ev.Found)
	assert.Equal(t, model.TierHigh, ev.Tier)
	assert.True(t, ev.RegistryMatched)
	assert.Equal(t, "Sunshine Property Mgmt", ev.ManagementCompany)
	assert.False(t, ev.AreaLevel)
	// Registry and areal stages never ran.
	assert.Len(t, provider.prompts, 1)
}

func TestRecordsRegistryStageRunsWithoutMatch(t *testing.T) {
	provider := &fakeProvider{responses: map[string]*perplexity.SearchResult{
		"governing the property": {
			FoundInfo: true,
			Fields:    map[string]string{"management_company": "Sunshine Property Mgmt"},
		},
		"corporate registry": {
			FoundInfo: true,
			Fields: map[string]string{
				"registry_status":      "ACTIVE",
				"registry_document_id": "N20000012345",
			},
		},
	}}
	s := newTestSearcher(t, provider)

	ev := s.Records(context.Background(), testContext())
	assert.Equal(t, model.TierHigh, ev.Tier)
	assert.True(t, ev.RegistryMatched)
	assert.Equal(t, "Sunshine Property Mgmt", ev.ManagementCompany)
	require.Len(t, provider.prompts, 2)
	// Registry prompt uses the normalized association name.
	assert.Contains(t, provider.prompts[1], "coral gables estates")
}

func TestRecordsArealFallbackYieldsLowTier(t *testing.T) {
	provider := &fakeProvider{responses: map[string]*perplexity.SearchResult{
		"commonly operate": {
			FoundInfo: true,
			Fields: map[string]string{
				"management_company": "Regional HOA Services",
				"subdivision_name":   "Palm Grove",
			},
		},
	}}
	s := newTestSearcher(t, provider)

	ev := s.Records(context.Background(), testContext())
	assert.Equal(t, model.TierLow, ev.Tier)
	assert.True(t, ev.Found)
	assert.True(t, ev.AreaLevel)
	assert.Equal(t, "Regional HOA Services", ev.ManagementCompany)
	// All three stages ran.
	assert.Len(t, provider.prompts, 3)
}

func TestRecordsMediumTierWithoutRegistry(t *testing.T) {
	provider := &fakeProvider{responses: map[string]*perplexity.SearchResult{
		"governing the property": {
			FoundInfo: true,
			Fields: map[string]string{
				"subdivision_name": "Coral Gables Estates",
				"website":          "https://cge-hoa.example.com",
			},
		},
	}}
	s := newTestSearcher(t, provider)

	ev := s.Records(context.Background(), testContext())
	assert.Equal(t, model.TierMedium, ev.Tier)
	assert.False(t, ev.RegistryMatched)
}

func TestRecordsProviderFailureDegrades(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider down")}
	s := newTestSearcher(t, provider)

	ev := s.Records(context.Background(), testContext())
	assert.False(t, ev.Found)
	assert.Equal(t, model.TierNone, ev.Tier)
}

func TestRecordsRateLimitedNotRetried(t *testing.T) {
	provider := &fakeProvider{err: perplexity.ErrRateLimited}
	s, err := NewSearcher(provider)
	require.NoError(t, err)

	ev := s.Records(context.Background(), testContext())
	assert.False(t, ev.Found)
	assert.Equal(t, model.TierNone, ev.Tier)
	// One call per stage with the default retry budget left untouched.
	assert.Len(t, provider.prompts, 3)
}

func TestRecordsTierMonotonicOnRegistryMatch(t *testing.T) {
	// Adding a registry match can only raise or hold the tier.
	cases := []struct {
		ev             model.RecordsEvidence
		entitySpecific bool
	}{
		{model.RecordsEvidence{}, false},
		{model.RecordsEvidence{ManagementCompany: "X"}, true},
		{model.RecordsEvidence{SubdivisionName: "Y", AreaLevel: true}, false},
	}
	for _, tc := range cases {
		before := recordsTier(tc.ev, tc.entitySpecific)
		withMatch := tc.ev
		withMatch.RegistryMatched = true
		after := recordsTier(withMatch, tc.entitySpecific)
		assert.True(t, after.AtLeast(before), "tier dropped from %s to %s", before, after)
	}
}

func TestNormalizeAssociationName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Coral Gables Estates HOA", "coral gables estates"},
		{"Palm Grove Homeowners Association, Inc.", "palm grove homeowners"},
		{"Café del Mar Condominium Assn", "cafe del mar condominium"},
		{"Oak & Pine Villas LLC", "oak and pine villas"},
		{"Bayview Terrace Corp.", "bayview terrace"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeAssociationName(tc.in), tc.in)
	}
}
