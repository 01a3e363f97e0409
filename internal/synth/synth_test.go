package synth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hoa-dossier/internal/model"
	"github.com/sells-group/hoa-dossier/pkg/anthropic"
)

type fakeAnthropicClient struct {
	text string
	err  error
	last anthropic.MessageRequest
}

func (f *fakeAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{Text: f.text}, nil
}

const verdictJSON = `{
	"overall_score": 7.5,
	"sub_scores": {"records": 8, "financial": 6, "rules": 7, "community": 8},
	"flags": {"yellow": ["fees rising"], "green": ["active registry filing"]},
	"summary": "Well-managed association with moderate fee growth.",
	"recommended_questions": ["What drove the recent fee increase?"],
	"recommended_documents": ["reserve study"]
}`

func TestSynthesizeParsesVerdict(t *testing.T) {
	client := &fakeAnthropicClient{text: "Here is the assessment:\n" + verdictJSON}
	adapter := NewAdapter(client, "claude-sonnet-4-5-20250929", 4096)

	verdict, err := adapter.Synthesize(context.Background(), "Coral Gables Estates HOA", model.EvidenceBundle{})
	require.NoError(t, err)
	assert.InDelta(t, 7.5, verdict.OverallScore, 1e-9)
	assert.Equal(t, []string{"fees rising"}, verdict.Flags.Yellow)
	assert.False(t, verdict.Fallback)

	// The evidence bundle travels in the user message.
	require.Len(t, client.last.Messages, 1)
	assert.Contains(t, client.last.Messages[0].Content, "Coral Gables Estates HOA")
}

func TestSynthesizeClampsScores(t *testing.T) {
	client := &fakeAnthropicClient{text: `{"overall_score": 14, "sub_scores": {"records": -3}, "summary": "x"}`}
	adapter := NewAdapter(client, "m", 100)

	verdict, err := adapter.Synthesize(context.Background(), "X", model.EvidenceBundle{})
	require.NoError(t, err)
	assert.Equal(t, 10.0, verdict.OverallScore)
	assert.Equal(t, 0.0, verdict.SubScores.Records)
}

func TestSynthesizeProviderError(t *testing.T) {
	client := &fakeAnthropicClient{err: errors.New("overloaded")}
	adapter := NewAdapter(client, "m", 100)

	_, err := adapter.Synthesize(context.Background(), "X", model.EvidenceBundle{})
	assert.Error(t, err)
}

func TestSynthesizeRejectsNonJSON(t *testing.T) {
	client := &fakeAnthropicClient{text: "I cannot assess this association."}
	adapter := NewAdapter(client, "m", 100)

	_, err := adapter.Synthesize(context.Background(), "X", model.EvidenceBundle{})
	assert.Error(t, err)
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `sure: {"a":{"b":2}} done`, `{"a":{"b":2}}`},
		{"brace in string", `{"a":"}"}`, `{"a":"}"}`},
		{"none", "no json here", ""},
		{"unbalanced", `{"a":1`, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSONObject(tc.in))
		})
	}
}

func TestFallbackDeterministic(t *testing.T) {
	bundle := model.EvidenceBundle{
		Records: model.RecordsEvidence{
			EvidenceMeta:    model.EvidenceMeta{Found: true, Tier: model.TierHigh},
			RegistryMatched: true,
			RegistryStatus:  "ACTIVE",
		},
		Financial: model.FinancialEvidence{
			EvidenceMeta:       model.EvidenceMeta{Estimated: true},
			SpecialAssessments: "roof 2025",
		},
	}

	first := Fallback("X", bundle, 45)
	second := Fallback("X", bundle, 45)
	assert.Equal(t, first, second)
	assert.True(t, first.Fallback)
	assert.GreaterOrEqual(t, first.OverallScore, 0.0)
	assert.LessOrEqual(t, first.OverallScore, 10.0)
	assert.Contains(t, first.Flags.Green, "active corporate registry filing")
	assert.Contains(t, first.Flags.Yellow, "financial details unverified")
	assert.NotEmpty(t, first.Summary)
}

func TestFallbackFlagsInactiveRegistry(t *testing.T) {
	bundle := model.EvidenceBundle{
		Records: model.RecordsEvidence{
			EvidenceMeta:    model.EvidenceMeta{Found: true, Tier: model.TierHigh},
			RegistryMatched: true,
			RegistryStatus:  "INACT",
		},
	}
	verdict := Fallback("X", bundle, 20)
	require.Len(t, verdict.Flags.Red, 1)
	assert.Contains(t, verdict.Flags.Red[0], "INACT")
}

func TestFallbackScoreScalesWithTiers(t *testing.T) {
	low := Fallback("X", model.EvidenceBundle{}, 0)
	high := Fallback("X", model.EvidenceBundle{
		Records:   model.RecordsEvidence{EvidenceMeta: model.EvidenceMeta{Found: true, Tier: model.TierHigh}},
		Financial: model.FinancialEvidence{EvidenceMeta: model.EvidenceMeta{Found: true, Tier: model.TierMedium}},
		Rules:     model.RulesEvidence{EvidenceMeta: model.EvidenceMeta{Found: true, Tier: model.TierMedium}},
		Community: model.CommunityEvidence{EvidenceMeta: model.EvidenceMeta{Found: true, Tier: model.TierMedium}},
	}, 80)
	assert.Greater(t, high.OverallScore, low.OverallScore)
}
