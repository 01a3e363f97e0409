// Package synth turns an evidence bundle into a scored dossier verdict.
package synth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hoa-dossier/internal/model"
	"github.com/sells-group/hoa-dossier/pkg/anthropic"
)

// Synthesizer produces a verdict from gathered evidence.
type Synthesizer interface {
	Synthesize(ctx context.Context, name string, bundle model.EvidenceBundle) (*model.Verdict, error)
}

const systemPrompt = `You assess homeowners associations for prospective buyers.
Given evidence about one association, respond with a single JSON object:
{"overall_score": <0-10 number>,
 "sub_scores": {"records": n, "financial": n, "rules": n, "community": n},
 "flags": {"red": [..], "yellow": [..], "green": [..]},
 "summary": "<2-3 sentences>",
 "recommended_questions": [..], "recommended_documents": [..]}
Treat evidence marked "estimated" as unverified. No prose outside the JSON.`

// Adapter is the Anthropic-backed Synthesizer.
type Adapter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAdapter builds an Adapter for the given model.
func NewAdapter(client anthropic.Client, modelID string, maxTokens int64) *Adapter {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Adapter{client: client, model: modelID, maxTokens: maxTokens}
}

func (a *Adapter) Synthesize(ctx context.Context, name string, bundle model.EvidenceBundle) (*model.Verdict, error) {
	bundleJSON, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "synth: marshal bundle")
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    systemPrompt,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Association: %s\n\nEvidence:\n%s", name, bundleJSON),
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "synth: create message")
	}
	resp.Usage.Log(a.model, "synthesis")

	verdict, err := parseVerdict(resp.Text)
	if err != nil {
		return nil, eris.Wrap(err, "synth: parse verdict")
	}
	return verdict, nil
}

func parseVerdict(text string) (*model.Verdict, error) {
	raw := extractJSONObject(text)
	if raw == "" {
		return nil, eris.New("no JSON object in completion")
	}

	var verdict model.Verdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, eris.Wrap(err, "unmarshal verdict")
	}

	verdict.OverallScore = clampScore(verdict.OverallScore)
	verdict.SubScores.Records = clampScore(verdict.SubScores.Records)
	verdict.SubScores.Financial = clampScore(verdict.SubScores.Financial)
	verdict.SubScores.Rules = clampScore(verdict.SubScores.Rules)
	verdict.SubScores.Community = clampScore(verdict.SubScores.Community)

	if verdict.Summary == "" {
		return nil, eris.New("verdict missing summary")
	}
	return &verdict, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// extractJSONObject returns the first balanced top-level JSON object in text,
// tolerating surrounding prose and code fences.
func extractJSONObject(text string) string {
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
