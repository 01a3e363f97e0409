// Package perplexity wraps the Perplexity chat-completions API as a
// search-augmented evidence provider returning structured, cited results.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.perplexity.ai"
	defaultModel   = "sonar-pro"
)

// ErrRateLimited reports a 429 from the API. Callers should skip further
// calls for the current run rather than retry.
var ErrRateLimited = eris.New("perplexity: rate limited")

// Client performs structured search queries against the Perplexity API.
type Client interface {
	StructuredQuery(ctx context.Context, prompt string) (*SearchResult, error)
}

// SearchResult is the structured output of one search-augmented query.
type SearchResult struct {
	// FoundInfo reports whether the provider located verifiable information,
	// as opposed to declining or answering generically.
	FoundInfo bool              `json:"found_info"`
	Fields    map[string]string `json:"fields"`
	Citations []string          `json:"citations"`
	LatencyMs int64             `json:"latency_ms"`
}

// Field returns a named field value, "" when absent.
func (r *SearchResult) Field(name string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID        string   `json:"id"`
	Citations []string `json:"citations"`
	Choices   []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `You are a research assistant. Answer with a single JSON object:
{"found_info": <bool>, "fields": {<requested field>: <string value>, ...}}
Set found_info to true only when you located verifiable information from real
sources. Omit fields you could not verify. No prose outside the JSON.`

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithTimeout bounds each query. Queries never block past this duration.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.timeout = d
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second pacing guard.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Perplexity API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		timeout: 60 * time.Second,
		limiter: rate.NewLimiter(2, 1),
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// StructuredQuery runs one search-augmented query and parses the structured
// result. The returned result is best-effort: an unparseable completion
// degrades to FoundInfo=false rather than an error.
func (c *httpClient) StructuredQuery(ctx context.Context, prompt string) (*SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "perplexity: wait for rate limit")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: read response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, eris.Wrapf(ErrRateLimited, "%s", string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("perplexity: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, eris.Wrap(err, "perplexity: unmarshal response")
	}

	result := parseCompletion(chatResp)
	result.LatencyMs = time.Since(start).Milliseconds()
	return result, nil
}

// parseCompletion extracts the structured JSON object from the completion
// text. Missing or malformed JSON degrades to an empty not-found result.
func parseCompletion(resp chatResponse) *SearchResult {
	result := &SearchResult{
		Fields:    map[string]string{},
		Citations: resp.Citations,
	}
	if len(resp.Choices) == 0 {
		return result
	}

	content := resp.Choices[0].Message.Content
	raw := extractJSONObject(content)
	if raw == "" {
		return result
	}

	var parsed struct {
		FoundInfo bool              `json:"found_info"`
		Fields    map[string]string `json:"fields"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return result
	}

	result.FoundInfo = parsed.FoundInfo
	if parsed.Fields != nil {
		result.Fields = parsed.Fields
	}
	return result
}

// extractJSONObject returns the first balanced top-level JSON object in s.
// Models sometimes wrap the object in markdown fences or prose.
func extractJSONObject(s string) string {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, ch := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
