// Package evidence gathers per-category findings about a homeowners
// association from search-augmented providers. A provider failure degrades
// its category rather than failing the caller.
package evidence

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hoa-dossier/internal/model"
	"github.com/sells-group/hoa-dossier/internal/resilience"
	"github.com/sells-group/hoa-dossier/pkg/perplexity"
)

// Context identifies the entity a search is about.
type Context struct {
	Name     string
	Location model.Location
}

// Address renders the context as a single-line address for prompts.
func (c Context) Address() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{c.Location.Street, c.Location.Locality, c.Location.Region, c.Location.PostalCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Searcher runs the category searches against a search provider.
type Searcher struct {
	provider perplexity.Client
	queries  queryTemplates
	retry    resilience.Policy
}

// NewSearcher builds a Searcher around the given provider.
func NewSearcher(provider perplexity.Client) (*Searcher, error) {
	queries, err := loadQueries()
	if err != nil {
		return nil, eris.Wrap(err, "evidence: load query templates")
	}
	retry := resilience.DefaultPolicy()
	// A throttled provider stays throttled for the rest of the run; retrying
	// burns the budget of the remaining categories.
	retry.ShouldRetry = func(err error) bool {
		return !eris.Is(err, perplexity.ErrRateLimited) && resilience.IsTransient(err)
	}
	return &Searcher{
		provider: provider,
		queries:  queries,
		retry:    retry,
	}, nil
}

// query runs one provider call with retry on transient failures.
func (s *Searcher) query(ctx context.Context, prompt string) (*perplexity.SearchResult, error) {
	return resilience.RetryVal(ctx, s.retry, func(ctx context.Context) (*perplexity.SearchResult, error) {
		return s.provider.StructuredQuery(ctx, prompt)
	})
}
