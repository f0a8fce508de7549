package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/papapumpkin/orrery/internal/knowledge"
)

// patternCategories maps query keywords to stored pattern categories, in
// match-priority order.
var patternCategories = []struct {
	keyword  string
	category string
}{
	{"error", "error_handling"},
	{"validation", "data_validation"},
	{"config", "configuration"},
	{"test", "testing"},
	{"performance", "performance"},
}

// PatternMatch is one learned pattern inside a query result; relevance is
// the pattern's observation frequency.
type PatternMatch struct {
	Pattern   knowledge.Pattern `json:"pattern"`
	Relevance int               `json:"relevance"`
}

// patternQuery maps the first recognized keyword in the text to a pattern
// category and returns the stored patterns for it. With no recognized
// keyword, all categories are returned.
func (e *Engine) patternQuery(ctx context.Context, text string) ([]any, error) {
	if e.patterns == nil {
		return []any{}, nil
	}

	category := ""
	lower := strings.ToLower(text)
	for _, pc := range patternCategories {
		if strings.Contains(lower, pc.keyword) {
			category = pc.category
			break
		}
	}

	patterns, err := e.patterns.Patterns(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("query: loading patterns: %w", err)
	}
	results := make([]any, 0, len(patterns))
	for _, p := range patterns {
		results = append(results, PatternMatch{Pattern: p, Relevance: p.Frequency})
	}
	return results, nil
}
