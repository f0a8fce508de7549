// Package query answers natural-language-ish questions about the indexed
// requirements graph. A query is classified into one of six kinds, either
// explicitly or by keyword detection, and dispatched to the matching
// processor. Results are returned in a uniform envelope ready for JSON
// output.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/papapumpkin/orrery/internal/graph"
	"github.com/papapumpkin/orrery/internal/impact"
	"github.com/papapumpkin/orrery/internal/knowledge"
)

// Kind selects a query processor.
type Kind string

const (
	KindAuto         Kind = "auto"
	KindKeyword      Kind = "keyword"
	KindRelationship Kind = "relationship"
	KindPattern      Kind = "pattern"
	KindImpact       Kind = "impact"
	KindCoverage     Kind = "coverage"
	KindGap          Kind = "gap"
)

var (
	// ErrEmptyQuery is returned for blank query text.
	ErrEmptyQuery = errors.New("empty query")
	// ErrUnknownKind is returned for an unrecognized query kind.
	ErrUnknownKind = errors.New("unknown query kind")
)

// ParseKind validates a query kind string. Unrecognized values are an
// error, never silently coerced.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAuto, KindKeyword, KindRelationship, KindPattern, KindImpact, KindCoverage, KindGap:
		return Kind(s), nil
	}
	return "", fmt.Errorf("query: %w: %q", ErrUnknownKind, s)
}

// detectionRules is ordered; the first rule with a term contained in the
// lowercased query wins. Containment is substring containment, so the
// literal word "coverage" classifies as relationship via "cover".
var detectionRules = []struct {
	kind  Kind
	terms []string
}{
	{KindImpact, []string{"impact", "affect", "change"}},
	{KindRelationship, []string{"implement", "cover", "relate"}},
	{KindPattern, []string{"pattern", "frequent", "common"}},
	{KindGap, []string{"gap", "missing", "without"}},
	{KindCoverage, []string{"coverage", "complete"}},
}

// Detect classifies query text, falling back to keyword search.
func Detect(text string) Kind {
	lower := strings.ToLower(text)
	for _, rule := range detectionRules {
		for _, term := range rule.terms {
			if strings.Contains(lower, term) {
				return rule.kind
			}
		}
	}
	return KindKeyword
}

// PatternSource yields stored patterns for a category, ordered by
// descending frequency. An empty category means all categories.
type PatternSource interface {
	Patterns(ctx context.Context, category string) ([]knowledge.Pattern, error)
}

// FeatureChecker reports whether a unit of work has a BDD feature artifact.
type FeatureChecker interface {
	Has(uowID string) bool
}

// Engine executes queries over a graph snapshot. The pattern source and
// feature checker may be nil, in which case pattern queries return nothing
// and every unit of work counts as uncovered.
type Engine struct {
	g        *graph.Graph
	analyzer *impact.Analyzer
	patterns PatternSource
	features FeatureChecker
}

// New returns an Engine over g.
func New(g *graph.Graph, patterns PatternSource, features FeatureChecker) *Engine {
	return &Engine{
		g:        g,
		analyzer: impact.New(g),
		patterns: patterns,
		features: features,
	}
}

// Metadata describes how a query was executed.
type Metadata struct {
	QueryType    Kind `json:"query_type"`
	ResultsCount int  `json:"results_count"`
}

// Result is the uniform query envelope. Results holds kind-specific entries:
// KeywordMatch, RelationshipMatch, PatternMatch, ImpactResult, or
// CoverageResult.
type Result struct {
	Query    string   `json:"query"`
	Results  []any    `json:"results"`
	Metadata Metadata `json:"metadata"`
}

// Query executes text as the given kind; KindAuto detects the kind from the
// text first. Blank text is an error. Ids that resolve to nothing yield
// empty results, not errors.
func (e *Engine) Query(ctx context.Context, text string, kind Kind) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("query: %w", ErrEmptyQuery)
	}
	if kind == KindAuto || kind == "" {
		kind = Detect(text)
	}

	var (
		results []any
		err     error
	)
	switch kind {
	case KindKeyword:
		results = e.keywordQuery(text)
	case KindRelationship:
		results = e.relationshipQuery(text)
	case KindPattern:
		results, err = e.patternQuery(ctx, text)
	case KindImpact:
		results, err = e.impactQuery(text)
	case KindCoverage, KindGap:
		results = []any{CoverageResult{CoverageAnalysis: e.CoverageGaps()}}
	default:
		return nil, fmt.Errorf("query: %w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		Query:   text,
		Results: results,
		Metadata: Metadata{
			QueryType:    kind,
			ResultsCount: len(results),
		},
	}, nil
}
