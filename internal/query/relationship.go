package query

import (
	"errors"
	"regexp"

	"github.com/papapumpkin/orrery/internal/graph"
	"github.com/papapumpkin/orrery/internal/impact"
)

// entityIDPattern matches entity-id-shaped tokens: a short letter prefix, a
// hyphen, and at least three digits, any case.
var entityIDPattern = regexp.MustCompile(`(?i)\b[A-Za-z]{2,4}-\d{3,}\b`)

// extractEntityIDs returns id-shaped tokens in order of appearance, text
// preserved as written.
func extractEntityIDs(text string) []string {
	return entityIDPattern.FindAllString(text, -1)
}

// RelationshipMatch pairs an entity with the relationship that connects it
// to the queried id.
type RelationshipMatch struct {
	Entity       graph.Entity       `json:"entity"`
	Relationship graph.Relationship `json:"relationship"`
}

// relationshipQuery extracts entity ids from the text and returns, for
// each, the entities reaching it over a single incoming implements or
// validates edge: implementing units of work and validating contracts.
func (e *Engine) relationshipQuery(text string) []any {
	results := []any{}
	for _, id := range extractEntityIDs(text) {
		for _, rel := range e.g.Incoming(id, graph.RelImplements, graph.RelValidates) {
			src, ok := e.g.Entity(rel.Source)
			if !ok {
				continue
			}
			results = append(results, RelationshipMatch{Entity: *src, Relationship: rel})
		}
	}
	return results
}

// ImpactResult wraps one entity's impact report inside a query result.
type ImpactResult struct {
	EntityID       string         `json:"entity_id"`
	ImpactAnalysis *impact.Report `json:"impact_analysis"`
}

// impactQuery extracts entity ids from the text and runs a modification
// impact analysis for each. Ids not in the index are skipped.
func (e *Engine) impactQuery(text string) ([]any, error) {
	results := []any{}
	for _, id := range extractEntityIDs(text) {
		report, err := e.analyzer.AnalyzeChangeImpact(id, impact.ChangeModification)
		if err != nil {
			if errors.Is(err, graph.ErrNotFound) {
				continue
			}
			return nil, err
		}
		results = append(results, ImpactResult{EntityID: id, ImpactAnalysis: report})
	}
	return results, nil
}
