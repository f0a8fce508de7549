package query

import (
	"sort"
	"strings"

	"github.com/papapumpkin/orrery/internal/graph"
)

// KeywordMatch is one keyword-query hit.
type KeywordMatch struct {
	Entity    graph.Entity `json:"entity"`
	Relevance float64      `json:"relevance"`
	Matches   []string     `json:"matches"`
}

// keywordQuery scans requirement and quality-attribute entities for each
// whitespace-separated token. An entity matched by several tokens keeps its
// highest relevance.
func (e *Engine) keywordQuery(text string) []any {
	best := make(map[string]KeywordMatch)
	for _, token := range strings.Fields(text) {
		for _, ent := range e.g.Entities() {
			if ent.Type != graph.TypeRequirement && ent.Type != graph.TypeQualityAttribute {
				continue
			}
			score := relevance(token, searchableText(ent))
			if score == 0 {
				continue
			}
			prev, seen := best[ent.ID]
			if seen && prev.Relevance >= score {
				continue
			}
			best[ent.ID] = KeywordMatch{
				Entity:    *ent,
				Relevance: score,
				Matches:   excerpts(token, ent),
			}
		}
	}

	matches := make([]KeywordMatch, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Relevance != matches[j].Relevance {
			return matches[i].Relevance > matches[j].Relevance
		}
		return matches[i].Entity.ID < matches[j].Entity.ID
	})

	results := make([]any, len(matches))
	for i, m := range matches {
		results[i] = m
	}
	return results
}

// searchableText joins the fields the keyword scan covers: title,
// description, and acceptance criteria.
func searchableText(e *graph.Entity) string {
	parts := []string{
		e.Str("title"),
		e.Str("description"),
		strings.Join(e.Strings("acceptance_criteria"), " "),
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// relevance is the token's occurrence count normalized by the searchable
// text's word count.
func relevance(token, searchable string) float64 {
	count := strings.Count(searchable, strings.ToLower(token))
	if count == 0 {
		return 0
	}
	words := len(strings.Fields(searchable))
	if words == 0 {
		words = 1
	}
	return float64(count) / float64(words)
}

// excerpts names the fields the token matched, with their full values.
func excerpts(token string, e *graph.Entity) []string {
	token = strings.ToLower(token)
	matches := []string{}
	if title := e.Str("title"); strings.Contains(strings.ToLower(title), token) {
		matches = append(matches, "title: "+title)
	}
	if desc := e.Str("description"); strings.Contains(strings.ToLower(desc), token) {
		matches = append(matches, "description: "+desc)
	}
	return matches
}
