// Package graph defines the entity-relationship model for a requirements
// corpus and an in-memory container with the lookup and traversal primitives
// the query and impact engines build on. A Graph is an immutable snapshot:
// it is constructed once from indexed data and only read afterwards, so
// concurrent readers need no locking.
package graph

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation references an unknown entity ID.
var ErrNotFound = errors.New("entity not found")

// EntityType classifies a node in the requirements graph.
type EntityType string

// Authoritative entity types, produced by the indexer from corpus documents.
const (
	TypeRequirement      EntityType = "requirement"
	TypeQualityAttribute EntityType = "quality_attribute"
	TypeUnitOfWork       EntityType = "unit_of_work"
	TypeContract         EntityType = "contract"
	TypeExtension        EntityType = "extension"
)

// Derived-knowledge entity types. These never come from the corpus; learning
// tooling places them in the index, and the sync engine recognizes them as
// derived-side knowledge rather than conflicts.
const (
	TypePattern  EntityType = "pattern"
	TypeDecision EntityType = "decision"
	TypeLesson   EntityType = "lesson"
)

// Derived reports whether the type is accumulated knowledge rather than an
// authoritative corpus record.
func (t EntityType) Derived() bool {
	switch t {
	case TypePattern, TypeDecision, TypeLesson:
		return true
	}
	return false
}

// EntityTypes returns every known entity type in summary order:
// authoritative types first, then derived-knowledge types.
func EntityTypes() []EntityType {
	return []EntityType{
		TypeRequirement,
		TypeQualityAttribute,
		TypeUnitOfWork,
		TypeContract,
		TypeExtension,
		TypePattern,
		TypeDecision,
		TypeLesson,
	}
}

// RelationshipType classifies a directed edge between two entities.
type RelationshipType string

const (
	RelImplements    RelationshipType = "implements"
	RelDependsOn     RelationshipType = "depends_on"
	RelExtends       RelationshipType = "extends"
	RelValidates     RelationshipType = "validates"
	RelCovers        RelationshipType = "covers"
	RelConflictsWith RelationshipType = "conflicts_with"
)

// RelationshipTypes returns every known relationship type in summary order.
func RelationshipTypes() []RelationshipType {
	return []RelationshipType{
		RelImplements,
		RelDependsOn,
		RelExtends,
		RelValidates,
		RelCovers,
		RelConflictsWith,
	}
}

// Meta carries per-entity bookkeeping: where the record came from and the
// content hash used for change detection.
type Meta struct {
	Source string `json:"source"`
	Hash   string `json:"hash"`
}

// Entity is a typed, uniquely identified node. Attributes hold the full
// document record as loaded from the corpus; they are replaced wholesale on
// re-index, never merged field-by-field.
type Entity struct {
	ID         string         `json:"id"`
	Type       EntityType     `json:"type"`
	Attributes map[string]any `json:"attributes"`
	Meta       Meta           `json:"metadata"`
}

// Str returns the named attribute as a string, or empty if absent or not a
// string.
func (e *Entity) Str(key string) string {
	s, _ := e.Attributes[key].(string)
	return s
}

// Strings returns the named attribute as a string list. List entries that are
// not strings are skipped.
func (e *Entity) Strings(key string) []string {
	raw, ok := e.Attributes[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// DisplayName returns the entity's title, falling back to its name and
// finally its ID.
func (e *Entity) DisplayName() string {
	if t := e.Str("title"); t != "" {
		return t
	}
	if n := e.Str("name"); n != "" {
		return n
	}
	return e.ID
}

// Relationship is a directed, typed edge. Duplicate (source, target, type)
// triples are allowed and treated as inert by consumers.
type Relationship struct {
	Source   string            `json:"source"`
	Target   string            `json:"target"`
	Type     RelationshipType  `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Other returns the endpoint of r that is not id. Given the source it
// returns the target and vice versa.
func (r Relationship) Other(id string) string {
	if r.Source == id {
		return r.Target
	}
	return r.Source
}

// Graph is an in-memory snapshot of entities and relationships. Entity and
// relationship order is preserved from construction, which keeps every
// traversal deterministic for a given input.
type Graph struct {
	entities      []*Entity
	relationships []Relationship
	byID          map[string]*Entity
	// touching maps an entity ID to the indexes of relationships that name
	// it as either endpoint, in input order.
	touching map[string][]int
}

// New builds a Graph from the given entities and relationships. Input slices
// are copied; the caller may reuse them.
func New(entities []Entity, relationships []Relationship) *Graph {
	g := &Graph{
		entities:      make([]*Entity, 0, len(entities)),
		relationships: make([]Relationship, len(relationships)),
		byID:          make(map[string]*Entity, len(entities)),
		touching:      make(map[string][]int),
	}
	for i := range entities {
		e := entities[i]
		g.entities = append(g.entities, &e)
		g.byID[e.ID] = &e
	}
	copy(g.relationships, relationships)
	for i, r := range g.relationships {
		g.touching[r.Source] = append(g.touching[r.Source], i)
		if r.Target != r.Source {
			g.touching[r.Target] = append(g.touching[r.Target], i)
		}
	}
	return g
}

// Entity returns the entity with the given ID, or false if unknown.
func (g *Graph) Entity(id string) (*Entity, bool) {
	e, ok := g.byID[id]
	return e, ok
}

// Require returns the entity with the given ID or ErrNotFound.
func (g *Graph) Require(id string) (*Entity, error) {
	e, ok := g.byID[id]
	if !ok {
		return nil, fmt.Errorf("graph: %w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Entities returns all entities in input order.
func (g *Graph) Entities() []*Entity {
	return g.entities
}

// Relationships returns all relationships in input order.
func (g *Graph) Relationships() []Relationship {
	return g.relationships
}

// Len returns the number of entities.
func (g *Graph) Len() int {
	return len(g.entities)
}

// Touching returns every relationship that names id as either endpoint, in
// input order.
func (g *Graph) Touching(id string) []Relationship {
	idxs := g.touching[id]
	out := make([]Relationship, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, g.relationships[i])
	}
	return out
}

// Incoming returns relationships targeting id. With types given, only those
// relationship types are included.
func (g *Graph) Incoming(id string, types ...RelationshipType) []Relationship {
	var out []Relationship
	for _, i := range g.touching[id] {
		r := g.relationships[i]
		if r.Target == id && matchType(r.Type, types) {
			out = append(out, r)
		}
	}
	return out
}

// Outgoing returns relationships sourced at id. With types given, only those
// relationship types are included.
func (g *Graph) Outgoing(id string, types ...RelationshipType) []Relationship {
	var out []Relationship
	for _, i := range g.touching[id] {
		r := g.relationships[i]
		if r.Source == id && matchType(r.Type, types) {
			out = append(out, r)
		}
	}
	return out
}

// ShortestPath returns the shortest undirected path from src to dst as a
// node sequence including both endpoints, or nil if dst is unreachable.
// Edge direction is ignored: impact flows both ways along a relationship.
func (g *Graph) ShortestPath(src, dst string) []string {
	if src == dst {
		return []string{src}
	}
	visited := map[string]bool{src: true}
	queue := [][]string{{src}}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		current := path[len(path)-1]
		for _, i := range g.touching[current] {
			next := g.relationships[i].Other(current)
			if next == dst {
				return append(path, next)
			}
			if !visited[next] {
				visited[next] = true
				extended := make([]string, len(path), len(path)+1)
				copy(extended, path)
				queue = append(queue, append(extended, next))
			}
		}
	}
	return nil
}

// Dangling returns every relationship whose target does not resolve to a
// known entity, in input order.
func (g *Graph) Dangling() []Relationship {
	var out []Relationship
	for _, r := range g.relationships {
		if _, ok := g.byID[r.Target]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func matchType(rt RelationshipType, types []RelationshipType) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if rt == t {
			return true
		}
	}
	return false
}
