// Package index converts the authoritative corpus into the persisted
// entity-relationship graph: one entity per document record, one
// relationship per listed cross-reference, plus the summary metadata other
// components read.
package index

import (
	"github.com/papapumpkin/orrery/internal/corpus"
	"github.com/papapumpkin/orrery/internal/graph"
)

// Result holds one indexing pass over a corpus snapshot.
type Result struct {
	Entities      []graph.Entity
	Relationships []graph.Relationship
	// Dangling lists relationships whose target is no known entity. They
	// stay in Relationships too; dangling is recorded, never dropped.
	Dangling []graph.Relationship
	Warnings []corpus.Warning
}

// Graph returns the built entity-relationship container.
func (r *Result) Graph() *graph.Graph {
	return graph.New(r.Entities, r.Relationships)
}

// Build converts a loaded corpus snapshot into entities and relationships.
// Deterministic: kinds are emitted in a fixed order (requirements, quality
// attributes, units of work, contracts, extensions), records within a kind
// ascending by id, and identical document content produces identical
// output, hashes included.
func Build(snap *corpus.Snapshot) *Result {
	res := &Result{Warnings: snap.Warnings}

	emit := func(docs []corpus.Document, typ graph.EntityType) {
		for _, doc := range docs {
			res.Entities = append(res.Entities, graph.Entity{
				ID:         doc.ID,
				Type:       typ,
				Attributes: doc.Body,
				Meta: graph.Meta{
					Source: doc.Source,
					Hash:   Fingerprint(doc.Body),
				},
			})
		}
	}
	emit(snap.Requirements, graph.TypeRequirement)
	emit(snap.QualityAttributes, graph.TypeQualityAttribute)
	emit(snap.UnitsOfWork, graph.TypeUnitOfWork)
	emit(snap.Contracts, graph.TypeContract)
	emit(snap.Extensions, graph.TypeExtension)

	// Units of work reference requirements and other units; edges are
	// emitted whether or not the target exists.
	for _, doc := range snap.UnitsOfWork {
		for _, ref := range strList(doc.Body, "implements") {
			res.Relationships = append(res.Relationships, edge(doc, ref, graph.RelImplements))
		}
		for _, ref := range strList(doc.Body, "dependencies") {
			res.Relationships = append(res.Relationships, edge(doc, ref, graph.RelDependsOn))
		}
	}

	// A contract applying to a unit of work validates it.
	for _, doc := range snap.Contracts {
		appliesTo, _ := doc.Body["applies_to"].(map[string]any)
		entityType, _ := appliesTo["entity_type"].(string)
		entityName, _ := appliesTo["entity_name"].(string)
		if entityType == "uow" && entityName != "" {
			res.Relationships = append(res.Relationships, edge(doc, entityName, graph.RelValidates))
		}
	}

	known := make(map[string]bool, len(res.Entities))
	for _, e := range res.Entities {
		known[e.ID] = true
	}
	for _, r := range res.Relationships {
		if !known[r.Target] {
			res.Dangling = append(res.Dangling, r)
		}
	}

	return res
}

func edge(doc corpus.Document, target string, typ graph.RelationshipType) graph.Relationship {
	return graph.Relationship{
		Source:   doc.ID,
		Target:   target,
		Type:     typ,
		Metadata: map[string]string{"source_file": doc.Source},
	}
}

func strList(body map[string]any, key string) []string {
	raw, ok := body[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
