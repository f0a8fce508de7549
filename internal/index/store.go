package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/papapumpkin/orrery/internal/corpus"
	"github.com/papapumpkin/orrery/internal/graph"
)

// ErrCorrupt is returned when a persisted index artifact is missing,
// unreadable, or malformed. Reads stay broken until the next successful
// index pass.
var ErrCorrupt = errors.New("index corrupt")

const (
	entitiesFile      = "entities.json"
	relationshipsFile = "relationships.json"
	metadataFile      = "metadata.json"
)

// DanglingReference is the metadata record of an edge whose target did not
// resolve.
type DanglingReference struct {
	Source string                 `json:"source"`
	Target string                 `json:"target"`
	Type   graph.RelationshipType `json:"type"`
}

// Metadata summarizes a persisted index. Type counts include zeros so
// consumers need not special-case absent kinds.
type Metadata struct {
	IndexedAt          string                         `json:"indexed_at"`
	TotalEntities      int                            `json:"total_entities"`
	TotalRelationships int                            `json:"total_relationships"`
	EntityTypes        map[graph.EntityType]int       `json:"entity_types"`
	RelationshipTypes  map[graph.RelationshipType]int `json:"relationship_types"`
	DanglingReferences []DanglingReference            `json:"dangling_references"`
	Warnings           []corpus.Warning               `json:"warnings"`
}

// Store persists index artifacts in a directory: entities.json,
// relationships.json, and metadata.json, each independently loadable.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Exists reports whether a complete persisted index is present. Metadata is
// written last, so its presence implies the other artifacts are complete.
func (s *Store) Exists() bool {
	_, err := os.Stat(filepath.Join(s.dir, metadataFile))
	return err == nil
}

// Write persists the indexing result, replacing any prior index. Each
// artifact is written to a temp file and renamed into place so a concurrent
// reader never observes a partial artifact; metadata goes last.
func (s *Store) Write(res *Result) (*Metadata, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("index: creating store dir: %w", err)
	}

	entities := res.Entities
	if entities == nil {
		entities = []graph.Entity{}
	}
	relationships := res.Relationships
	if relationships == nil {
		relationships = []graph.Relationship{}
	}

	if err := s.writeJSON(entitiesFile, entities); err != nil {
		return nil, err
	}
	if err := s.writeJSON(relationshipsFile, relationships); err != nil {
		return nil, err
	}

	meta := summarize(res, time.Now().UTC().Format(time.RFC3339))
	if err := s.writeJSON(metadataFile, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// Load reads the persisted artifacts back into a graph. Any missing,
// unreadable, or malformed artifact reports ErrCorrupt; re-indexing is the
// recovery.
func (s *Store) Load() (*graph.Graph, *Metadata, error) {
	var entities []graph.Entity
	if err := s.readJSON(entitiesFile, &entities); err != nil {
		return nil, nil, err
	}
	var relationships []graph.Relationship
	if err := s.readJSON(relationshipsFile, &relationships); err != nil {
		return nil, nil, err
	}
	var meta Metadata
	if err := s.readJSON(metadataFile, &meta); err != nil {
		return nil, nil, err
	}
	return graph.New(entities, relationships), &meta, nil
}

func summarize(res *Result, indexedAt string) *Metadata {
	meta := &Metadata{
		IndexedAt:          indexedAt,
		TotalEntities:      len(res.Entities),
		TotalRelationships: len(res.Relationships),
		EntityTypes:        make(map[graph.EntityType]int, len(graph.EntityTypes())),
		RelationshipTypes:  make(map[graph.RelationshipType]int, len(graph.RelationshipTypes())),
		DanglingReferences: []DanglingReference{},
		Warnings:           []corpus.Warning{},
	}
	for _, t := range graph.EntityTypes() {
		meta.EntityTypes[t] = 0
	}
	for _, e := range res.Entities {
		meta.EntityTypes[e.Type]++
	}
	for _, t := range graph.RelationshipTypes() {
		meta.RelationshipTypes[t] = 0
	}
	for _, r := range res.Relationships {
		meta.RelationshipTypes[r.Type]++
	}
	for _, r := range res.Dangling {
		meta.DanglingReferences = append(meta.DanglingReferences, DanglingReference{
			Source: r.Source,
			Target: r.Target,
			Type:   r.Type,
		})
	}
	meta.Warnings = append(meta.Warnings, res.Warnings...)
	return meta
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("index: encoding %s: %w", name, err)
	}
	data = append(data, '\n')

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("index: writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("index: replacing %s: %w", name, err)
	}
	return nil
}

func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("index: %w: reading %s: %v", ErrCorrupt, name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("index: %w: parsing %s: %v", ErrCorrupt, name, err)
	}
	return nil
}
