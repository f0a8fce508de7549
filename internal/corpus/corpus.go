// Package corpus reads and writes the authoritative YAML store: the
// framework requirements document, per-file contracts, categorized
// extensions, and promoted knowledge records.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Well-known paths inside a corpus directory.
const (
	FrameworkFile = "framework-requirements.yaml"
	ContractsDir  = "contracts"
	ExtensionsDir = "extensions"
	KnowledgeDir  = "knowledge"
)

// Warning kinds recorded while loading.
const (
	WarnParseError    = "parse_error"
	WarnSkippedRecord = "skipped_record"
)

// Document is one parsed corpus record: its derived id, its provenance
// relative to the corpus root, and the raw body as loaded. Bodies are kept
// whole; consumers decide which fields matter.
type Document struct {
	ID     string
	Source string
	Body   map[string]any
}

// Warning records a corpus problem that did not stop loading. Warnings flow
// through the indexer into the persisted index metadata.
type Warning struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Snapshot is the loaded authoritative store. Document groups are sorted by
// id so downstream processing is deterministic.
type Snapshot struct {
	Requirements      []Document
	QualityAttributes []Document
	UnitsOfWork       []Document
	Contracts         []Document
	Extensions        []Document
	Warnings          []Warning
}

func (s *Snapshot) warn(kind, id, reason string) {
	s.Warnings = append(s.Warnings, Warning{Kind: kind, ID: id, Reason: reason})
}

// Loader reads corpus documents from a directory tree.
type Loader struct {
	dir string
}

// NewLoader returns a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Dir returns the corpus root.
func (l *Loader) Dir() string {
	return l.dir
}

// Load reads the full corpus. Missing files and directories yield empty
// groups; unparsable files and malformed records are skipped with recorded
// warnings. Only an unreadable corpus root is an error.
func (l *Loader) Load() (*Snapshot, error) {
	if _, err := os.Stat(l.dir); err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}

	snap := &Snapshot{}
	l.loadFramework(snap)
	l.loadContracts(snap)
	l.loadExtensions(snap)
	return snap, nil
}

func (l *Loader) loadFramework(snap *Snapshot) {
	data, err := os.ReadFile(filepath.Join(l.dir, FrameworkFile))
	if err != nil {
		if !os.IsNotExist(err) {
			snap.warn(WarnParseError, FrameworkFile, err.Error())
		}
		return
	}

	var doc struct {
		FunctionalRequirements    map[string]any `yaml:"functional_requirements"`
		NonFunctionalRequirements map[string]any `yaml:"non_functional_requirements"`
		UnitsOfWork               map[string]any `yaml:"units_of_work"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		snap.warn(WarnParseError, FrameworkFile, err.Error())
		return
	}

	source := strings.TrimSuffix(FrameworkFile, ".yaml")
	snap.Requirements = collect(snap, doc.FunctionalRequirements, source)
	snap.QualityAttributes = collect(snap, doc.NonFunctionalRequirements, source)
	snap.UnitsOfWork = collect(snap, doc.UnitsOfWork, source)
}

// collect turns a keyed record group into Documents sorted by id, skipping
// malformed entries with a warning.
func collect(snap *Snapshot, group map[string]any, source string) []Document {
	ids := make([]string, 0, len(group))
	for id := range group {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			snap.warn(WarnSkippedRecord, id, "blank record id")
			continue
		}
		body, ok := group[id].(map[string]any)
		if !ok {
			snap.warn(WarnSkippedRecord, id, "record body is not a mapping")
			continue
		}
		docs = append(docs, Document{ID: id, Source: source, Body: body})
	}
	return docs
}

func (l *Loader) loadContracts(snap *Snapshot) {
	dir := filepath.Join(l.dir, ContractsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			snap.warn(WarnParseError, ContractsDir, err.Error())
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".yaml")
		body, err := readRecord(filepath.Join(dir, entry.Name()))
		if err != nil {
			snap.warn(WarnParseError, ContractsDir+"/"+entry.Name(), err.Error())
			continue
		}
		// The declared contract_id wins over the file stem.
		id := stem
		if cid, ok := body["contract_id"].(string); ok && cid != "" {
			id = cid
		}
		snap.Contracts = append(snap.Contracts, Document{
			ID:     id,
			Source: ContractsDir + "/" + stem,
			Body:   body,
		})
	}
	sortDocs(snap.Contracts)
}

func (l *Loader) loadExtensions(snap *Snapshot) {
	dir := filepath.Join(l.dir, ExtensionsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			snap.warn(WarnParseError, ExtensionsDir, err.Error())
		}
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		category := entry.Name()
		files, err := os.ReadDir(filepath.Join(dir, category))
		if err != nil {
			snap.warn(WarnParseError, ExtensionsDir+"/"+category, err.Error())
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
				continue
			}
			stem := strings.TrimSuffix(f.Name(), ".yaml")
			body, err := readRecord(filepath.Join(dir, category, f.Name()))
			if err != nil {
				snap.warn(WarnParseError, ExtensionsDir+"/"+category+"/"+f.Name(), err.Error())
				continue
			}
			// Extensions carry no inline id; derive one from placement and
			// make sure name and category are answerable from the body.
			if name, _ := body["name"].(string); name == "" {
				body["name"] = stem
			}
			body["category"] = category
			snap.Extensions = append(snap.Extensions, Document{
				ID:     category + "_" + stem,
				Source: ExtensionsDir + "/" + category + "/" + stem,
				Body:   body,
			})
		}
	}
	sortDocs(snap.Extensions)
}

func readRecord(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := yaml.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("empty document")
	}
	return body, nil
}

func sortDocs(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
