package corpus

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// knowledgeFile is the on-disk shape of one promoted kind. Map keys are
// emitted sorted, so repeated promotion of the same records is
// byte-identical apart from the run id.
type knowledgeFile struct {
	Status  string                    `yaml:"status"`
	RunID   string                    `yaml:"run_id"`
	Records map[string]map[string]any `yaml:"records"`
}

// KnowledgeFilename returns the knowledge/ file name holding promoted
// records of the given kind.
func KnowledgeFilename(kind string) string {
	return "integrated-" + kind + "s.yaml"
}

// WriteKnowledge persists promoted records of one kind (pattern, decision,
// lesson) under knowledge/, replacing that kind's file via
// write-to-temp-then-rename. Each record gains an origin block naming its
// kind, id, and the promoting run, so traceability survives in the
// authoritative store. Writing no records is a no-op.
func (l *Loader) WriteKnowledge(kind, runID string, records map[string]map[string]any) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Join(l.dir, KnowledgeDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("corpus: creating knowledge dir: %w", err)
	}

	out := knowledgeFile{
		Status:  "integrated",
		RunID:   runID,
		Records: make(map[string]map[string]any, len(records)),
	}
	for id, body := range records {
		rec := make(map[string]any, len(body)+1)
		for k, v := range body {
			rec[k] = v
		}
		rec["origin"] = map[string]string{"kind": kind, "id": id, "run_id": runID}
		out.Records[id] = rec
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("corpus: encoding %s knowledge: %w", kind, err)
	}

	path := filepath.Join(dir, KnowledgeFilename(kind))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("corpus: writing %s knowledge: %w", kind, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("corpus: replacing %s knowledge: %w", kind, err)
	}
	return nil
}
