package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// featurePattern matches unit-of-work feature file stems such as
// uow_001_user_login or UoW-002.
var featurePattern = regexp.MustCompile(`(?i)uow[_-](\d+)`)

// FeatureSet answers whether a unit of work has a BDD feature file.
type FeatureSet struct {
	uows map[string]bool
}

// LoadFeatures walks dir for .feature files and derives unit-of-work ids
// from their names, digits kept as written so UoW-001 and uow_001_login
// resolve to the same id. A missing directory yields an empty set.
func LoadFeatures(dir string) (*FeatureSet, error) {
	set := &FeatureSet{uows: make(map[string]bool)}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".feature") {
			return nil
		}
		stem := strings.TrimSuffix(d.Name(), ".feature")
		if m := featurePattern.FindStringSubmatch(stem); m != nil {
			set.uows["UoW-"+m[1]] = true
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, fmt.Errorf("corpus: scanning features: %w", err)
	}
	return set, nil
}

// Has reports whether the unit of work has at least one feature file.
func (f *FeatureSet) Has(uowID string) bool {
	return f.uows[uowID]
}

// IDs returns the covered unit-of-work ids, sorted.
func (f *FeatureSet) IDs() []string {
	ids := make([]string, 0, len(f.uows))
	for id := range f.uows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
