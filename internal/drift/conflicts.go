package drift

import (
	"encoding/json"
	"reflect"
	"sort"
)

// Conflict classifications.
const (
	ConflictMetadata   = "metadata_mismatch"
	ConflictContent    = "content_divergence"
	ConflictDependency = "dependency_conflict"
	ConflictSchema     = "schema_mismatch"
)

// Resolution strategies, one per classification.
const (
	ResolvePreferAuthoritative = "prefer_authoritative"
	ResolveManualReview        = "manual_review_required"
	ResolveMergeDependencies   = "merge_dependencies"
	ResolveUpgradeSchema       = "upgrade_schema"
)

// resolutions is the fixed rule table applied to classified conflicts.
var resolutions = map[string]string{
	ConflictMetadata:   ResolvePreferAuthoritative,
	ConflictContent:    ResolveManualReview,
	ConflictDependency: ResolveMergeDependencies,
	ConflictSchema:     ResolveUpgradeSchema,
}

// metadataKeys are bookkeeping attributes. A delta confined to these
// resolves without manual review.
var metadataKeys = map[string]bool{
	"priority":               true,
	"layer":                  true,
	"status":                 true,
	"tags":                   true,
	"estimated_effort_hours": true,
}

// Conflict is one classified synchronization conflict. Both sides' values
// are preserved; a side missing the entity is nil.
type Conflict struct {
	EntityID           string         `json:"entity_id"`
	Type               string         `json:"conflict_type"`
	AuthoritativeValue map[string]any `json:"authoritative_value"`
	DerivedValue       map[string]any `json:"derived_value"`
	Resolution         string         `json:"resolution"`
}

// ResolveConflicts classifies the given entity ids against the current
// state of both stores and applies the resolution rule table. Ids whose two
// sides agree, or that neither side knows, are omitted.
func (e *Engine) ResolveConflicts(ids []string) ([]Conflict, error) {
	v, err := e.loadView()
	if err != nil {
		return nil, err
	}
	return v.conflicts(ids), nil
}

func (v *view) conflicts(ids []string) []Conflict {
	out := []Conflict{}
	for _, id := range ids {
		fresh, haveFresh := v.freshAt[id]
		stored, haveStored := v.storedAt[id]

		var c Conflict
		switch {
		case haveFresh && haveStored:
			auth := canonicalAttrs(fresh.Attributes)
			derived := canonicalAttrs(stored.Attributes)
			changed := changedKeys(auth, derived)
			if len(changed) == 0 {
				continue
			}
			c = Conflict{
				EntityID:           id,
				Type:               classify(changed),
				AuthoritativeValue: auth,
				DerivedValue:       derived,
			}
		case haveStored:
			// Index-only entity of non-derived type: someone wrote into the
			// index behind the corpus. Always a manual review.
			c = Conflict{
				EntityID:     id,
				Type:         ConflictContent,
				DerivedValue: canonicalAttrs(stored.Attributes),
			}
		case haveFresh:
			c = Conflict{
				EntityID:           id,
				Type:               ConflictContent,
				AuthoritativeValue: canonicalAttrs(fresh.Attributes),
			}
		default:
			continue
		}
		c.Resolution = resolutions[c.Type]
		out = append(out, c)
	}
	return out
}

// classify maps a changed-key set to a conflict type: metadata-only delta,
// dependency-list delta, schema-version delta, otherwise content
// divergence.
func classify(changed []string) string {
	metaOnly, depsOnly, schemaOnly := true, true, true
	for _, k := range changed {
		if !metadataKeys[k] {
			metaOnly = false
		}
		if k != "dependencies" {
			depsOnly = false
		}
		if k != "schema_version" {
			schemaOnly = false
		}
	}
	switch {
	case metaOnly:
		return ConflictMetadata
	case depsOnly:
		return ConflictDependency
	case schemaOnly:
		return ConflictSchema
	}
	return ConflictContent
}

// changedKeys returns the sorted keys whose values differ between the two
// attribute maps, including keys present on only one side.
func changedKeys(a, b map[string]any) []string {
	keys := make(map[string]bool, len(a)+len(b))
	for k := range a {
		keys[k] = true
	}
	for k := range b {
		keys[k] = true
	}

	changed := make([]string, 0, len(keys))
	for k := range keys {
		if !reflect.DeepEqual(a[k], b[k]) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// canonicalAttrs round-trips attributes through JSON so values fresh from
// YAML compare equal to values reloaded from the index artifacts.
func canonicalAttrs(attrs map[string]any) map[string]any {
	data, err := json.Marshal(attrs)
	if err != nil {
		return attrs
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return attrs
	}
	return out
}
