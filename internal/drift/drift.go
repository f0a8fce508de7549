// Package drift keeps the authoritative corpus and the derived index
// consistent. It detects divergence by content hash, re-indexes
// authoritative changes, promotes accumulated knowledge back into the
// corpus, and classifies whatever remains as conflicts resolved by a fixed
// rule table.
package drift

import (
	"errors"
	"fmt"
	"time"

	"github.com/papapumpkin/orrery/internal/corpus"
	"github.com/papapumpkin/orrery/internal/graph"
	"github.com/papapumpkin/orrery/internal/index"
	"github.com/papapumpkin/orrery/internal/knowledge"
	"github.com/papapumpkin/orrery/internal/telemetry"
)

// ErrSyncFailed reports a failed synchronization phase. The message names
// the phase; a pass stops at its first failing phase.
var ErrSyncFailed = errors.New("sync failed")

// Changes classifies every entity whose two sides disagree. Authoritative
// updates are entities missing from or stale in the index; derived updates
// are index-only knowledge entities; everything else index-only is a
// conflict.
type Changes struct {
	AuthoritativeUpdates []string `json:"authoritative_updates"`
	DerivedUpdates       []string `json:"derived_updates"`
	Conflicts            []string `json:"conflicts"`
}

// Empty reports whether the two stores agree.
func (c *Changes) Empty() bool {
	return len(c.AuthoritativeUpdates) == 0 && len(c.DerivedUpdates) == 0 && len(c.Conflicts) == 0
}

// Result reports one synchronization pass.
type Result struct {
	Success         bool       `json:"success"`
	EntitiesUpdated int        `json:"entities_updated"`
	Conflicts       []Conflict `json:"conflicts"`
	Error           string     `json:"error,omitempty"`
}

// Engine synchronizes the authoritative corpus with the derived index and
// knowledge stores.
type Engine struct {
	corpus    *corpus.Loader
	index     *index.Store
	knowledge *knowledge.Store
	journal   *telemetry.Emitter
	stateDir  string
}

// New returns an engine over the given collaborators. The journal may be
// nil to disable journaling; the state file recording the last successful
// pass lives under stateDir.
func New(loader *corpus.Loader, store *index.Store, know *knowledge.Store, journal *telemetry.Emitter, stateDir string) *Engine {
	return &Engine{
		corpus:    loader,
		index:     store,
		knowledge: know,
		journal:   journal,
		stateDir:  stateDir,
	}
}

// DetectChanges compares freshly computed content hashes against the stored
// index and classifies every disagreement. Detected drift is journaled; an
// absent index makes every corpus entity an authoritative update.
func (e *Engine) DetectChanges() (*Changes, error) {
	v, err := e.loadView()
	if err != nil {
		return nil, err
	}
	changes := v.changes()
	if !changes.Empty() {
		e.emit(telemetry.Event{
			Kind: telemetry.KindDriftDetected,
			Data: map[string]any{
				"authoritative": len(changes.AuthoritativeUpdates),
				"derived":       len(changes.DerivedUpdates),
				"conflicts":     len(changes.Conflicts),
			},
		})
	}
	return changes, nil
}

// view is one consistent read of both stores. A full pass shares a single
// view across its phases so conflict values captured at detection survive
// the re-index that would otherwise discard them.
type view struct {
	fresh    *index.Result
	freshAt  map[string]graph.Entity
	stored   []*graph.Entity
	storedAt map[string]*graph.Entity
}

func (e *Engine) loadView() (*view, error) {
	snap, err := e.corpus.Load()
	if err != nil {
		return nil, fmt.Errorf("drift: loading corpus: %w", err)
	}

	v := &view{
		fresh:    index.Build(snap),
		freshAt:  make(map[string]graph.Entity),
		storedAt: make(map[string]*graph.Entity),
	}
	for _, ent := range v.fresh.Entities {
		v.freshAt[ent.ID] = ent
	}

	if e.index.Exists() {
		g, _, err := e.index.Load()
		if err != nil {
			return nil, fmt.Errorf("drift: loading index: %w", err)
		}
		v.stored = g.Entities()
		for _, ent := range v.stored {
			v.storedAt[ent.ID] = ent
		}
	}
	return v, nil
}

func (v *view) changes() *Changes {
	changes := &Changes{
		AuthoritativeUpdates: []string{},
		DerivedUpdates:       []string{},
		Conflicts:            []string{},
	}
	for _, ent := range v.fresh.Entities {
		stored, ok := v.storedAt[ent.ID]
		if !ok || stored.Meta.Hash != ent.Meta.Hash {
			changes.AuthoritativeUpdates = append(changes.AuthoritativeUpdates, ent.ID)
		}
	}
	for _, ent := range v.stored {
		if _, ok := v.freshAt[ent.ID]; ok {
			continue
		}
		if ent.Type.Derived() {
			changes.DerivedUpdates = append(changes.DerivedUpdates, ent.ID)
		} else {
			changes.Conflicts = append(changes.Conflicts, ent.ID)
		}
	}
	return changes
}

// emit journals an event best-effort; a journaling failure never fails a
// sync pass.
func (e *Engine) emit(evt telemetry.Event) {
	evt.Timestamp = time.Now().UTC()
	_ = e.journal.Emit(evt)
}

func wrapPhase(phase string, err error) error {
	return fmt.Errorf("drift: %w: %s phase: %v", ErrSyncFailed, phase, err)
}

// fail journals the failing phase and packages it as a failed result.
func (e *Engine) fail(runID, phase string, cause error) (*Result, error) {
	e.emit(telemetry.Event{
		Kind:  telemetry.KindSyncFailed,
		RunID: runID,
		Data:  map[string]any{"phase": phase, "error": cause.Error()},
	})
	err := wrapPhase(phase, cause)
	return &Result{Conflicts: []Conflict{}, Error: err.Error()}, err
}
