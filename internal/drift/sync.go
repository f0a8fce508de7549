package drift

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/papapumpkin/orrery/internal/index"
	"github.com/papapumpkin/orrery/internal/knowledge"
	"github.com/papapumpkin/orrery/internal/telemetry"
)

// SyncAuthoritativeToDerived re-indexes the full corpus and persists the
// result. The indexing strategy has no partial mode; ids only sizes the
// report and the journal entry. The returned result is non-nil even on
// failure, where the error wraps ErrSyncFailed.
func (e *Engine) SyncAuthoritativeToDerived(ids []string) (*Result, error) {
	runID := uuid.NewString()
	snap, err := e.corpus.Load()
	if err != nil {
		return e.fail(runID, "authoritative", err)
	}
	if err := e.syncAuthoritative(runID, index.Build(snap), ids); err != nil {
		return e.fail(runID, "authoritative", err)
	}
	return &Result{Success: true, EntitiesUpdated: len(ids), Conflicts: []Conflict{}}, nil
}

// SyncDerivedToAuthoritative promotes every unpromoted pattern, decision,
// and lesson into the corpus knowledge directory and stamps the store rows
// with the promoting run. The ids are the detected derived-side entities;
// promotion always sweeps the whole store.
func (e *Engine) SyncDerivedToAuthoritative(ctx context.Context, ids []string) (*Result, error) {
	runID := uuid.NewString()
	promoted, err := e.syncDerived(ctx, runID)
	if err != nil {
		return e.fail(runID, "derived", err)
	}
	return &Result{Success: true, EntitiesUpdated: promoted, Conflicts: []Conflict{}}, nil
}

// FullSync runs detection, both directional syncs, and conflict resolution
// under one run id, in that order. A failing phase aborts the pass before
// conflict resolution. The returned result is non-nil even on failure,
// where the error wraps ErrSyncFailed with the failing phase.
func (e *Engine) FullSync(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	e.emit(telemetry.Event{Kind: telemetry.KindSyncStart, RunID: runID})

	v, err := e.loadView()
	if err != nil {
		return e.fail(runID, "detect", err)
	}
	changes := v.changes()
	if !changes.Empty() {
		e.emit(telemetry.Event{
			Kind:  telemetry.KindDriftDetected,
			RunID: runID,
			Data: map[string]any{
				"authoritative": len(changes.AuthoritativeUpdates),
				"derived":       len(changes.DerivedUpdates),
				"conflicts":     len(changes.Conflicts),
			},
		})
	}

	res := &Result{Success: true, Conflicts: []Conflict{}}
	if len(changes.AuthoritativeUpdates) > 0 {
		if err := e.syncAuthoritative(runID, v.fresh, changes.AuthoritativeUpdates); err != nil {
			return e.fail(runID, "authoritative", err)
		}
		res.EntitiesUpdated += len(changes.AuthoritativeUpdates)
	}

	// The derived phase always runs: unpromoted knowledge rows live outside
	// the index, so hash detection cannot see them.
	promoted, err := e.syncDerived(ctx, runID)
	if err != nil {
		return e.fail(runID, "derived", err)
	}
	res.EntitiesUpdated += promoted

	if len(changes.Conflicts) > 0 {
		// Resolve against the view captured before the re-index so the
		// derived-side values are still on record.
		res.Conflicts = v.conflicts(changes.Conflicts)
		for _, c := range res.Conflicts {
			e.emit(telemetry.Event{
				Kind:     telemetry.KindConflictResolved,
				RunID:    runID,
				EntityID: c.EntityID,
				Data:     map[string]any{"conflict_type": c.Type, "resolution": c.Resolution},
			})
		}
	}

	st := &State{
		RunID:           runID,
		CompletedAt:     time.Now().UTC(),
		EntitiesUpdated: res.EntitiesUpdated,
		Conflicts:       len(res.Conflicts),
	}
	if err := SaveState(e.stateDir, st); err != nil {
		return e.fail(runID, "state", err)
	}

	e.emit(telemetry.Event{
		Kind:  telemetry.KindSyncDone,
		RunID: runID,
		Data: map[string]any{
			"entities_updated": res.EntitiesUpdated,
			"conflicts":        len(res.Conflicts),
		},
	})
	return res, nil
}

// IncrementalSync checks for drift first and reports success with zero
// updates when the stores agree; otherwise it performs a full pass. The
// no-change path journals nothing.
func (e *Engine) IncrementalSync(ctx context.Context) (*Result, error) {
	v, err := e.loadView()
	if err != nil {
		werr := wrapPhase("detect", err)
		return &Result{Conflicts: []Conflict{}, Error: werr.Error()}, werr
	}
	if v.changes().Empty() {
		return &Result{Success: true, Conflicts: []Conflict{}}, nil
	}
	return e.FullSync(ctx)
}

// syncAuthoritative persists an already built index result and journals the
// phase.
func (e *Engine) syncAuthoritative(runID string, fresh *index.Result, ids []string) error {
	if _, err := e.index.Write(fresh); err != nil {
		return err
	}
	e.emit(telemetry.Event{
		Kind:  telemetry.KindSyncAuthoritative,
		RunID: runID,
		Data:  map[string]any{"entities_updated": len(ids)},
	})
	return nil
}

// syncDerived promotes every unpromoted knowledge record, kind by kind,
// and returns how many were promoted. Each kind's records are written to
// the corpus before the store rows are stamped, so a failure between the
// two is healed by the next sweep.
func (e *Engine) syncDerived(ctx context.Context, runID string) (int, error) {
	promoted := 0
	promote := func(kind string, ids []string, records map[string]map[string]any) error {
		if len(ids) == 0 {
			return nil
		}
		if err := e.corpus.WriteKnowledge(kind, runID, records); err != nil {
			return err
		}
		if err := e.knowledge.MarkPromoted(ctx, kind, ids, runID); err != nil {
			return err
		}
		promoted += len(ids)
		return nil
	}

	patterns, err := e.knowledge.UnpromotedPatterns(ctx)
	if err != nil {
		return 0, err
	}
	patternIDs := make([]string, 0, len(patterns))
	patternRecords := make(map[string]map[string]any, len(patterns))
	for _, p := range patterns {
		patternIDs = append(patternIDs, p.ID)
		patternRecords[p.ID] = patternRecord(p)
	}
	if err := promote(knowledge.KindPattern, patternIDs, patternRecords); err != nil {
		return 0, err
	}

	decisions, err := e.knowledge.UnpromotedDecisions(ctx)
	if err != nil {
		return 0, err
	}
	decisionIDs := make([]string, 0, len(decisions))
	decisionRecords := make(map[string]map[string]any, len(decisions))
	for _, d := range decisions {
		decisionIDs = append(decisionIDs, d.ID)
		decisionRecords[d.ID] = decisionRecord(d)
	}
	if err := promote(knowledge.KindDecision, decisionIDs, decisionRecords); err != nil {
		return 0, err
	}

	lessons, err := e.knowledge.UnpromotedLessons(ctx)
	if err != nil {
		return 0, err
	}
	lessonIDs := make([]string, 0, len(lessons))
	lessonRecords := make(map[string]map[string]any, len(lessons))
	for _, l := range lessons {
		lessonIDs = append(lessonIDs, l.ID)
		lessonRecords[l.ID] = lessonRecord(l)
	}
	if err := promote(knowledge.KindLesson, lessonIDs, lessonRecords); err != nil {
		return 0, err
	}

	e.emit(telemetry.Event{
		Kind:  telemetry.KindSyncDerived,
		RunID: runID,
		Data:  map[string]any{"entities_updated": promoted},
	})
	return promoted, nil
}

func patternRecord(p knowledge.Pattern) map[string]any {
	return map[string]any{
		"name":        p.Name,
		"category":    p.Category,
		"description": p.Description,
		"examples":    p.Examples,
		"frequency":   p.Frequency,
		"confidence":  p.Confidence,
	}
}

func decisionRecord(d knowledge.Decision) map[string]any {
	return map[string]any{
		"title":        d.Title,
		"context":      d.Context,
		"decision":     d.Decision,
		"rationale":    d.Rationale,
		"consequences": d.Consequences,
		"alternatives": d.Alternatives,
		"status":       d.Status,
		"date":         d.Date,
	}
}

func lessonRecord(l knowledge.Lesson) map[string]any {
	return map[string]any{
		"category":  l.Category,
		"situation": l.Situation,
		"problem":   l.Problem,
		"solution":  l.Solution,
		"outcome":   l.Outcome,
		"tags":      l.Tags,
		"impact":    l.Impact,
	}
}
