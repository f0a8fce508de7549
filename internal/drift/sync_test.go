package drift

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/papapumpkin/orrery/internal/corpus"
	"github.com/papapumpkin/orrery/internal/graph"
	"github.com/papapumpkin/orrery/internal/knowledge"
	"github.com/papapumpkin/orrery/internal/telemetry"
)

func TestSyncAuthoritativeToDerived(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.writeFramework(t, fixtureFramework)

	res, err := f.engine.SyncAuthoritativeToDerived([]string{"FR-001", "UoW-001"})
	if err != nil {
		t.Fatalf("SyncAuthoritativeToDerived: %v", err)
	}
	if !res.Success || res.EntitiesUpdated != 2 {
		t.Errorf("result = %+v, want success with 2 entities", res)
	}
	if res.Conflicts == nil || len(res.Conflicts) != 0 {
		t.Errorf("conflicts = %v, want empty", res.Conflicts)
	}

	if !f.store.Exists() {
		t.Fatal("index store missing after sync")
	}
	g, _, err := f.store.Load()
	if err != nil {
		t.Fatalf("loading synced index: %v", err)
	}
	if g.Len() != 3 {
		t.Errorf("synced index holds %d entities, want 3", g.Len())
	}

	if kinds := f.journalKinds(t); !reflect.DeepEqual(kinds, []string{telemetry.KindSyncAuthoritative}) {
		t.Errorf("journal kinds = %v, want [%s]", kinds, telemetry.KindSyncAuthoritative)
	}
}

func TestSyncDerivedToAuthoritative(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.writeFramework(t, fixtureFramework)
	ctx := context.Background()

	for _, p := range []knowledge.Pattern{
		{ID: "pat-errors", Name: "Wrap with context", Category: "error_handling", Frequency: 3},
		{ID: "pat-retry", Name: "Retry with backoff", Category: "error_handling", Frequency: 2},
	} {
		if err := f.know.RecordPattern(ctx, p); err != nil {
			t.Fatalf("recording pattern: %v", err)
		}
	}
	if err := f.know.RecordDecision(ctx, knowledge.Decision{ID: "dec-sqlite", Title: "Use SQLite"}); err != nil {
		t.Fatalf("recording decision: %v", err)
	}
	if err := f.know.RecordLesson(ctx, knowledge.Lesson{ID: "les-debounce", Category: "tooling", Problem: "watch storms", Solution: "debounce"}); err != nil {
		t.Fatalf("recording lesson: %v", err)
	}

	res, err := f.engine.SyncDerivedToAuthoritative(ctx, []string{"pat-errors", "pat-retry", "dec-sqlite", "les-debounce"})
	if err != nil {
		t.Fatalf("SyncDerivedToAuthoritative: %v", err)
	}
	if !res.Success || res.EntitiesUpdated != 4 {
		t.Errorf("result = %+v, want success with 4 promotions", res)
	}

	// Promoted records land under the corpus knowledge directory with an
	// origin stamp naming the run.
	path := filepath.Join(f.corpusDir, corpus.KnowledgeDir, corpus.KnowledgeFilename(knowledge.KindPattern))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading promoted patterns: %v", err)
	}
	var file struct {
		Status  string                    `yaml:"status"`
		RunID   string                    `yaml:"run_id"`
		Records map[string]map[string]any `yaml:"records"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("parsing promoted patterns: %v", err)
	}
	if file.Status != "integrated" || file.RunID == "" {
		t.Errorf("promoted file status/run = %q/%q, want integrated with a run id", file.Status, file.RunID)
	}
	if len(file.Records) != 2 {
		t.Errorf("promoted %d patterns, want 2", len(file.Records))
	}
	rec := file.Records["pat-errors"]
	if rec == nil {
		t.Fatal("pat-errors missing from promoted records")
	}
	origin, _ := rec["origin"].(map[string]any)
	if origin["kind"] != "pattern" || origin["run_id"] != file.RunID {
		t.Errorf("origin = %v, want kind pattern stamped with run %s", origin, file.RunID)
	}

	// Rows are stamped, so a second sweep finds nothing.
	left, err := f.know.UnpromotedPatterns(ctx)
	if err != nil {
		t.Fatalf("UnpromotedPatterns: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("unpromoted patterns after sync = %d, want 0", len(left))
	}
	again, err := f.engine.SyncDerivedToAuthoritative(ctx, nil)
	if err != nil {
		t.Fatalf("second SyncDerivedToAuthoritative: %v", err)
	}
	if again.EntitiesUpdated != 0 {
		t.Errorf("second sweep promoted %d, want 0", again.EntitiesUpdated)
	}
}

func TestFullSync(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.writeFramework(t, fixtureFramework)
	f.seedIndex(t,
		seedEntity("pattern_error_handling", graph.TypePattern, map[string]any{"name": "retry with backoff"}),
		seedEntity("FR-999", graph.TypeRequirement, map[string]any{"title": "ghost requirement"}),
	)
	f.writeFramework(t, editedFramework)
	if err := f.know.RecordLesson(ctx, knowledge.Lesson{ID: "les-001", Category: "process"}); err != nil {
		t.Fatalf("recording lesson: %v", err)
	}

	res, err := f.engine.FullSync(ctx)
	if err != nil {
		t.Fatalf("FullSync: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	// FR-001 re-indexed plus one lesson promoted.
	if res.EntitiesUpdated != 2 {
		t.Errorf("entities updated = %d, want 2", res.EntitiesUpdated)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("conflicts = %+v, want exactly one", res.Conflicts)
	}
	c := res.Conflicts[0]
	if c.EntityID != "FR-999" || c.Type != ConflictContent || c.Resolution != ResolveManualReview {
		t.Errorf("conflict = %+v, want FR-999 content divergence for manual review", c)
	}
	if c.AuthoritativeValue != nil {
		t.Errorf("authoritative value = %v, want nil for an index-only entity", c.AuthoritativeValue)
	}
	// The re-index dropped FR-999 from the index, but its last value
	// survives on the conflict record.
	if c.DerivedValue["title"] != "ghost requirement" {
		t.Errorf("derived value = %v, want the stored attributes preserved", c.DerivedValue)
	}

	// The pass converges: nothing left to detect.
	changes, err := f.engine.DetectChanges()
	if err != nil {
		t.Fatalf("DetectChanges after sync: %v", err)
	}
	if !changes.Empty() {
		t.Errorf("post-sync changes = %+v, want empty", changes)
	}

	st, err := LoadState(f.stateDir)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if st.RunID == "" || st.EntitiesUpdated != 2 || st.Conflicts != 1 {
		t.Errorf("state = %+v, want the pass recorded", st)
	}
	if st.CompletedAt.IsZero() {
		t.Error("state completion time is zero")
	}

	// One run id threads through every event, in phase order.
	events := f.journalEvents(t)
	kinds := make([]string, 0, len(events))
	for _, evt := range events {
		kinds = append(kinds, evt.Kind)
		if evt.RunID != st.RunID {
			t.Errorf("event %s run = %q, want %q", evt.Kind, evt.RunID, st.RunID)
		}
	}
	wantKinds := []string{
		telemetry.KindSyncStart,
		telemetry.KindDriftDetected,
		telemetry.KindSyncAuthoritative,
		telemetry.KindSyncDerived,
		telemetry.KindConflictResolved,
		telemetry.KindSyncDone,
	}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Errorf("journal kinds = %v, want %v", kinds, wantKinds)
	}
}

func TestFullSyncNothingToDo(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.writeFramework(t, fixtureFramework)
	f.seedIndex(t)

	res, err := f.engine.FullSync(ctx)
	if err != nil {
		t.Fatalf("FullSync: %v", err)
	}
	if !res.Success || res.EntitiesUpdated != 0 || len(res.Conflicts) != 0 {
		t.Errorf("result = %+v, want a clean successful pass", res)
	}
	wantKinds := []string{telemetry.KindSyncStart, telemetry.KindSyncDerived, telemetry.KindSyncDone}
	if kinds := f.journalKinds(t); !reflect.DeepEqual(kinds, wantKinds) {
		t.Errorf("journal kinds = %v, want %v", kinds, wantKinds)
	}
}

func TestFullSyncAbortsOnFailedPhase(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.writeFramework(t, fixtureFramework)
	if err := f.know.RecordLesson(ctx, knowledge.Lesson{ID: "les-001", Category: "process"}); err != nil {
		t.Fatalf("recording lesson: %v", err)
	}
	// A regular file where the index directory belongs makes the
	// authoritative phase fail.
	if err := os.WriteFile(f.indexDir, []byte("not a directory"), 0644); err != nil {
		t.Fatalf("blocking index dir: %v", err)
	}

	res, err := f.engine.FullSync(ctx)
	if err == nil {
		t.Fatal("FullSync: want error, got nil")
	}
	if !errors.Is(err, ErrSyncFailed) {
		t.Errorf("error = %v, want ErrSyncFailed", err)
	}
	if res == nil || res.Success {
		t.Fatalf("result = %+v, want a failure report", res)
	}
	if !strings.Contains(res.Error, "authoritative") {
		t.Errorf("result error = %q, want the failing phase named", res.Error)
	}

	// The pass stopped before the derived phase and recorded no state.
	left, err := f.know.UnpromotedLessons(ctx)
	if err != nil {
		t.Fatalf("UnpromotedLessons: %v", err)
	}
	if len(left) != 1 {
		t.Errorf("unpromoted lessons = %d, want the record untouched", len(left))
	}
	st, err := LoadState(f.stateDir)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if st.RunID != "" {
		t.Errorf("state run = %q, want none recorded", st.RunID)
	}
	wantKinds := []string{telemetry.KindSyncStart, telemetry.KindDriftDetected, telemetry.KindSyncFailed}
	if kinds := f.journalKinds(t); !reflect.DeepEqual(kinds, wantKinds) {
		t.Errorf("journal kinds = %v, want %v", kinds, wantKinds)
	}
}

func TestIncrementalSyncNoChanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.writeFramework(t, fixtureFramework)
	f.seedIndex(t)

	res, err := f.engine.IncrementalSync(ctx)
	if err != nil {
		t.Fatalf("IncrementalSync: %v", err)
	}
	if !res.Success || res.EntitiesUpdated != 0 || len(res.Conflicts) != 0 {
		t.Errorf("result = %+v, want success with nothing done", res)
	}
	if kinds := f.journalKinds(t); len(kinds) != 0 {
		t.Errorf("journal kinds = %v, want none for a no-op", kinds)
	}
	st, err := LoadState(f.stateDir)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if st.RunID != "" {
		t.Errorf("state run = %q, want no state written", st.RunID)
	}
}

func TestIncrementalSyncRunsOnChange(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.writeFramework(t, fixtureFramework)
	f.seedIndex(t)
	f.writeFramework(t, editedFramework)

	res, err := f.engine.IncrementalSync(ctx)
	if err != nil {
		t.Fatalf("IncrementalSync: %v", err)
	}
	if !res.Success || res.EntitiesUpdated != 1 {
		t.Errorf("result = %+v, want one entity re-synced", res)
	}
	st, err := LoadState(f.stateDir)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if st.RunID == "" {
		t.Error("state missing after a real pass")
	}
	kinds := f.journalKinds(t)
	if len(kinds) == 0 || kinds[0] != telemetry.KindSyncStart {
		t.Errorf("journal kinds = %v, want a full pass starting with %s", kinds, telemetry.KindSyncStart)
	}
}
