// Package knowledge persists derived knowledge accumulated around the
// corpus: recurring patterns, architecture decisions, and lessons learned.
// Records live in a local SQLite database; the sync engine promotes them
// into the authoritative store and marks the rows with the promoting run.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Record kinds, used for promotion bookkeeping.
const (
	KindPattern  = "pattern"
	KindDecision = "decision"
	KindLesson   = "lesson"
)

// Pattern is a recurring practice observed across the corpus and its
// history. Frequency accumulates across recordings of the same id.
type Pattern struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
	Frequency   int      `json:"frequency"`
	Confidence  float64  `json:"confidence"`
}

// Decision is an architecture decision record.
type Decision struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Context      string   `json:"context"`
	Decision     string   `json:"decision"`
	Rationale    string   `json:"rationale"`
	Consequences []string `json:"consequences"`
	Alternatives []string `json:"alternatives"`
	Status       string   `json:"status"`
	Date         string   `json:"date"`
}

// Lesson is a lesson learned, recorded manually or by analysis tooling.
type Lesson struct {
	ID        string   `json:"id"`
	Category  string   `json:"category"`
	Situation string   `json:"situation"`
	Problem   string   `json:"problem"`
	Solution  string   `json:"solution"`
	Outcome   string   `json:"outcome"`
	Tags      []string `json:"tags"`
	Impact    string   `json:"impact"`
}

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup. List fields are stored as JSON text.
const schema = `
CREATE TABLE IF NOT EXISTS patterns (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    category     TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    examples     TEXT NOT NULL DEFAULT '[]',
    frequency    INTEGER NOT NULL DEFAULT 1,
    confidence   REAL NOT NULL DEFAULT 0,
    promoted_run TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS decisions (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    context      TEXT NOT NULL DEFAULT '',
    decision     TEXT NOT NULL DEFAULT '',
    rationale    TEXT NOT NULL DEFAULT '',
    consequences TEXT NOT NULL DEFAULT '[]',
    alternatives TEXT NOT NULL DEFAULT '[]',
    status       TEXT NOT NULL DEFAULT '',
    date         TEXT NOT NULL DEFAULT '',
    promoted_run TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS lessons (
    id           TEXT PRIMARY KEY,
    category     TEXT NOT NULL DEFAULT '',
    situation    TEXT NOT NULL DEFAULT '',
    problem      TEXT NOT NULL DEFAULT '',
    solution     TEXT NOT NULL DEFAULT '',
    outcome      TEXT NOT NULL DEFAULT '',
    tags         TEXT NOT NULL DEFAULT '[]',
    impact       TEXT NOT NULL DEFAULT '',
    promoted_run TEXT NOT NULL DEFAULT ''
);
`

// Store holds accumulated knowledge in a local SQLite database in WAL mode.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at dbPath, enables WAL mode
// and busy timeout, and creates the schema tables if they do not exist.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("knowledge: open database: %w", err)
	}

	// Limit to one connection. SQLite only supports a single writer; using
	// one connection avoids SQLITE_BUSY contention between pooled connections
	// that each need their own PRAGMA setup.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("knowledge: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("knowledge: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("knowledge: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordPattern upserts a pattern. Re-recording an existing id replaces its
// descriptive fields and adds the new frequency to the stored one, so
// repeated observations accumulate. A non-positive frequency counts as one
// observation.
func (s *Store) RecordPattern(ctx context.Context, p Pattern) error {
	if p.Frequency <= 0 {
		p.Frequency = 1
	}
	examples, err := encodeList(p.Examples)
	if err != nil {
		return fmt.Errorf("knowledge: encode pattern examples: %w", err)
	}

	const q = `
		INSERT INTO patterns (id, name, category, description, examples, frequency, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name        = excluded.name,
			category    = excluded.category,
			description = excluded.description,
			examples    = excluded.examples,
			frequency   = patterns.frequency + excluded.frequency,
			confidence  = excluded.confidence`
	if _, err := s.db.ExecContext(ctx, q, p.ID, p.Name, p.Category, p.Description, examples, p.Frequency, p.Confidence); err != nil {
		return fmt.Errorf("knowledge: record pattern %q: %w", p.ID, err)
	}
	return nil
}

// RecordDecision upserts an architecture decision record.
func (s *Store) RecordDecision(ctx context.Context, d Decision) error {
	consequences, err := encodeList(d.Consequences)
	if err != nil {
		return fmt.Errorf("knowledge: encode decision consequences: %w", err)
	}
	alternatives, err := encodeList(d.Alternatives)
	if err != nil {
		return fmt.Errorf("knowledge: encode decision alternatives: %w", err)
	}

	const q = `
		INSERT INTO decisions (id, title, context, decision, rationale, consequences, alternatives, status, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title        = excluded.title,
			context      = excluded.context,
			decision     = excluded.decision,
			rationale    = excluded.rationale,
			consequences = excluded.consequences,
			alternatives = excluded.alternatives,
			status       = excluded.status,
			date         = excluded.date`
	if _, err := s.db.ExecContext(ctx, q, d.ID, d.Title, d.Context, d.Decision, d.Rationale, consequences, alternatives, d.Status, d.Date); err != nil {
		return fmt.Errorf("knowledge: record decision %q: %w", d.ID, err)
	}
	return nil
}

// RecordLesson upserts a lesson learned. An unset impact defaults to
// medium.
func (s *Store) RecordLesson(ctx context.Context, l Lesson) error {
	if l.Impact == "" {
		l.Impact = "medium"
	}
	tags, err := encodeList(l.Tags)
	if err != nil {
		return fmt.Errorf("knowledge: encode lesson tags: %w", err)
	}

	const q = `
		INSERT INTO lessons (id, category, situation, problem, solution, outcome, tags, impact)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category  = excluded.category,
			situation = excluded.situation,
			problem   = excluded.problem,
			solution  = excluded.solution,
			outcome   = excluded.outcome,
			tags      = excluded.tags,
			impact    = excluded.impact`
	if _, err := s.db.ExecContext(ctx, q, l.ID, l.Category, l.Situation, l.Problem, l.Solution, l.Outcome, tags, l.Impact); err != nil {
		return fmt.Errorf("knowledge: record lesson %q: %w", l.ID, err)
	}
	return nil
}

// Patterns returns patterns, most frequent first with ties broken by id.
// An empty category returns every pattern.
func (s *Store) Patterns(ctx context.Context, category string) ([]Pattern, error) {
	q := `SELECT id, name, category, description, examples, frequency, confidence
		FROM patterns`
	var args []any
	if category != "" {
		q += ` WHERE category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY frequency DESC, id`
	return s.queryPatterns(ctx, q, args...)
}

// UnpromotedPatterns returns patterns not yet promoted to the
// authoritative store, ordered by id.
func (s *Store) UnpromotedPatterns(ctx context.Context) ([]Pattern, error) {
	const q = `SELECT id, name, category, description, examples, frequency, confidence
		FROM patterns WHERE promoted_run = '' ORDER BY id`
	return s.queryPatterns(ctx, q)
}

// Decisions returns every decision record, ordered by id.
func (s *Store) Decisions(ctx context.Context) ([]Decision, error) {
	const q = `SELECT id, title, context, decision, rationale, consequences, alternatives, status, date
		FROM decisions ORDER BY id`
	return s.queryDecisions(ctx, q)
}

// UnpromotedDecisions returns decisions not yet promoted, ordered by id.
func (s *Store) UnpromotedDecisions(ctx context.Context) ([]Decision, error) {
	const q = `SELECT id, title, context, decision, rationale, consequences, alternatives, status, date
		FROM decisions WHERE promoted_run = '' ORDER BY id`
	return s.queryDecisions(ctx, q)
}

// Lessons returns every lesson, ordered by id.
func (s *Store) Lessons(ctx context.Context) ([]Lesson, error) {
	const q = `SELECT id, category, situation, problem, solution, outcome, tags, impact
		FROM lessons ORDER BY id`
	return s.queryLessons(ctx, q)
}

// UnpromotedLessons returns lessons not yet promoted, ordered by id.
func (s *Store) UnpromotedLessons(ctx context.Context) ([]Lesson, error) {
	const q = `SELECT id, category, situation, problem, solution, outcome, tags, impact
		FROM lessons WHERE promoted_run = '' ORDER BY id`
	return s.queryLessons(ctx, q)
}

// MarkPromoted stamps the given records with the run that promoted them.
func (s *Store) MarkPromoted(ctx context.Context, kind string, ids []string, runID string) error {
	if len(ids) == 0 {
		return nil
	}
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("knowledge: begin tx for promotion: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `UPDATE `+table+` SET promoted_run = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("knowledge: prepare promotion update: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, runID, id); err != nil {
			return fmt.Errorf("knowledge: mark %s %q promoted: %w", kind, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("knowledge: commit promotion: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// queryPatterns is a shared helper for scanning pattern rows.
func (s *Store) queryPatterns(ctx context.Context, query string, args ...any) ([]Pattern, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge: query patterns: %w", err)
	}
	defer rows.Close()

	var result []Pattern
	for rows.Next() {
		var p Pattern
		var examples string
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &examples, &p.Frequency, &p.Confidence); err != nil {
			return nil, fmt.Errorf("knowledge: scan pattern: %w", err)
		}
		if p.Examples, err = decodeList(examples); err != nil {
			return nil, fmt.Errorf("knowledge: decode pattern examples: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("knowledge: iterate patterns: %w", err)
	}
	return result, nil
}

// queryDecisions is a shared helper for scanning decision rows.
func (s *Store) queryDecisions(ctx context.Context, query string, args ...any) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge: query decisions: %w", err)
	}
	defer rows.Close()

	var result []Decision
	for rows.Next() {
		var d Decision
		var consequences, alternatives string
		if err := rows.Scan(&d.ID, &d.Title, &d.Context, &d.Decision, &d.Rationale, &consequences, &alternatives, &d.Status, &d.Date); err != nil {
			return nil, fmt.Errorf("knowledge: scan decision: %w", err)
		}
		if d.Consequences, err = decodeList(consequences); err != nil {
			return nil, fmt.Errorf("knowledge: decode decision consequences: %w", err)
		}
		if d.Alternatives, err = decodeList(alternatives); err != nil {
			return nil, fmt.Errorf("knowledge: decode decision alternatives: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("knowledge: iterate decisions: %w", err)
	}
	return result, nil
}

// queryLessons is a shared helper for scanning lesson rows.
func (s *Store) queryLessons(ctx context.Context, query string, args ...any) ([]Lesson, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge: query lessons: %w", err)
	}
	defer rows.Close()

	var result []Lesson
	for rows.Next() {
		var l Lesson
		var tags string
		if err := rows.Scan(&l.ID, &l.Category, &l.Situation, &l.Problem, &l.Solution, &l.Outcome, &tags, &l.Impact); err != nil {
			return nil, fmt.Errorf("knowledge: scan lesson: %w", err)
		}
		if l.Tags, err = decodeList(tags); err != nil {
			return nil, fmt.Errorf("knowledge: decode lesson tags: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("knowledge: iterate lessons: %w", err)
	}
	return result, nil
}

func tableFor(kind string) (string, error) {
	switch kind {
	case KindPattern:
		return "patterns", nil
	case KindDecision:
		return "decisions", nil
	case KindLesson:
		return "lessons", nil
	}
	return "", fmt.Errorf("knowledge: unknown record kind %q", kind)
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(s string) ([]string, error) {
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, err
	}
	return items, nil
}
