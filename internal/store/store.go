// Package store provides SQLite-backed persistence for pipeline run history
// and the oracle call log.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianshen/conceptmap/internal/oracle"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID            string
	ProjectID     string
	ProjectName   string
	RepoPath      string
	Shape         string
	Status        string
	StartedAt     time.Time
	FinishedAt    *time.Time
	Concepts      int
	Relationships int
	Views         int
	Stories       int
	OracleCalls   int
	SoftFailures  int
	ArtifactPath  string
	Error         string
}

// Store wraps a SQLite database for run history.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at dbPath and ensures
// all required tables exist. Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			project_id     TEXT NOT NULL,
			project_name   TEXT NOT NULL,
			repo_path      TEXT NOT NULL,
			shape          TEXT NOT NULL,
			status         TEXT NOT NULL,
			started_at     DATETIME NOT NULL,
			finished_at    DATETIME,
			concepts       INTEGER NOT NULL DEFAULT 0,
			relationships  INTEGER NOT NULL DEFAULT 0,
			views          INTEGER NOT NULL DEFAULT 0,
			stories        INTEGER NOT NULL DEFAULT 0,
			oracle_calls   INTEGER NOT NULL DEFAULT 0,
			soft_failures  INTEGER NOT NULL DEFAULT 0,
			artifact_path  TEXT NOT NULL DEFAULT '',
			error          TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS oracle_calls (
			id             TEXT PRIMARY KEY,
			run_id         TEXT NOT NULL,
			stage          TEXT NOT NULL,
			unit           TEXT NOT NULL,
			model          TEXT NOT NULL,
			format         TEXT NOT NULL,
			started_at     DATETIME NOT NULL,
			duration_ms    INTEGER NOT NULL,
			prompt_bytes   INTEGER NOT NULL,
			response_bytes INTEGER NOT NULL,
			input_tokens   INTEGER NOT NULL DEFAULT 0,
			output_tokens  INTEGER NOT NULL DEFAULT 0,
			error          TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_oracle_calls_run ON oracle_calls (run_id, started_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// BeginRun inserts r with status "running".
func (s *Store) BeginRun(r Run) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, project_id, project_name, repo_path, shape, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProjectID, r.ProjectName, r.RepoPath, r.Shape, StatusRunning, r.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counters of r.
func (s *Store) FinishRun(r Run) error {
	finished := time.Now().UTC()
	if r.FinishedAt != nil {
		finished = r.FinishedAt.UTC()
	}
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ?, project_name = ?, concepts = ?, relationships = ?,
		   views = ?, stories = ?, oracle_calls = ?, soft_failures = ?, artifact_path = ?, error = ?
		 WHERE id = ?`,
		r.Status, finished, r.ProjectName, r.Concepts, r.Relationships,
		r.Views, r.Stories, r.OracleCalls, r.SoftFailures, r.ArtifactPath, r.Error,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %q", r.ID)
	}
	return nil
}

const runColumns = `id, project_id, project_name, repo_path, shape, status, started_at, finished_at,
	concepts, relationships, views, stories, oracle_calls, soft_failures, artifact_path, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var finished sql.NullTime
	err := row.Scan(&r.ID, &r.ProjectID, &r.ProjectName, &r.RepoPath, &r.Shape, &r.Status,
		&r.StartedAt, &finished, &r.Concepts, &r.Relationships, &r.Views, &r.Stories,
		&r.OracleCalls, &r.SoftFailures, &r.ArtifactPath, &r.Error)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, err
}

// GetRun retrieves a run by id. Returns nil if the run is not found.
func (s *Store) GetRun(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecordCall implements oracle.Recorder.
func (s *Store) RecordCall(rec oracle.CallRecord) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO oracle_calls (id, run_id, stage, unit, model, format, started_at,
		   duration_ms, prompt_bytes, response_bytes, input_tokens, output_tokens, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Stage, rec.Unit, rec.Model, string(rec.Format), rec.StartedAt.UTC(),
		rec.Duration.Milliseconds(), rec.PromptBytes, rec.ResponseBytes, rec.InputTokens, rec.OutputTokens, rec.Err,
	)
	if err != nil {
		return fmt.Errorf("record call: %w", err)
	}
	return nil
}

// CallsForRun returns the oracle calls of a run in the order they were made.
func (s *Store) CallsForRun(runID string) ([]oracle.CallRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, stage, unit, model, format, started_at, duration_ms,
		   prompt_bytes, response_bytes, input_tokens, output_tokens, error
		 FROM oracle_calls WHERE run_id = ? ORDER BY started_at, rowid`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var calls []oracle.CallRecord
	for rows.Next() {
		var c oracle.CallRecord
		var format string
		var durationMs int64
		if err := rows.Scan(&c.ID, &c.RunID, &c.Stage, &c.Unit, &c.Model, &format, &c.StartedAt,
			&durationMs, &c.PromptBytes, &c.ResponseBytes, &c.InputTokens, &c.OutputTokens, &c.Err); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.Format = oracle.Format(format)
		c.Duration = time.Duration(durationMs) * time.Millisecond
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// StageFailures counts failed calls per stage for a run.
func (s *Store) StageFailures(runID string) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT stage, COUNT(*) FROM oracle_calls WHERE run_id = ? AND error != '' GROUP BY stage`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("stage failures: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("scan stage failures: %w", err)
		}
		out[stage] = n
	}
	return out, rows.Err()
}
