// Package store keeps a local history of analysis runs in SQLite.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id           TEXT PRIMARY KEY,
	input_path       TEXT NOT NULL,
	record_index     INTEGER NOT NULL DEFAULT -1,
	analysis_type    TEXT NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	model            TEXT NOT NULL DEFAULT '',
	report_path      TEXT NOT NULL DEFAULT '',
	bibliography     TEXT NOT NULL DEFAULT '',
	digest           TEXT NOT NULL DEFAULT '',
	total_citations  INTEGER NOT NULL DEFAULT 0,
	valid_citations  INTEGER NOT NULL DEFAULT 0,
	composite        REAL,
	band             TEXT NOT NULL DEFAULT '',
	prompt_tokens    INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	cached           INTEGER NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at);
`

// Run is one persisted analysis
type Run struct {
	RunID            string   `db:"run_id"`
	InputPath        string   `db:"input_path"`
	RecordIndex      int      `db:"record_index"`
	AnalysisType     string   `db:"analysis_type"`
	Category         string   `db:"category"`
	Model            string   `db:"model"`
	ReportPath       string   `db:"report_path"`
	Bibliography     string   `db:"bibliography"`
	Digest           string   `db:"digest"`
	TotalCitations   int      `db:"total_citations"`
	ValidCitations   int      `db:"valid_citations"`
	Composite        *float64 `db:"composite"`
	Band             string   `db:"band"`
	PromptTokens     int      `db:"prompt_tokens"`
	CompletionTokens int      `db:"completion_tokens"`
	Cached           bool     `db:"cached"`
	CreatedAt        string   `db:"created_at"`
}

// Store is the run history database
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the history database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts or replaces a run. CreatedAt defaults to now.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.RunID == "" {
		return fmt.Errorf("record run: empty run id")
	}
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.NamedExecContext(ctx, `INSERT OR REPLACE INTO runs (
		run_id, input_path, record_index, analysis_type, category, model,
		report_path, bibliography, digest, total_citations, valid_citations,
		composite, band, prompt_tokens, completion_tokens, cached, created_at)
		VALUES (
		:run_id, :input_path, :record_index, :analysis_type, :category, :model,
		:report_path, :bibliography, :digest, :total_citations, :valid_citations,
		:composite, :band, :prompt_tokens, :completion_tokens, :cached, :created_at)`, run)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT * FROM runs ORDER BY created_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	runs := []Run{}
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run by id
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	if err := s.db.GetContext(ctx, &run, `SELECT * FROM runs WHERE run_id = ?`, runID); err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &run, nil
}
