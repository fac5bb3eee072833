// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a SQLite log of pipeline runs and the papers each
// run downloaded or withheld.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/oafetch/pkg/types"
)

// DBFile is the database file name inside the ledger directory.
const DBFile = "history.db"

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run statuses.
const (
	StatusOK                 = "ok"
	StatusNoMatches          = "no_matches"
	StatusSourcesUnavailable = "sources_unavailable"
	StatusPersistenceFailed  = "persistence_failed"
	StatusDryRun             = "dry_run"
)

// Paper outcomes.
const (
	OutcomeDownloaded = "downloaded"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
	OutcomeWithheld   = "withheld"
)

// Run is one pipeline invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Query      types.Query
	Status     string

	Candidates       int
	Matches          int
	Downloaded       int
	Skipped          int
	Withheld         int
	DownloadFailures int
	SourceFailures   int

	Papers []PaperOutcome
}

// PaperOutcome records what happened to one match in a run.
type PaperOutcome struct {
	Key     string
	Title   string
	Outcome string
	Detail  string // withheld reason, error, or download path
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates dir/history.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(dir, DBFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			candidates INTEGER NOT NULL,
			matches INTEGER NOT NULL,
			downloaded INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			withheld INTEGER NOT NULL,
			download_failures INTEGER NOT NULL,
			source_failures INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS run_papers (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			paper_key TEXT NOT NULL,
			title TEXT NOT NULL,
			outcome TEXT NOT NULL,
			detail TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_papers_run_id ON run_papers(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record inserts run and its paper outcomes in one transaction, assigning
// an ID when run has none. It returns the run ID.
func (s *Store) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	query, err := json.Marshal(run.Query)
	if err != nil {
		return "", fmt.Errorf("encoding query: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, query, status, candidates, matches,
			downloaded, skipped, withheld, download_failures, source_failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		string(query), run.Status, run.Candidates, run.Matches,
		run.Downloaded, run.Skipped, run.Withheld, run.DownloadFailures, run.SourceFailures,
	); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for _, p := range run.Papers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_papers (run_id, paper_key, title, outcome, detail) VALUES (?, ?, ?, ?, ?)`,
			run.ID, p.Key, p.Title, p.Outcome, p.Detail,
		); err != nil {
			return "", fmt.Errorf("inserting paper %s: %w", p.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

// List returns the most recent runs, newest first, without paper outcomes.
// A non-positive limit returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, started_at, finished_at, query, status, candidates, matches,
		downloaded, skipped, withheld, download_failures, source_failures
		FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
			query             string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &query, &r.Status, &r.Candidates, &r.Matches,
			&r.Downloaded, &r.Skipped, &r.Withheld, &r.DownloadFailures, &r.SourceFailures); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		var err error
		if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("decoding start time of run %s: %w", r.ID, err)
		}
		if r.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("decoding finish time of run %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(query), &r.Query); err != nil {
			return nil, fmt.Errorf("decoding query of run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Papers returns the paper outcomes of one run in insertion order.
func (s *Store) Papers(ctx context.Context, runID string) ([]PaperOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT paper_key, title, outcome, COALESCE(detail, '') FROM run_papers WHERE run_id = ? ORDER BY rowid`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var out []PaperOutcome
	for rows.Next() {
		var p PaperOutcome
		if err := rows.Scan(&p.Key, &p.Title, &p.Outcome, &p.Detail); err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
