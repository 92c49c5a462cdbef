// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store keeps the run ledger: one SQLite database recording every
// harvest session and unification run, so the history of a corpus can be
// audited after the per-run artifacts have been archived.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/bibharvest/pkg/types"
)

// Store manages the ledger database.
type Store struct {
	db *sql.DB
}

// HarvestRun is one recorded harvest session.
type HarvestRun struct {
	ID      string
	Source  types.Source
	Query   string
	State   string
	Cause   string
	Pages   int
	Records int
	Export  string

	Started  time.Time
	Finished time.Time
}

// UnifyRun is one recorded unification.
type UnifyRun struct {
	ID         string
	Files      int
	Entries    int
	Unique     int
	Duplicates int
	Corpus     string
	Finished   time.Time
}

// Open opens or creates the ledger at cfg.Path, creating the schema when
// missing.
func Open(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS harvest_runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			query TEXT NOT NULL,
			state TEXT NOT NULL,
			cause TEXT,
			pages INTEGER,
			records INTEGER,
			export_path TEXT,
			started TEXT NOT NULL,
			finished TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_harvest_runs_source ON harvest_runs(source)`,
		`CREATE TABLE IF NOT EXISTS unify_runs (
			id TEXT PRIMARY KEY,
			files INTEGER,
			entries INTEGER,
			unique_count INTEGER,
			duplicates INTEGER,
			corpus_path TEXT,
			finished TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordHarvest inserts one harvest run row.
func (s *Store) RecordHarvest(ctx context.Context, run HarvestRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO harvest_runs
		 (id, source, query, state, cause, pages, records, export_path, started, finished)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Source), run.Query, run.State, run.Cause,
		run.Pages, run.Records, run.Export,
		run.Started.UTC().Format(time.RFC3339), run.Finished.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording harvest run: %w", err)
	}
	return nil
}

// RecordUnify inserts one unification row.
func (s *Store) RecordUnify(ctx context.Context, run UnifyRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO unify_runs (id, files, entries, unique_count, duplicates, corpus_path, finished)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Files, run.Entries, run.Unique, run.Duplicates, run.Corpus,
		run.Finished.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording unify run: %w", err)
	}
	return nil
}

// ListHarvests returns the most recent harvest runs, newest first.
func (s *Store) ListHarvests(ctx context.Context, limit int) ([]HarvestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, query, state, COALESCE(cause, ''), pages, records,
		        COALESCE(export_path, ''), started, finished
		 FROM harvest_runs ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing harvest runs: %w", err)
	}
	defer rows.Close()

	var out []HarvestRun
	for rows.Next() {
		var r HarvestRun
		var src, started, finished string
		if err := rows.Scan(&r.ID, &src, &r.Query, &r.State, &r.Cause,
			&r.Pages, &r.Records, &r.Export, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning harvest run: %w", err)
		}
		r.Source = types.Source(src)
		r.Started, _ = time.Parse(time.RFC3339, started)
		r.Finished, _ = time.Parse(time.RFC3339, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}
