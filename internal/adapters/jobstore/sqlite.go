// Package jobstore persists job records in a local SQLite database.
package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/geoforge/basemap/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	output        TEXT NOT NULL,
	server        TEXT NOT NULL,
	total_tiles   INTEGER NOT NULL DEFAULT 0,
	fetched_tiles INTEGER NOT NULL DEFAULT 0,
	failed_tiles  INTEGER NOT NULL DEFAULT 0,
	import_ref    TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	spec_json     TEXT NOT NULL,
	result_json   TEXT,
	created_at    TIMESTAMP NOT NULL,
	started_at    TIMESTAMP,
	completed_at  TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC);
`

// SQLiteStore implements output.JobStore on a single database file.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (and if necessary creates) the database at path.
func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening job store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating job schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements output.JobStore.
func (s *SQLiteStore) Save(ctx context.Context, job *domain.Job) error {
	specJSON, err := json.Marshal(job.Spec)
	if err != nil {
		return fmt.Errorf("encoding spec: %w", err)
	}

	var resultJSON sql.NullString
	if job.Result != nil {
		raw, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		resultJSON = sql.NullString{String: string(raw), Valid: true}
	}

	server := job.Spec.ServerID
	if server == "" {
		server = "custom"
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO jobs
		(id, status, output, server, total_tiles, fetched_tiles, failed_tiles,
		 import_ref, error, spec_json, result_json, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), job.Spec.Output, server,
		job.TotalTiles, job.FetchedTiles, job.FailedTiles,
		job.ImportRef, job.Error, string(specJSON), resultJSON,
		job.CreatedAt, nullableTime(job.StartedAt), nullableTime(job.CompletedAt))
	if err != nil {
		return fmt.Errorf("saving job %s: %w", job.ID, err)
	}
	return nil
}

// Get implements output.JobStore.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, total_tiles, fetched_tiles, failed_tiles,
		       import_ref, error, spec_json, result_json,
		       created_at, started_at, completed_at
		FROM jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	return job, nil
}

// List implements output.JobStore.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	query := `
		SELECT id, status, total_tiles, fetched_tiles, failed_tiles,
		       import_ref, error, spec_json, result_json,
		       created_at, started_at, completed_at
		FROM jobs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Close implements output.JobStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var (
		job        domain.Job
		status     string
		specJSON   string
		resultJSON sql.NullString
		started    sql.NullTime
		completed  sql.NullTime
	)
	err := row.Scan(&job.ID, &status,
		&job.TotalTiles, &job.FetchedTiles, &job.FailedTiles,
		&job.ImportRef, &job.Error, &specJSON, &resultJSON,
		&job.CreatedAt, &started, &completed)
	if err != nil {
		return nil, err
	}

	job.Status = domain.JobStatus(status)
	if err := json.Unmarshal([]byte(specJSON), &job.Spec); err != nil {
		return nil, fmt.Errorf("decoding spec: %w", err)
	}
	if resultJSON.Valid {
		var result domain.MosaicResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("decoding result: %w", err)
		}
		job.Result = &result
	}
	if started.Valid {
		t := started.Time
		job.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
