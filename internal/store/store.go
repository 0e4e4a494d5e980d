package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/facesort/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store manages the PostgreSQL connection holding the run journal.
type Store struct {
	conn *pgx.Conn
}

// Run describes one invocation of the sort command.
type Run struct {
	ID          uuid.UUID
	SourceDir   string
	Provider    string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Processed   int
	Failed      int
	Interrupted bool
}

// OutcomeRecord is a persisted per-file outcome.
type OutcomeRecord struct {
	Sequence    int
	SourcePath  string
	Destination string
	OutputPath  string
	Faces       int
	Caption     string
	Status      string
	Stage       string
	Error       string
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the journal tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS sort_runs (
			id UUID PRIMARY KEY,
			source_dir TEXT NOT NULL,
			provider TEXT NOT NULL,
			started_at TIMESTAMPTZ DEFAULT NOW(),
			finished_at TIMESTAMPTZ,
			processed INT NOT NULL DEFAULT 0,
			failed INT NOT NULL DEFAULT 0,
			interrupted BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE TABLE IF NOT EXISTS sort_outcomes (
			id BIGSERIAL PRIMARY KEY,
			run_id UUID REFERENCES sort_runs(id) ON DELETE CASCADE,
			sequence INT NOT NULL,
			source_path TEXT NOT NULL,
			destination TEXT NOT NULL,
			output_path TEXT NOT NULL DEFAULT '',
			faces INT NOT NULL DEFAULT 0,
			caption TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			stage TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS sort_outcomes_run_id_idx ON sort_outcomes (run_id, sequence);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// BeginRun registers a new run.
func (s *Store) BeginRun(ctx context.Context, id uuid.UUID, sourceDir, provider string) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO sort_runs (id, source_dir, provider, started_at)
		VALUES ($1::uuid, $2, $3, NOW())
	`, id.String(), sourceDir, provider)
	return err
}

// RecordOutcome saves the result of one file.
func (s *Store) RecordOutcome(ctx context.Context, runID uuid.UUID, o types.Outcome) error {
	var errText string
	if o.Err != nil {
		errText = o.Err.Error()
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO sort_outcomes (run_id, sequence, source_path, destination, output_path, faces, caption, status, stage, error)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, runID.String(), o.Task.Sequence, o.Task.SourcePath, o.Decision.Destination.String(), o.Path,
		len(o.Analysis.Faces), o.Analysis.Caption, o.Status.String(), string(o.Stage), errText)
	return err
}

// FinishRun stamps the end of a run with its totals.
func (s *Store) FinishRun(ctx context.Context, id uuid.UUID, processed, failed int, interrupted bool) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE sort_runs SET finished_at = NOW(), processed = $2, failed = $3, interrupted = $4
		WHERE id = $1::uuid
	`, id.String(), processed, failed, interrupted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.Query(ctx, `
		SELECT id::text, source_dir, provider, started_at, finished_at, processed, failed, interrupted
		FROM sort_runs ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var id string
		if err := rows.Scan(&id, &r.SourceDir, &r.Provider, &r.StartedAt, &r.FinishedAt, &r.Processed, &r.Failed, &r.Interrupted); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ErrRunNotFound is returned by ListOutcomes for an unknown run.
var ErrRunNotFound = errors.New("run not found")

// ListOutcomes returns a run's outcomes in sequence order.
func (s *Store) ListOutcomes(ctx context.Context, runID uuid.UUID) ([]OutcomeRecord, error) {
	var exists bool
	if err := s.conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM sort_runs WHERE id = $1::uuid)", runID.String()).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT sequence, source_path, destination, output_path, faces, caption, status, stage, error
		FROM sort_outcomes WHERE run_id = $1::uuid ORDER BY sequence
	`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var o OutcomeRecord
		if err := rows.Scan(&o.Sequence, &o.SourcePath, &o.Destination, &o.OutputPath, &o.Faces, &o.Caption, &o.Status, &o.Stage, &o.Error); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Reset drops all journal tables to clear the database state.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS sort_outcomes CASCADE;
		DROP TABLE IF EXISTS sort_runs CASCADE;
	`)
	return err
}
