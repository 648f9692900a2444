// Package postgres provides a PostgreSQL-backed pipeline.RunStore.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yliasolom/graph-search/pipeline"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RunStore implements pipeline.RunStore using PostgreSQL.
type RunStore struct {
	pool      DBPool
	tableName string
}

// Options configuration for Postgres connection
type Options struct {
	ConnString string
	TableName  string // Default "pipeline_runs"
}

// NewRunStore creates a new Postgres run store.
func NewRunStore(ctx context.Context, opts Options) (*RunStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "pipeline_runs"
	}

	return &RunStore{
		pool:      pool,
		tableName: tableName,
	}, nil
}

// NewRunStoreWithPool creates a run store with an existing pool.
// Useful for testing with mocks.
func NewRunStoreWithPool(pool DBPool, tableName string) *RunStore {
	if tableName == "" {
		tableName = "pipeline_runs"
	}
	return &RunStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist.
func (s *RunStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			stage TEXT NOT NULL,
			state JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_stage ON %s (stage);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *RunStore) Close() {
	s.pool.Close()
}

// Save upserts the latest snapshot of a run, keyed by run ID.
func (s *RunStore) Save(ctx context.Context, state *pipeline.State) error {
	if state.RunID == "" {
		return fmt.Errorf("run ID is required")
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, query, stage, state, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			query = EXCLUDED.query,
			stage = EXCLUDED.stage,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		state.RunID,
		state.Query,
		string(state.Stage),
		stateJSON,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Load retrieves the latest snapshot of a run.
func (s *RunStore) Load(ctx context.Context, runID string) (*pipeline.State, error) {
	query := fmt.Sprintf(`
		SELECT state FROM %s WHERE run_id = $1
	`, s.tableName)

	var stateJSON []byte
	err := s.pool.QueryRow(ctx, query, runID).Scan(&stateJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var state pipeline.State
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// ListByStage returns run IDs currently at the given stage, most recent
// first.
func (s *RunStore) ListByStage(ctx context.Context, stage pipeline.Stage, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT run_id FROM %s WHERE stage = $1 ORDER BY updated_at DESC LIMIT $2
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, string(stage), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runIDs []string
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, fmt.Errorf("failed to scan run ID: %w", err)
		}
		runIDs = append(runIDs, runID)
	}
	return runIDs, rows.Err()
}

var _ pipeline.RunStore = (*RunStore)(nil)
