// Package store persists workflow run state to PostgreSQL so an engine
// restart or a second instance can resume any in-flight run. The full
// State is kept as a JSON document; a handful of columns are duplicated
// out of it purely to let list/filter queries run without deserialising
// every row.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/workflow"
)

// PostgresStore implements workflow.Store against a "workflow_runs" table.
type PostgresStore struct {
	db *sqlx.DB
}

// Open connects to dsn, verifies connectivity, and wraps the handle.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "open workflow store", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.Internal, "ping workflow store", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an already-open handle, e.g. one shared with
// other subsystems or substituted with a sqlmock-backed *sqlx.DB in tests.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type runRow struct {
	RunID             string `db:"run_id"`
	Status            string `db:"status"`
	CurrentNode       string `db:"current_node"`
	PendingCheckpoint string `db:"pending_checkpoint"`
	StateJSON         []byte `db:"state_json"`
}

// Save upserts state by run_id.
func (s *PostgresStore) Save(ctx context.Context, state workflow.State) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "marshal run state", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_runs (run_id, status, current_node, pending_checkpoint, state_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			current_node = EXCLUDED.current_node,
			pending_checkpoint = EXCLUDED.pending_checkpoint,
			state_json = EXCLUDED.state_json,
			updated_at = EXCLUDED.updated_at
	`, string(state.RunID), string(state.Status), string(state.CurrentNode), string(state.PendingCheckpoint),
		encoded, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "save run state", err)
	}
	return nil
}

// Load fetches one run by id.
func (s *PostgresStore) Load(ctx context.Context, id workflow.RunID) (workflow.State, bool, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT run_id, status, current_node, pending_checkpoint, state_json FROM workflow_runs WHERE run_id = $1`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.State{}, false, nil
	}
	if err != nil {
		return workflow.State{}, false, apperrors.Wrap(apperrors.Internal, "load run state", err)
	}
	var state workflow.State
	if err := json.Unmarshal(row.StateJSON, &state); err != nil {
		return workflow.State{}, false, apperrors.Wrap(apperrors.Internal, "decode run state", err)
	}
	return state, true, nil
}

// List returns every known run, most recently updated first.
func (s *PostgresStore) List(ctx context.Context) ([]workflow.State, error) {
	var rows []runRow
	err := s.db.SelectContext(ctx, &rows, `SELECT run_id, status, current_node, pending_checkpoint, state_json FROM workflow_runs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "list run state", err)
	}
	states := make([]workflow.State, 0, len(rows))
	for _, row := range rows {
		var state workflow.State
		if err := json.Unmarshal(row.StateJSON, &state); err != nil {
			return nil, apperrors.Wrap(apperrors.Internal, "decode run state", err)
		}
		states = append(states, state)
	}
	return states, nil
}
