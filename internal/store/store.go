// Package store is the optional PostgreSQL run journal.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id UUID PRIMARY KEY,
    url TEXT NOT NULL,
    outcome TEXT,
    steps INTEGER NOT NULL DEFAULT 0,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS run_steps (
    run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    step INTEGER NOT NULL,
    status TEXT NOT NULL,
    page_state TEXT,
    reasoning TEXT,
    action JSONB NOT NULL,
    success BOOLEAN NOT NULL,
    screenshot_path TEXT,
    observed_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (run_id, step)
);
CREATE TABLE IF NOT EXISTS run_usage (
    run_id UUID PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
    prompt_tokens INTEGER NOT NULL,
    completion_tokens INTEGER NOT NULL,
    cost_usd DOUBLE PRECISION NOT NULL
);`

const (
	sqlInsertRun = `
        INSERT INTO runs (id, url, started_at)
        VALUES ($1, $2, $3);
    `
	sqlInsertStep = `
        INSERT INTO run_steps (run_id, step, status, page_state, reasoning, action, success, screenshot_path, observed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (run_id, step) DO UPDATE SET
            status = EXCLUDED.status,
            action = EXCLUDED.action,
            success = EXCLUDED.success;
    `
	sqlFinishRun = `
        UPDATE runs SET outcome = $2, steps = $3, finished_at = $4
        WHERE id = $1;
    `
	sqlInsertUsage = `
        INSERT INTO run_usage (run_id, prompt_tokens, completion_tokens, cost_usd)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (run_id) DO UPDATE SET
            prompt_tokens = EXCLUDED.prompt_tokens,
            completion_tokens = EXCLUDED.completion_tokens,
            cost_usd = EXCLUDED.cost_usd;
    `
	sqlSelectSteps = `
        SELECT step, status, page_state, reasoning, action, success, screenshot_path, observed_at
        FROM run_steps
        WHERE run_id = $1
        ORDER BY step ASC;
    `
)

// Store is the PostgreSQL implementation of schemas.RunJournal.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.RunJournal = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Migrate creates the journal tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// StartRun inserts the run row.
func (s *Store) StartRun(ctx context.Context, runID, url string, startedAt time.Time) error {
	if _, err := s.pool.Exec(ctx, sqlInsertRun, runID, url, startedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", runID, err)
	}
	return nil
}

// RecordStep upserts one step.
func (s *Store) RecordStep(ctx context.Context, step schemas.JournalStep) error {
	action, err := json.Marshal(step.Action)
	if err != nil {
		return fmt.Errorf("failed to encode action: %w", err)
	}
	_, err = s.pool.Exec(ctx, sqlInsertStep,
		step.RunID, step.Step, string(step.Status), step.PageState, step.Reasoning,
		action, step.Success, step.ScreenshotPath, step.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert step %d of run %s: %w", step.Step, step.RunID, err)
	}
	return nil
}

// FinishRun records the outcome and the usage totals in one transaction.
func (s *Store) FinishRun(ctx context.Context, summary schemas.RunSummary) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	tag, err := tx.Exec(ctx, sqlFinishRun, summary.RunID, string(summary.Outcome), summary.Steps, summary.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", summary.RunID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("run %s not found", summary.RunID)
	}
	if _, err := tx.Exec(ctx, sqlInsertUsage, summary.RunID, summary.PromptTokens, summary.CompletionTokens, summary.Cost); err != nil {
		return fmt.Errorf("failed to insert usage for run %s: %w", summary.RunID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// Steps returns the journaled steps of a run in order.
func (s *Store) Steps(ctx context.Context, runID string) ([]schemas.JournalStep, error) {
	rows, err := s.pool.Query(ctx, sqlSelectSteps, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []schemas.JournalStep
	for rows.Next() {
		var (
			st     schemas.JournalStep
			status string
			action []byte
		)
		if err := rows.Scan(&st.Step, &status, &st.PageState, &st.Reasoning, &action, &st.Success, &st.ScreenshotPath, &st.At); err != nil {
			return nil, fmt.Errorf("failed to scan step row: %w", err)
		}
		if err := json.Unmarshal(action, &st.Action); err != nil {
			return nil, fmt.Errorf("failed to decode action of step %d: %w", st.Step, err)
		}
		st.RunID = runID
		st.Status = schemas.DecisionStatus(status)
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return steps, nil
}
