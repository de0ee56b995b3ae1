package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// ==================== Run Store ====================

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

const runColumns = `id, function, input, output, status, error, invocations, created_at, updated_at`

// GetRun retrieves a run by ID.
func (s *runStore) GetRun(ctx context.Context, runID string) (*domain.WorkflowRun, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id = ?`, runID)
	return scanRun(row)
}

// SaveRun creates or updates a run.
func (s *runStore) SaveRun(ctx context.Context, run *domain.WorkflowRun) error {
	if run == nil || run.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO workflow_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			output = excluded.output,
			status = excluded.status,
			error = excluded.error,
			invocations = excluded.invocations,
			updated_at = excluded.updated_at
	`, run.ID, string(run.Function), run.Input, run.Output, string(run.Status),
		nullString(run.Error), run.Invocations,
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt))

	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// ListRuns returns runs newest first. A limit of zero or less returns all runs.
func (s *runStore) ListRuns(ctx context.Context, limit int) ([]domain.WorkflowRun, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM workflow_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// ListIncomplete returns non-terminal runs of function, oldest first.
func (s *runStore) ListIncomplete(ctx context.Context, function domain.WorkflowFunction) ([]domain.WorkflowRun, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM workflow_runs
		WHERE function = ? AND status NOT IN (?, ?, ?)
		ORDER BY created_at ASC, id ASC
	`, string(function),
		string(domain.RunStatusCompleted), string(domain.RunStatusAnswered), string(domain.RunStatusFailed))
	if err != nil {
		return nil, fmt.Errorf("querying incomplete runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single run row.
func scanRun(row rowScanner) (*domain.WorkflowRun, error) {
	var run domain.WorkflowRun
	var function, status, createdAt, updatedAt string
	var errMsg sql.NullString

	if err := row.Scan(&run.ID, &function, &run.Input, &run.Output, &status,
		&errMsg, &run.Invocations, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	run.Function = domain.WorkflowFunction(function)
	run.Status = domain.RunStatus(status)
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	run.CreatedAt = parseTime(createdAt)
	run.UpdatedAt = parseTime(updatedAt)

	return &run, nil
}

func scanRuns(rows *sql.Rows) ([]domain.WorkflowRun, error) {
	var runs []domain.WorkflowRun //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

// ==================== Step Store ====================

// stepStore implements driven.StepStore.
type stepStore struct {
	store *Store
}

var _ driven.StepStore = (*stepStore)(nil)

// GetStep retrieves a memoised step result.
func (s *stepStore) GetStep(ctx context.Context, runID, name string) (*domain.StepRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT run_id, name, output, attempts, completed_at
		FROM workflow_steps WHERE run_id = ? AND name = ?
	`, runID, name)
	return scanStep(row)
}

// SaveStep stores a step result. Steps keep the order they were first saved in.
func (s *stepStore) SaveStep(ctx context.Context, step *domain.StepRecord) error {
	if step == nil || step.RunID == "" || step.Name == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO workflow_steps (run_id, name, seq, output, attempts, completed_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM workflow_steps WHERE run_id = ?), ?, ?, ?)
		ON CONFLICT(run_id, name) DO UPDATE SET
			output = excluded.output,
			attempts = excluded.attempts,
			completed_at = excluded.completed_at
	`, step.RunID, step.Name, step.RunID, step.Output, step.Attempts, formatTime(step.CompletedAt))

	if err != nil {
		return fmt.Errorf("saving step: %w", err)
	}
	return nil
}

// ListSteps returns the steps of a run in completion order.
func (s *stepStore) ListSteps(ctx context.Context, runID string) ([]domain.StepRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT run_id, name, output, attempts, completed_at
		FROM workflow_steps WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying steps: %w", err)
	}
	defer rows.Close()

	steps := []domain.StepRecord{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating steps: %w", err)
	}

	return steps, nil
}

// scanStep scans a single step row.
func scanStep(row rowScanner) (*domain.StepRecord, error) {
	var step domain.StepRecord
	var completedAt string

	if err := row.Scan(&step.RunID, &step.Name, &step.Output, &step.Attempts, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning step: %w", err)
	}
	step.CompletedAt = parseTime(completedAt)

	return &step, nil
}
