package driven

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// RunStore persists workflow runs so interrupted runs can be resumed.
type RunStore interface {
	// GetRun retrieves a run by ID.
	// Returns domain.ErrNotFound if the run does not exist.
	GetRun(ctx context.Context, runID string) (*domain.WorkflowRun, error)

	// SaveRun creates or updates a run based on ID.
	SaveRun(ctx context.Context, run *domain.WorkflowRun) error

	// ListRuns returns runs ordered by creation time descending.
	// A limit of zero or less returns every run.
	ListRuns(ctx context.Context, limit int) ([]domain.WorkflowRun, error)

	// ListIncomplete returns runs of the given function that are not terminal.
	ListIncomplete(ctx context.Context, function domain.WorkflowFunction) ([]domain.WorkflowRun, error)
}

// StepStore memoises step results keyed by (run ID, step name).
type StepStore interface {
	// GetStep retrieves a memoised step.
	// Returns domain.ErrNotFound if the step has not completed.
	GetStep(ctx context.Context, runID, name string) (*domain.StepRecord, error)

	// SaveStep persists a completed step. Saving the same key again overwrites it.
	SaveStep(ctx context.Context, step *domain.StepRecord) error

	// ListSteps returns the steps of a run in completion order.
	ListSteps(ctx context.Context, runID string) ([]domain.StepRecord, error)
}
