package driving

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// RunDetail is a run together with its memoised steps.
type RunDetail struct {
	Run   domain.WorkflowRun
	Steps []domain.StepRecord
}

// RunService inspects and resumes workflow runs.
type RunService interface {
	// List returns recent runs, newest first.
	List(ctx context.Context, limit int) ([]domain.WorkflowRun, error)

	// Get returns a run and its steps.
	// Returns domain.ErrNotFound if the run does not exist.
	Get(ctx context.Context, runID string) (*RunDetail, error)

	// Resume re-invokes a run from the top with its stored input.
	// Completed steps short-circuit to their stored results.
	Resume(ctx context.Context, runID string) (*RunDetail, error)

	// ResumeIncomplete resumes every ingest run left in a non-terminal state.
	// Returns the number of runs resumed.
	ResumeIncomplete(ctx context.Context) (int, error)
}
